package settings

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for center settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads the settings row for a center.
func (r *Repository) Get(ctx context.Context, centerID int64) (*CenterSettings, error) {
	query := `
		SELECT center_id, payment_months, currency, updated_at
		FROM center_settings
		WHERE center_id = $1`

	var cfg CenterSettings
	var months []int32
	err := r.pool.QueryRow(ctx, query, centerID).
		Scan(&cfg.CenterID, &months, &cfg.Currency, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.PaymentMonths = make([]time.Month, 0, len(months))
	for _, m := range months {
		cfg.PaymentMonths = append(cfg.PaymentMonths, time.Month(m))
	}
	return &cfg, nil
}

// Upsert stores the settings row for a center.
func (r *Repository) Upsert(ctx context.Context, cfg CenterSettings) error {
	months := make([]int32, 0, len(cfg.PaymentMonths))
	for _, m := range cfg.PaymentMonths {
		months = append(months, int32(m))
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO center_settings (center_id, payment_months, currency, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (center_id)
			DO UPDATE SET payment_months = $2, currency = $3, updated_at = NOW()`,
		cfg.CenterID, months, cfg.Currency)
	return err
}
