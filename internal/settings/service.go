package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/centerdesk/centerdesk/internal/shared"
)

// ErrNotFound indicates the center has no settings row.
var ErrNotFound = errors.New("settings: not found")

// RepositoryPort defines data access methods for center settings.
type RepositoryPort interface {
	Get(ctx context.Context, centerID int64) (*CenterSettings, error)
	Upsert(ctx context.Context, s CenterSettings) error
}

// Service handles center settings.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the center's settings, falling back to defaults when the
// center has not configured anything yet.
func (s *Service) Get(ctx context.Context, centerID int64) (*CenterSettings, error) {
	cfg, err := s.repo.Get(ctx, centerID)
	if errors.Is(err, ErrNotFound) {
		return &CenterSettings{
			CenterID:      centerID,
			PaymentMonths: DefaultPaymentMonths(),
			Currency:      "ZAR",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Update validates and stores the center's settings.
func (s *Service) Update(ctx context.Context, cfg CenterSettings) error {
	if cfg.CenterID <= 0 {
		return fmt.Errorf("%w: center required", shared.ErrValidation)
	}
	if len(cfg.PaymentMonths) == 0 {
		return fmt.Errorf("%w: at least one payment month required", shared.ErrValidation)
	}
	seen := make(map[time.Month]struct{}, len(cfg.PaymentMonths))
	for _, m := range cfg.PaymentMonths {
		if m < time.January || m > time.December {
			return fmt.Errorf("%w: month %d out of range", shared.ErrValidation, m)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("%w: month %s repeated", shared.ErrValidation, m)
		}
		seen[m] = struct{}{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "ZAR"
	}
	return s.repo.Upsert(ctx, cfg)
}

// Currency implements the reporting SettingsPort.
func (s *Service) Currency(ctx context.Context, centerID int64) (string, error) {
	cfg, err := s.Get(ctx, centerID)
	if err != nil {
		return "", err
	}
	return cfg.Currency, nil
}

// AllowedMonths implements the billing SettingsPort.
func (s *Service) AllowedMonths(ctx context.Context, centerID int64) ([]time.Month, error) {
	cfg, err := s.Get(ctx, centerID)
	if err != nil {
		return nil, err
	}
	return cfg.PaymentMonths, nil
}
