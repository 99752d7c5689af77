package reporting

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/centerdesk/centerdesk/internal/shared"
)

// RepositoryPort defines the aggregate queries behind the reports.
type RepositoryPort interface {
	OutstandingSummary(ctx context.Context, centerID int64, asOf time.Time) (*OutstandingSummary, error)
	Collections(ctx context.Context, centerID int64, from, to time.Time) ([]CollectionRow, error)
}

// SettingsPort supplies the center's display currency.
type SettingsPort interface {
	Currency(ctx context.Context, centerID int64) (string, error)
}

// Service builds cached billing reports. Concurrent requests for the same
// key collapse into a single rebuild via singleflight.
type Service struct {
	repo     RepositoryPort
	settings SettingsPort
	cache    *Cache
	group    singleflight.Group
}

// NewService wires the repository with the cache helper.
func NewService(repo RepositoryPort, settings SettingsPort, cache *Cache) *Service {
	return &Service{repo: repo, settings: settings, cache: cache}
}

// Outstanding returns the center's outstanding-fees summary.
func (s *Service) Outstanding(ctx context.Context, centerID int64) (*OutstandingSummary, error) {
	if centerID <= 0 {
		return nil, fmt.Errorf("%w: center required", shared.ErrValidation)
	}

	key, err := s.cache.BuildKey(ctx, keyOutstanding(centerID))
	if err != nil {
		return nil, err
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var summary OutstandingSummary
		err := s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
			return s.buildOutstanding(ctx, centerID)
		})
		return &summary, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*OutstandingSummary), nil
}

func (s *Service) buildOutstanding(ctx context.Context, centerID int64) (*OutstandingSummary, error) {
	summary, err := s.repo.OutstandingSummary(ctx, centerID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("reporting: outstanding summary: %w", err)
	}
	cur, err := s.settings.Currency(ctx, centerID)
	if err != nil {
		return nil, err
	}
	summary.Currency = cur
	summary.DisplayTotal = FormatAmount(summary.TotalOutstanding, cur)
	summary.GeneratedAt = time.Now().UTC()
	return summary, nil
}

// CollectionsBetween returns monthly collection totals for the range. The
// range is inclusive and normalised to whole months.
func (s *Service) CollectionsBetween(ctx context.Context, centerID int64, from, to time.Time) (*CollectionReport, error) {
	if centerID <= 0 {
		return nil, fmt.Errorf("%w: center required", shared.ErrValidation)
	}
	from = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}

	key, err := s.cache.BuildKey(ctx, keyCollections(centerID, from, to))
	if err != nil {
		return nil, err
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var report CollectionReport
		err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
			return s.buildCollections(ctx, centerID, from, to)
		})
		return &report, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*CollectionReport), nil
}

func (s *Service) buildCollections(ctx context.Context, centerID int64, from, to time.Time) (*CollectionReport, error) {
	rows, err := s.repo.Collections(ctx, centerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("reporting: collections: %w", err)
	}
	cur, err := s.settings.Currency(ctx, centerID)
	if err != nil {
		return nil, err
	}

	report := &CollectionReport{
		CenterID: centerID,
		From:     from,
		To:       to.AddDate(0, -1, 0),
		Rows:     rows,
		Currency: cur,
	}
	for _, row := range rows {
		report.Total = report.Total.Add(row.Collected)
	}
	return report, nil
}

// Invalidate bumps the cache version after ledger writes.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
