// Package analytics reports on deal volume and income.
package analytics

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-crm/internal/analytics/svg"
)

// Summary aggregates deals by status and income by creation month (YYYY-MM).
type Summary struct {
	DealsByStatus map[string]int64 `json:"deals_by_status"`
	MonthlyIncome map[string]int64 `json:"monthly_income"`
}

// Months returns the income months in chronological order.
func (s Summary) Months() []string {
	return slices.Sorted(maps.Keys(s.MonthlyIncome))
}

// Service builds the analytics reports.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs the analytics service. A nil cache loads every
// report straight from the repository.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Summary returns the deal summary, served from cache when possible.
// Concurrent requests for the same version share a single build.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	key, err := s.cache.Key(ctx, "summary")
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.Any("error", err))
		return s.load(ctx)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		// Detached so one caller going away does not fail the others.
		return s.cached(context.WithoutCancel(ctx), key)
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

func (s *Service) cached(ctx context.Context, key string) (Summary, error) {
	var (
		out     Summary
		loaded  *Summary
		loadErr error
	)
	err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		sum, err := s.load(ctx)
		if err != nil {
			loadErr = err
			return nil, err
		}
		loaded = &sum
		return sum, nil
	})
	switch {
	case err == nil:
		return out, nil
	case loadErr != nil:
		return Summary{}, loadErr
	}
	s.logger.Warn("analytics cache unavailable", slog.Any("error", err))
	if loaded != nil {
		return *loaded, nil
	}
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) (Summary, error) {
	var (
		income   []MonthlyIncome
		byStatus map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = s.repo.MonthlyIncome(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		byStatus, err = s.repo.DealsByStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	sum := Summary{DealsByStatus: byStatus, MonthlyIncome: make(map[string]int64, len(income))}
	if sum.DealsByStatus == nil {
		sum.DealsByStatus = map[string]int64{}
	}
	for _, m := range income {
		sum.MonthlyIncome[m.Month] += m.Amount
	}
	return sum, nil
}

// Graph renders monthly income as an SVG line chart.
func (s *Service) Graph(ctx context.Context) ([]byte, error) {
	sum, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	months := sum.Months()
	points := make([]svg.Point, 0, len(months))
	for _, m := range months {
		points = append(points, svg.Point{Label: m, Value: float64(sum.MonthlyIncome[m])})
	}
	return svg.Line(svg.DefaultWidth, svg.DefaultHeight, points, svg.LineOpts{
		Title:       "Income by month",
		Description: "Sum of deal amounts grouped by the month the deal was created",
		XLabel:      "Month",
		YLabel:      "Income",
		EmptyText:   "No deals yet",
	})
}
