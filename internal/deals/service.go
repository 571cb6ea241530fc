package deals

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/rules"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Invalidator drops cached aggregates derived from deals.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service implements the deal operations.
type Service struct {
	repo   Repository
	cache  Invalidator
	logger *slog.Logger
}

// NewService constructs the deal service. cache may be nil.
func NewService(repo Repository, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns a page of deals and the total number matching q.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Deal, int, error) {
	return s.repo.List(ctx, q)
}

// Create opens a deal managed by the acting user. The client must have room
// for another in-progress deal.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, in NewDeal) (*Deal, error) {
	if actor == nil {
		return nil, httpx.ErrUnauthorized
	}
	if in.Status == "" {
		in.Status = StatusNew
	}
	if err := validate(&in.Status, &in.Amount); err != nil {
		return nil, err
	}
	in.ManagerID = actor.UserID

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := rules.DealCapacity(ctx, repo, in.ClientID); err != nil {
			return err
		}
		var err error
		id, err = repo.Create(ctx, in, actor.UserID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create deal: %w", err)
	}
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

// Update applies a partial update. Moving the deal to another client or into
// progress is checked against the target client's capacity.
func (s *Service) Update(ctx context.Context, actor *shared.Principal, id int64, changes Changes) (*Deal, error) {
	if actor == nil {
		return nil, httpx.ErrUnauthorized
	}
	if err := validate(changes.Status, changes.Amount); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Empty() {
		return existing, nil
	}

	clientID := existing.Client.ID
	if changes.ClientID != nil {
		clientID = *changes.ClientID
	}
	intoProgress := changes.Status != nil && *changes.Status == StatusInProgress && existing.Status != StatusInProgress
	check := clientID != existing.Client.ID || intoProgress

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if check {
			if err := rules.DealCapacity(ctx, repo, clientID); err != nil {
				return err
			}
		}
		return repo.Update(ctx, id, changes, actor.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("update deal: %w", err)
	}
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

// Delete removes deal id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func validate(status *Status, amount *int) error {
	if status != nil && !status.Valid() {
		return httpx.Invalid("status_deal", fmt.Sprintf("%q is not a valid choice.", string(*status)))
	}
	if amount != nil && (*amount <= 0 || *amount > MaxAmount) {
		return httpx.Invalid("amount", fmt.Sprintf("Deal amount must be between 1 and %d.", MaxAmount))
	}
	return nil
}

// Cache failures only delay fresh analytics until the entries expire.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("invalidate analytics cache", slog.Any("error", err))
	}
}
