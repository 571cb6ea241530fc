package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/rules"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// Invalidator drops cached aggregates. Deleting a client removes its deals,
// so analytics built from them go stale.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service implements the client operations.
type Service struct {
	repo   Repository
	cache  Invalidator
	logger *slog.Logger
}

// NewService constructs the client service. cache may be nil.
func NewService(repo Repository, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns a page of clients and the total number matching q.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Client, int, error) {
	return s.repo.List(ctx, q)
}

// Get loads a single client.
func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a client. The acting user manages it unless an
// administrator names another manager.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, in NewClient) (*Client, error) {
	if actor == nil {
		return nil, httpx.ErrUnauthorized
	}
	in.Email = users.NormalizeEmail(in.Email)
	managerID, err := assignManager(actor, in.ManagerID)
	if err != nil {
		return nil, err
	}
	in.ManagerID = managerID

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := checkEmail(ctx, repo, in.Email, 0); err != nil {
			return err
		}
		if err := rules.ManagerCapacity(ctx, repo, in.ManagerID); err != nil {
			return err
		}
		var err error
		id, err = repo.Create(ctx, in, actor.UserID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update applies changes to client id. Moving a client to another manager
// is checked against that manager's capacity.
func (s *Service) Update(ctx context.Context, actor *shared.Principal, id int64, changes Changes) (*Client, error) {
	if actor == nil {
		return nil, httpx.ErrUnauthorized
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Email != nil {
		email := users.NormalizeEmail(*changes.Email)
		changes.Email = &email
	}
	if changes.ManagerID != nil {
		if *changes.ManagerID == existing.Manager.ID {
			changes.ManagerID = nil
		} else if _, err := assignManager(actor, *changes.ManagerID); err != nil {
			return nil, err
		}
	}
	if changes.Empty() {
		return existing, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if changes.Email != nil {
			if err := checkEmail(ctx, repo, *changes.Email, id); err != nil {
				return err
			}
		}
		if changes.ManagerID != nil {
			if err := rules.ManagerCapacity(ctx, repo, *changes.ManagerID); err != nil {
				return err
			}
		}
		return repo.Update(ctx, id, changes, actor.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes client id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("invalidate analytics cache", slog.Int64("client_id", id), slog.Any("error", err))
		}
	}
	return nil
}

func assignManager(actor *shared.Principal, requested int64) (int64, error) {
	if requested == 0 || requested == actor.UserID {
		return actor.UserID, nil
	}
	if !actor.IsAdmin() {
		return 0, httpx.Denied("manager_id", "Only administrators may assign clients to another manager.")
	}
	return requested, nil
}

func checkEmail(ctx context.Context, repo Repository, email string, excludeID int64) error {
	taken, err := repo.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		if excludeID > 0 {
			return httpx.Invalid("email", "This email is already used by another client.")
		}
		return httpx.Invalid("email", "A client with this email is already registered.")
	}
	return nil
}
