package tasks

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Service implements the task operations.
type Service struct {
	repo Repository
}

// NewService constructs the task service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of tasks and the total number matching q.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Task, int, error) {
	return s.repo.List(ctx, q)
}

// Create records a task owned by the acting user.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, in NewTask) (*Task, error) {
	if actor == nil {
		return nil, httpx.ErrUnauthorized
	}
	if in.Status == "" {
		in.Status = StatusPending
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if err := validate(&in.Status, &in.Priority); err != nil {
		return nil, err
	}
	in.ManagerID = actor.UserID

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		id, err = repo.Create(ctx, in, actor.UserID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update applies changes to task id.
func (s *Service) Update(ctx context.Context, actor *shared.Principal, id int64, changes Changes) (*Task, error) {
	if actor == nil {
		return nil, httpx.ErrUnauthorized
	}
	if err := validate(changes.Status, changes.Priority); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Empty() {
		return existing, nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, id, changes, actor.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes task id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func validate(status *Status, priority *Priority) error {
	if status != nil && !status.Valid() {
		return httpx.Invalid("status_task", fmt.Sprintf("%q is not a valid choice.", string(*status)))
	}
	if priority != nil && !priority.Valid() {
		return httpx.Invalid("priority", fmt.Sprintf("%q is not a valid choice.", string(*priority)))
	}
	return nil
}
