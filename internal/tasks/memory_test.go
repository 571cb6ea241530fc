package tasks_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/tasks"
)

type memoryRepo struct {
	mu      sync.Mutex
	tasks   map[int64]tasks.Task
	nextID  int64
	clients map[int64]bool
}

func newMemoryRepo(clientIDs ...int64) *memoryRepo {
	m := &memoryRepo{tasks: make(map[int64]tasks.Task), nextID: 1, clients: make(map[int64]bool)}
	for _, id := range clientIDs {
		m.clients[id] = true
	}
	return m
}

func (m *memoryRepo) seed(t tasks.Task) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	m.tasks[t.ID] = t
	return t.ID
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, tasks.Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) List(ctx context.Context, q tasks.ListQuery) ([]tasks.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tasks.Task
	for _, t := range m.tasks {
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		if q.Priority != "" && t.Priority != q.Priority {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &t, nil
}

func (m *memoryRepo) Create(ctx context.Context, in tasks.NewTask, actorID int64) (int64, error) {
	if in.ClientID != nil && !m.clients[*in.ClientID] {
		return 0, httpx.Invalid("client", "Invalid pk - object does not exist.")
	}
	now := time.Now()
	return m.seed(tasks.Task{
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		ManagerID:   in.ManagerID,
		ClientID:    in.ClientID,
		DealID:      in.DealID,
		Notes:       in.Notes,
		CreatedBy:   &actorID,
		UpdatedBy:   &actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}), nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, ch tasks.Changes, actorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if ch.Name != nil {
		t.Name = *ch.Name
	}
	if ch.Description != nil {
		t.Description = *ch.Description
	}
	if ch.Status != nil {
		t.Status = *ch.Status
	}
	if ch.DueDate != nil {
		t.DueDate = *ch.DueDate
	}
	if ch.Priority != nil {
		t.Priority = *ch.Priority
	}
	if ch.Notes != nil {
		t.Notes = ch.Notes
	}
	if ch.Client != nil {
		t.ClientID = linked(ch.Client)
	}
	if ch.Deal != nil {
		t.DealID = linked(ch.Deal)
	}
	t.UpdatedBy = &actorID
	m.tasks[id] = t
	return nil
}

func linked(l *tasks.Link) *int64 {
	if l.ID == 0 {
		return nil
	}
	id := l.ID
	return &id
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}
