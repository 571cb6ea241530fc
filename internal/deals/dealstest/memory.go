// Package dealstest provides an in-memory deals.Repository for tests.
package dealstest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/deals"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
)

// Memory is a map backed repository. Clients are resolved through the
// wrapped clients repository on every read.
type Memory struct {
	mu      sync.Mutex
	deals   map[int64]deals.Deal
	clients clients.Repository
	nextID  int64
	now     func() time.Time
}

// New returns an empty repository reading clients from cr.
func New(cr clients.Repository) *Memory {
	return &Memory{deals: make(map[int64]deals.Deal), clients: cr, nextID: 1, now: time.Now}
}

// Seed stores d and returns its id. Only d.Client.ID is kept.
func (m *Memory) Seed(d deals.Deal) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.nextID
	}
	if d.ID >= m.nextID {
		m.nextID = d.ID + 1
	}
	if d.Status == "" {
		d.Status = deals.StatusNew
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = m.now()
		d.UpdatedAt = d.CreatedAt
	}
	d.Client = clients.Client{ID: d.Client.ID}
	m.deals[d.ID] = d
	return d.ID
}

// Snapshot returns the stored copy of deal id.
func (m *Memory) Snapshot(id int64) (deals.Deal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	return d, ok
}

func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, deals.Repository) error) error {
	m.mu.Lock()
	backup := make(map[int64]deals.Deal, len(m.deals))
	for k, v := range m.deals {
		backup[k] = v
	}
	next := m.nextID
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.deals = backup
		m.nextID = next
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) resolve(ctx context.Context, d deals.Deal) (deals.Deal, error) {
	c, err := m.clients.Get(ctx, d.Client.ID)
	if err != nil {
		return d, err
	}
	d.Client = *c
	return d, nil
}

func (m *Memory) List(ctx context.Context, q deals.ListQuery) ([]deals.Deal, int, error) {
	m.mu.Lock()
	var out []deals.Deal
	for _, d := range m.deals {
		if q.Status != "" && d.Status != q.Status {
			continue
		}
		if q.ClientID > 0 && d.Client.ID != q.ClientID {
			continue
		}
		out = append(out, d)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if q.Page.Size > 0 {
		start := min(q.Page.Offset(), total)
		end := min(start+q.Page.Size, total)
		out = out[start:end]
	}
	for i := range out {
		d, err := m.resolve(ctx, out[i])
		if err != nil {
			return nil, 0, err
		}
		out[i] = d
	}
	return out, total, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (*deals.Deal, error) {
	m.mu.Lock()
	d, ok := m.deals[id]
	m.mu.Unlock()
	if !ok {
		return nil, httpx.ErrNotFound
	}
	d, err := m.resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *Memory) clientExists(ctx context.Context, id int64) error {
	if _, err := m.clients.Get(ctx, id); err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return httpx.Invalid("client_id", "Invalid pk - object does not exist.")
		}
		return err
	}
	return nil
}

func (m *Memory) Create(ctx context.Context, in deals.NewDeal, actorID int64) (int64, error) {
	if err := m.clientExists(ctx, in.ClientID); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	id := m.nextID
	m.nextID++
	actor := actorID
	m.deals[id] = deals.Deal{
		ID:        id,
		Name:      in.Name,
		Status:    in.Status,
		Amount:    in.Amount,
		Notes:     in.Notes,
		ManagerID: in.ManagerID,
		Client:    clients.Client{ID: in.ClientID},
		CreatedBy: &actor,
		UpdatedBy: &actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (m *Memory) Update(ctx context.Context, id int64, ch deals.Changes, actorID int64) error {
	if ch.ClientID != nil {
		if err := m.clientExists(ctx, *ch.ClientID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if ch.Name != nil {
		d.Name = *ch.Name
	}
	if ch.Status != nil {
		d.Status = *ch.Status
	}
	if ch.Amount != nil {
		d.Amount = *ch.Amount
	}
	if ch.Notes != nil {
		d.Notes = ch.Notes
	}
	if ch.ClientID != nil {
		d.Client = clients.Client{ID: *ch.ClientID}
	}
	actor := actorID
	d.UpdatedBy = &actor
	d.UpdatedAt = m.now()
	m.deals[id] = d
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deals[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.deals, id)
	return nil
}

func (m *Memory) CountInProgressDeals(ctx context.Context, clientID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.deals {
		if d.Client.ID == clientID && d.Status == deals.StatusInProgress {
			n++
		}
	}
	return n, nil
}
