// Package clientstest provides an in-memory clients.Repository for tests.
package clientstest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
)

// Memory is a map backed repository. Managers must be registered before a
// client can reference them, as the foreign key would require.
type Memory struct {
	mu       sync.Mutex
	clients  map[int64]clients.Client
	managers map[int64]clients.Manager
	nextID   int64
	now      func() time.Time

	TxErr error
}

// New returns an empty repository.
func New() *Memory {
	return &Memory{
		clients:  make(map[int64]clients.Client),
		managers: make(map[int64]clients.Manager),
		nextID:   1,
		now:      time.Now,
	}
}

// AddManager registers an account clients can be attached to.
func (m *Memory) AddManager(mg clients.Manager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.managers[mg.ID] = mg
}

// Seed stores c, resolving its manager by id, and returns its id.
func (m *Memory) Seed(c clients.Client) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.nextID
	}
	if c.ID >= m.nextID {
		m.nextID = c.ID + 1
	}
	if mg, ok := m.managers[c.Manager.ID]; ok {
		c.Manager = mg
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
		c.UpdatedAt = c.CreatedAt
	}
	m.clients[c.ID] = c
	return c.ID
}

// Snapshot returns the stored copy of client id.
func (m *Memory) Snapshot(id int64) (clients.Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	return c, ok
}

// Len returns the number of stored clients.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, clients.Repository) error) error {
	if m.TxErr != nil {
		return m.TxErr
	}
	m.mu.Lock()
	backup := make(map[int64]clients.Client, len(m.clients))
	for k, v := range m.clients {
		backup[k] = v
	}
	next := m.nextID
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.clients = backup
		m.nextID = next
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) List(ctx context.Context, q clients.ListQuery) ([]clients.Client, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(q.Search))
	var out []clients.Client
	for _, c := range m.clients {
		if q.ManagerID > 0 && c.Manager.ID != q.ManagerID {
			continue
		}
		if term != "" && !matches(c, term) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if q.Page.Size > 0 {
		start := q.Page.Offset()
		if start > total {
			start = total
		}
		end := start + q.Page.Size
		if end > total {
			end = total
		}
		out = out[start:end]
	}
	return out, total, nil
}

func matches(c clients.Client, term string) bool {
	fields := []string{c.Name, c.Email}
	if c.Company != nil {
		fields = append(fields, *c.Company)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func (m *Memory) Get(ctx context.Context, id int64) (*clients.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) Create(ctx context.Context, in clients.NewClient, actorID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mg, ok := m.managers[in.ManagerID]
	if !ok {
		return 0, httpx.Invalid("manager_id", "Unknown manager.")
	}
	for _, c := range m.clients {
		if strings.EqualFold(c.Email, in.Email) {
			return 0, httpx.Invalid("email", "A client with this email is already registered.")
		}
	}
	now := m.now()
	id := m.nextID
	m.nextID++
	actor := actorID
	m.clients[id] = clients.Client{
		ID:        id,
		Name:      in.Name,
		Email:     in.Email,
		Company:   in.Company,
		Address:   in.Address,
		Notes:     in.Notes,
		Manager:   mg,
		CreatedBy: &actor,
		UpdatedBy: &actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (m *Memory) Update(ctx context.Context, id int64, ch clients.Changes, actorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if ch.Name != nil {
		c.Name = *ch.Name
	}
	if ch.Email != nil {
		c.Email = *ch.Email
	}
	if ch.Company != nil {
		c.Company = ch.Company
	}
	if ch.Address != nil {
		c.Address = ch.Address
	}
	if ch.Notes != nil {
		c.Notes = ch.Notes
	}
	if ch.ManagerID != nil {
		mg, ok := m.managers[*ch.ManagerID]
		if !ok {
			return httpx.Invalid("manager_id", "Unknown manager.")
		}
		c.Manager = mg
	}
	actor := actorID
	c.UpdatedBy = &actor
	c.UpdatedAt = m.now()
	m.clients[id] = c
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *Memory) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.ID != excludeID && strings.EqualFold(c.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountClientsByManager(ctx context.Context, managerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.clients {
		if c.Manager.ID == managerID {
			n++
		}
	}
	return n, nil
}
