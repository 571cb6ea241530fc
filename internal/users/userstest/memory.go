// Package userstest provides an in-memory users.Repository for tests.
package userstest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// Memory is a map backed repository. Transactions snapshot the store and
// restore it when the callback fails.
type Memory struct {
	mu     sync.Mutex
	users  map[int64]users.User
	nextID int64

	// Error injection
	TxErr          error
	SetPasswordErr error
	TouchErr       error
}

// New returns an empty repository.
func New() *Memory {
	return &Memory{users: make(map[int64]users.User), nextID: 1}
}

// Seed stores u and returns its id.
func (m *Memory) Seed(u users.User) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.nextID
	}
	if u.ID >= m.nextID {
		m.nextID = u.ID + 1
	}
	m.users[u.ID] = u
	return u.ID
}

// Snapshot returns the stored copy of the user id.
func (m *Memory) Snapshot(id int64) (users.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok
}

// Delete removes the user id.
func (m *Memory) Delete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, users.Repository) error) error {
	if m.TxErr != nil {
		return m.TxErr
	}
	m.mu.Lock()
	backup := make(map[int64]users.User, len(m.users))
	for k, v := range m.users {
		backup[k] = v
	}
	next := m.nextID
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.users = backup
		m.nextID = next
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id int64) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) find(match func(users.User) bool) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *Memory) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return m.find(func(u users.User) bool { return u.Username == username })
}

func (m *Memory) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return m.find(func(u users.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *Memory) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	_, err := m.find(func(u users.User) bool { return u.ID != excludeID && strings.EqualFold(u.Email, email) })
	return err == nil, nil
}

func (m *Memory) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	_, err := m.find(func(u users.User) bool { return u.ID != excludeID && u.Username == username })
	return err == nil, nil
}

func (m *Memory) PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	_, err := m.find(func(u users.User) bool {
		return u.ID != excludeID && u.Profile.PhoneNumber != nil && *u.Profile.PhoneNumber == phone
	})
	return err == nil, nil
}

func (m *Memory) Create(ctx context.Context, u users.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			return 0, fmt.Errorf("%w: user already exists", httpx.ErrDuplicate)
		}
	}
	u.ID = m.nextID
	m.nextID++
	u.DateJoined = time.Now().UTC()
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *Memory) Search(ctx context.Context, q users.SearchQuery) ([]users.User, error) {
	m.mu.Lock()
	var out []users.User
	term := strings.ToLower(strings.TrimSpace(q.Term))
	for _, u := range m.users {
		if term == "" || matches(u, term) {
			out = append(out, u)
		}
	}
	m.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		for _, field := range q.Ordering {
			desc := strings.HasPrefix(field, "-")
			var less, greater bool
			switch strings.TrimPrefix(field, "-") {
			case "username":
				less, greater = out[i].Username < out[j].Username, out[i].Username > out[j].Username
			case "id":
				less, greater = out[i].ID < out[j].ID, out[i].ID > out[j].ID
			default:
				continue
			}
			if desc {
				less, greater = greater, less
			}
			if less || greater {
				return less
			}
		}
		return false
	})
	return out, nil
}

func matches(u users.User, term string) bool {
	for _, v := range []string{strconv.FormatInt(u.ID, 10), u.Username, u.FirstName, u.LastName, u.Email} {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func (m *Memory) Update(ctx context.Context, id int64, c users.Changes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if c.Username != nil {
		u.Username = *c.Username
	}
	if c.FirstName != nil {
		u.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		u.LastName = *c.LastName
	}
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.PhoneNumber != nil {
		if *c.PhoneNumber == "" {
			u.Profile.PhoneNumber = nil
		} else {
			phone := *c.PhoneNumber
			u.Profile.PhoneNumber = &phone
		}
	}
	m.users[id] = u
	return nil
}

func (m *Memory) mutate(id int64, fn func(*users.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *Memory) SetActive(ctx context.Context, id int64, active bool) error {
	return m.mutate(id, func(u *users.User) { u.IsActive = active })
}

func (m *Memory) SetPassword(ctx context.Context, id int64, hash string) error {
	if m.SetPasswordErr != nil {
		return m.SetPasswordErr
	}
	return m.mutate(id, func(u *users.User) { u.PasswordHash = hash })
}

func (m *Memory) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if m.TouchErr != nil {
		return m.TouchErr
	}
	return m.mutate(id, func(u *users.User) { u.LastLogin = &at })
}

var _ users.Repository = (*Memory)(nil)
