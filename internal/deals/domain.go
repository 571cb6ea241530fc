// Package deals tracks the sales opportunities opened with clients.
package deals

import (
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Status is the lifecycle stage of a deal.
type Status string

// Deal statuses.
const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "PRG"
	StatusCompleted  Status = "COM"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// MaxAmount is the largest amount a deal may carry.
const MaxAmount = 32767

// Deal is an opportunity with a client, owned by a manager.
type Deal struct {
	ID        int64
	Name      string
	Status    Status
	Amount    int
	Notes     *string
	ManagerID int64
	Client    clients.Client
	CreatedBy *int64
	UpdatedBy *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListQuery filters a deal listing.
type ListQuery struct {
	Status   Status
	ClientID int64
	Page     shared.PageRequest
}

// NewDeal carries the fields of a deal to create.
type NewDeal struct {
	Name      string
	Status    Status
	Amount    int
	Notes     *string
	ClientID  int64
	ManagerID int64
}

// Changes lists the fields of a partial update. Nil fields are left untouched.
type Changes struct {
	Name     *string
	Status   *Status
	Amount   *int
	Notes    *string
	ClientID *int64
}

// Empty reports whether no field is changed.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Status == nil && c.Amount == nil && c.Notes == nil && c.ClientID == nil
}
