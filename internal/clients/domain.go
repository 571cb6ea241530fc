// Package clients manages the customers a manager is responsible for.
package clients

import (
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Manager is the owning account as shown on client listings.
type Manager struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Email     string
	Role      shared.Role
}

// Client is a customer record owned by a manager.
type Client struct {
	ID        int64
	Name      string
	Email     string
	Company   *string
	Address   *string
	Notes     *string
	Manager   Manager
	CreatedBy *int64
	UpdatedBy *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListQuery filters a client listing.
type ListQuery struct {
	Search    string
	ManagerID int64
	Page      shared.PageRequest
}

// NewClient carries the fields of a client to create. ManagerID zero means
// the acting user.
type NewClient struct {
	Name      string
	Email     string
	Company   *string
	Address   *string
	Notes     *string
	ManagerID int64
}

// Changes lists the fields of a client update. Nil fields are left untouched.
type Changes struct {
	Name      *string
	Email     *string
	Company   *string
	Address   *string
	Notes     *string
	ManagerID *int64
}

// Empty reports whether no field is changed.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Email == nil && c.Company == nil && c.Address == nil && c.Notes == nil && c.ManagerID == nil
}
