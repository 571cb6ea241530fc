package users

import (
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// User represents an account.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Email        string
	Role         shared.Role
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	LastLogin    *time.Time
	DateJoined   time.Time
	Profile      Profile
}

// Profile holds optional contact details of a user.
type Profile struct {
	PhoneNumber *string
	Photo       *string
	UpdatedAt   time.Time
}

// FullName renders the display name used across listings.
func (u User) FullName() string {
	return u.FirstName + " | " + u.LastName
}

// Principal converts the account into the request principal.
func (u User) Principal() *shared.Principal {
	return &shared.Principal{
		UserID:      u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}

// SearchQuery filters and orders the user search.
type SearchQuery struct {
	Term     string
	Ordering []string
}

// Changes lists the fields of a user update. Nil fields are left untouched.
type Changes struct {
	Username    *string
	FirstName   *string
	LastName    *string
	Email       *string
	PhoneNumber *string
}

// MailContext is the deferred context handed to notification jobs. The
// account is identified by id and re-read when the job runs.
type MailContext struct {
	UserID   int64  `json:"user_id"`
	SiteName string `json:"site_name"`
	Domain   string `json:"domain"`
	Protocol string `json:"protocol"`
}
