// Package tasks holds the to-do items managers keep against clients and deals.
package tasks

import (
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Status is the completion state of a task.
type Status string

// Task statuses.
const (
	StatusPending   Status = "PEN"
	StatusCompleted Status = "COM"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Priority orders tasks by urgency.
type Priority string

// Task priorities.
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MID"
	PriorityHigh   Priority = "HIG"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a dated item of work owned by a manager, optionally tied to a
// client and a deal.
type Task struct {
	ID          int64
	Name        string
	Description string
	Status      Status
	DueDate     time.Time
	Priority    Priority
	ManagerID   int64
	ClientID    *int64
	DealID      *int64
	Notes       *string
	CreatedBy   *int64
	UpdatedBy   *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListQuery filters a task listing.
type ListQuery struct {
	Status   Status
	Priority Priority
	ClientID int64
	DealID   int64
	Page     shared.PageRequest
}

// NewTask carries the fields of a task to create.
type NewTask struct {
	Name        string
	Description string
	Status      Status
	DueDate     time.Time
	Priority    Priority
	ClientID    *int64
	DealID      *int64
	Notes       *string
	ManagerID   int64
}

// Link is an optional reference in an update. ID zero clears it.
type Link struct {
	ID int64
}

// Changes lists the fields of a task update. Nil fields are left untouched.
type Changes struct {
	Name        *string
	Description *string
	Status      *Status
	DueDate     *time.Time
	Priority    *Priority
	Notes       *string
	Client      *Link
	Deal        *Link
}

// Empty reports whether no field is changed.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Description == nil && c.Status == nil && c.DueDate == nil &&
		c.Priority == nil && c.Notes == nil && c.Client == nil && c.Deal == nil
}
