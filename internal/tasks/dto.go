package tasks

import "time"

// CreateTaskRequest is the body of the create action.
type CreateTaskRequest struct {
	Name        string    `json:"name" validate:"required,max=255"`
	Description string    `json:"description" validate:"required"`
	Status      string    `json:"status_task" validate:"omitempty,oneof=PEN COM"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Priority    string    `json:"priority" validate:"omitempty,oneof=LOW MID HIG"`
	Client      *int64    `json:"client" validate:"omitempty,gt=0"`
	Deal        *int64    `json:"deal" validate:"omitempty,gt=0"`
	Notes       *string   `json:"notes"`
}

// NewTask converts the request.
func (r CreateTaskRequest) NewTask() NewTask {
	return NewTask{
		Name:        r.Name,
		Description: r.Description,
		Status:      Status(r.Status),
		DueDate:     r.DueDate,
		Priority:    Priority(r.Priority),
		ClientID:    r.Client,
		DealID:      r.Deal,
		Notes:       r.Notes,
	}
}

// UpdateTaskRequest is the body of a full update. Omitted references are
// cleared and omitted choices fall back to their defaults.
type UpdateTaskRequest CreateTaskRequest

// Changes replaces every editable field.
func (r UpdateTaskRequest) Changes() Changes {
	status := Status(r.Status)
	if status == "" {
		status = StatusPending
	}
	priority := Priority(r.Priority)
	if priority == "" {
		priority = PriorityMedium
	}
	notes := ""
	if r.Notes != nil {
		notes = *r.Notes
	}
	return Changes{
		Name:        &r.Name,
		Description: &r.Description,
		Status:      &status,
		DueDate:     &r.DueDate,
		Priority:    &priority,
		Notes:       &notes,
		Client:      link(r.Client),
		Deal:        link(r.Deal),
	}
}

func link(id *int64) *Link {
	if id == nil {
		return &Link{}
	}
	return &Link{ID: *id}
}

// PatchTaskRequest is the body of a partial update.
type PatchTaskRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description" validate:"omitempty,min=1"`
	Status      *string    `json:"status_task" validate:"omitempty,oneof=PEN COM"`
	DueDate     *time.Time `json:"due_date"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=LOW MID HIG"`
	Client      *int64     `json:"client" validate:"omitempty,gt=0"`
	Deal        *int64     `json:"deal" validate:"omitempty,gt=0"`
	Notes       *string    `json:"notes"`
}

// Changes returns the fields the request names.
func (r PatchTaskRequest) Changes() Changes {
	c := Changes{Name: r.Name, Description: r.Description, DueDate: r.DueDate, Notes: r.Notes}
	if r.Status != nil {
		s := Status(*r.Status)
		c.Status = &s
	}
	if r.Priority != nil {
		p := Priority(*r.Priority)
		c.Priority = &p
	}
	if r.Client != nil {
		c.Client = &Link{ID: *r.Client}
	}
	if r.Deal != nil {
		c.Deal = &Link{ID: *r.Deal}
	}
	return c
}
