package tasks

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Handler serves the task resource.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	res      *resource.Resource[Task]
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate, res: NewResource(logger)}
}

// NewResource declares the task schemas and permissions.
func NewResource(logger *slog.Logger) *resource.Resource[Task] {
	return resource.Must(resource.Config[Task]{
		Name:          "tasks",
		DefaultSchema: TaskListSchema,
		Schemas: map[resource.Action]resource.Schema[Task]{
			resource.ActionCreate:        TaskWriteSchema,
			resource.ActionUpdate:        TaskWriteSchema,
			resource.ActionPartialUpdate: TaskWriteSchema,
		},
		DefaultPermissions: resource.Perms(resource.IsManager),
		Logger:             logger,
	})
}

type taskView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status_task"`
	DueDate     time.Time `json:"due_date"`
	Priority    string    `json:"priority"`
	Client      *int64    `json:"client"`
	Deal        *int64    `json:"deal"`
}

type taskListView struct {
	taskView
	Manager   int64     `json:"manager"`
	Notes     *string   `json:"notes"`
	CreatedBy *int64    `json:"created_by"`
	UpdatedBy *int64    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func view(t Task) taskView {
	return taskView{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Status:      string(t.Status),
		DueDate:     t.DueDate,
		Priority:    string(t.Priority),
		Client:      t.ClientID,
		Deal:        t.DealID,
	}
}

// Task schemas.
var (
	TaskListSchema = resource.NewSchema("TaskList", func(t Task) any {
		return taskListView{
			taskView:  view(t),
			Manager:   t.ManagerID,
			Notes:     t.Notes,
			CreatedBy: t.CreatedBy,
			UpdatedBy: t.UpdatedBy,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		}
	})
	TaskWriteSchema = resource.NewSchema("TaskWrite", func(t Task) any { return view(t) })
)

// MountRoutes registers task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	resource.MustMount(r, h.res, resource.Routes(h))
}

// List pages through tasks ordered by due date.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := ListQuery{Page: shared.ParsePageRequest(r)}
	if s := Status(query.Get("status_task")); s.Valid() {
		q.Status = s
	}
	if p := Priority(query.Get("priority")); p.Valid() {
		q.Priority = p
	}
	if id, err := strconv.ParseInt(query.Get("client"), 10, 64); err == nil && id > 0 {
		q.ClientID = id
	}
	if id, err := strconv.ParseInt(query.Get("deal"), 10, 64); err == nil && id > 0 {
		q.DealID = id
	}
	items, total, err := h.service.List(r.Context(), q)
	if err != nil {
		h.fail(w, "list tasks", err)
		return
	}
	h.res.RespondPage(w, r, q.Page, total, items)
}

// Create records a task for the acting manager.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[CreateTaskRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), in.NewTask())
	if err != nil {
		h.fail(w, "create task", err)
		return
	}
	h.res.Respond(w, r, http.StatusCreated, *t)
}

// Update replaces a task.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[UpdateTaskRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.update(w, r, in.Changes())
}

// PartialUpdate changes the fields present in the body.
func (h *Handler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[PatchTaskRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.update(w, r, in.Changes())
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, changes Changes) {
	id, err := resource.ID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Update(r.Context(), shared.PrincipalFromContext(r.Context()), id, changes)
	if err != nil {
		h.fail(w, "update task", err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, *t)
}

// Destroy deletes a task.
func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := resource.ID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete task", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
