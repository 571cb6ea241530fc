package clients

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

// ActionSearch is the client lookup action.
const ActionSearch resource.Action = "search"

// Handler serves the client resource.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	res      *resource.Resource[Client]
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate, res: NewResource(logger)}
}

// NewResource declares the client schemas and permissions. Managers work
// with clients; only administrators delete them.
func NewResource(logger *slog.Logger) *resource.Resource[Client] {
	return resource.Must(resource.Config[Client]{
		Name:          "clients",
		DefaultSchema: ClientListSchema,
		Schemas: map[resource.Action]resource.Schema[Client]{
			resource.ActionList:          ClientListSchema,
			resource.ActionRetrieve:      ClientListSchema,
			ActionSearch:                 ClientSearchSchema,
			resource.ActionCreate:        CreateClientSchema,
			resource.ActionUpdate:        ClientUpdateSchema,
			resource.ActionPartialUpdate: ClientUpdateSchema,
		},
		DefaultPermissions: resource.Perms(resource.IsManager),
		Permissions: map[resource.Action][]resource.PermissionFactory{
			resource.ActionDestroy: resource.Perms(resource.IsAdmin),
		},
		Logger: logger,
	})
}

// Client schemas.
var (
	ClientListSchema   = resource.NewSchema("ClientList", ListView)
	ClientSearchSchema = resource.NewSchema("ClientSearch", func(c Client) any {
		return map[string]any{"id": c.ID, "email": c.Email, "manager": ManagerView(c.Manager)}
	})
	CreateClientSchema = resource.NewSchema("CreateClient", func(c Client) any {
		return map[string]any{"id": c.ID, "email": c.Email, "name": c.Name}
	})
	ClientUpdateSchema = resource.NewSchema("ClientUpdate", func(c Client) any {
		return map[string]any{
			"id":      c.ID,
			"name":    c.Name,
			"email":   c.Email,
			"company": c.Company,
			"address": c.Address,
			"notes":   c.Notes,
		}
	})
)

type managerView struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// ManagerView renders the nested manager of a client.
func ManagerView(m Manager) any {
	return managerView{
		ID:        m.ID,
		Username:  m.Username,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		FullName:  m.FirstName + " | " + m.LastName,
		Email:     m.Email,
		Role:      string(m.Role),
	}
}

type clientView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Manager   any       `json:"manager"`
	Company   *string   `json:"company"`
	Address   *string   `json:"address"`
	CreatedBy *int64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Notes     *string   `json:"notes"`
}

// ListView renders the full client representation.
func ListView(c Client) any {
	return clientView{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Manager:   ManagerView(c.Manager),
		Company:   c.Company,
		Address:   c.Address,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		Notes:     c.Notes,
	}
}

// ShortView renders the compact client representation nested in deals.
func ShortView(c Client) any {
	return map[string]any{
		"id":         c.ID,
		"name":       c.Name,
		"email":      c.Email,
		"manager":    ManagerView(c.Manager),
		"created_by": c.CreatedBy,
	}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	resource.MustMount(r, h.res, h.Routes())
}

// Routes lists the client actions.
func (h *Handler) Routes() []resource.Route {
	return resource.Routes(h, resource.Route{Method: http.MethodGet, Pattern: "/search", Action: ActionSearch, Handler: h.Search})
}

func listQuery(r *http.Request) ListQuery {
	q := ListQuery{Search: r.URL.Query().Get("search"), Page: shared.ParsePageRequest(r)}
	if m, err := strconv.ParseInt(r.URL.Query().Get("manager"), 10, 64); err == nil && m > 0 {
		q.ManagerID = m
	}
	return q
}

// List pages through clients.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, listQuery(r))
}

// Search looks clients up by name, email or company.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, listQuery(r))
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, q ListQuery) {
	items, total, err := h.service.List(r.Context(), q)
	if err != nil {
		h.fail(w, "list clients", err)
		return
	}
	h.res.RespondPage(w, r, q.Page, total, items)
}

// Retrieve shows one client.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	id, err := resource.ID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get client", err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, *c)
}

// Create registers a client.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[CreateClientRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), in.NewClient())
	if err != nil {
		h.fail(w, "create client", err)
		return
	}
	h.res.Respond(w, r, http.StatusCreated, *c)
}

// Update replaces the editable fields of a client.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[UpdateClientRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.update(w, r, in.Changes())
}

// PartialUpdate changes the fields present in the body.
func (h *Handler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[PatchClientRequest](r, h.validate)
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
	c, err := h.service.Update(r.Context(), shared.PrincipalFromContext(r.Context()), id, changes)
	if err != nil {
		h.fail(w, "update client", err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, *c)
}

// Destroy deletes a client.
func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := resource.ID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete client", err)
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
