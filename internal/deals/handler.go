package deals

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Handler serves the deal resource. Deals have no detail read and no full
// replacement.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	res      *resource.Resource[Deal]
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate, res: NewResource(logger)}
}

// NewResource declares the deal schemas and permissions.
func NewResource(logger *slog.Logger) *resource.Resource[Deal] {
	return resource.Must(resource.Config[Deal]{
		Name: "deals",
		Schemas: map[resource.Action]resource.Schema[Deal]{
			resource.ActionList:          DealListSchema,
			resource.ActionCreate:        DealCreateSchema,
			resource.ActionPartialUpdate: DealListSchema,
			resource.ActionDestroy:       DealListSchema,
		},
		DefaultPermissions: resource.Perms(resource.IsManager),
		Logger:             logger,
	})
}

type dealView struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status_deal"`
	Amount int    `json:"amount"`
	Client any    `json:"client"`
}

// Deal schemas. Listings nest the full client, creation the short one.
var (
	DealListSchema = resource.NewSchema("DealList", func(d Deal) any {
		return dealView{ID: d.ID, Name: d.Name, Status: string(d.Status), Amount: d.Amount, Client: clients.ListView(d.Client)}
	})
	DealCreateSchema = resource.NewSchema("DealCreate", func(d Deal) any {
		return dealView{ID: d.ID, Name: d.Name, Status: string(d.Status), Amount: d.Amount, Client: clients.ShortView(d.Client)}
	})
)

// MountRoutes registers deal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	resource.MustMount(r, h.res, resource.Routes(h))
}

// List pages through deals, optionally filtered by status or client.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := ListQuery{Page: shared.ParsePageRequest(r)}
	if s := Status(r.URL.Query().Get("status_deal")); s.Valid() {
		q.Status = s
	}
	if id, err := strconv.ParseInt(r.URL.Query().Get("client"), 10, 64); err == nil && id > 0 {
		q.ClientID = id
	}
	items, total, err := h.service.List(r.Context(), q)
	if err != nil {
		h.fail(w, "list deals", err)
		return
	}
	h.res.RespondPage(w, r, q.Page, total, items)
}

// Create opens a deal for the acting manager.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[CreateDealRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), in.NewDeal())
	if err != nil {
		h.fail(w, "create deal", err)
		return
	}
	h.res.Respond(w, r, http.StatusCreated, *d)
}

// PartialUpdate changes the fields present in the body.
func (h *Handler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := resource.ID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := resource.Decode[PatchDealRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Update(r.Context(), shared.PrincipalFromContext(r.Context()), id, in.Changes())
	if err != nil {
		h.fail(w, "update deal", err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, *d)
}

// Destroy deletes a deal.
func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := resource.ID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete deal", err)
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
