package analytics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Analytics actions.
const (
	ActionGraph   resource.Action = "graph"
	ActionSummary resource.Action = "summary"
)

// DefaultRateLimit is the per-caller request budget per minute.
const DefaultRateLimit = 30

// SummarySchema renders the summary as-is.
var SummarySchema = resource.NewSchema("Analytics", func(s Summary) any { return s })

// Handler serves the analytics endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	limit   int
	res     *resource.Resource[Summary]
}

// NewHandler builds Handler instance. limit is requests per minute per
// caller; zero uses DefaultRateLimit.
func NewHandler(logger *slog.Logger, service *Service, limit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	res := resource.Must(resource.Config[Summary]{
		Name:               "analytics",
		DefaultSchema:      SummarySchema,
		DefaultPermissions: resource.Perms(resource.IsAuthenticated),
		Logger:             logger,
	})
	return &Handler{logger: logger, service: service, limit: limit, res: res}
}

// MountRoutes registers analytics routes behind the rate limiter.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(h.limit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "analytics rate limit exceeded")
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		resource.MustMount(gr, h.res, []resource.Route{
			{Method: http.MethodGet, Pattern: "/graph", Action: ActionGraph, Handler: h.Graph},
			{Method: http.MethodGet, Pattern: "/summary", Action: ActionSummary, Handler: h.Summary},
		})
	})
}

// rateLimitKey buckets authenticated callers by account and the rest by IP.
func rateLimitKey(r *http.Request) (string, error) {
	if p := shared.PrincipalFromContext(r.Context()); p != nil && p.UserID > 0 {
		return "user:" + strconv.FormatInt(p.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

// Graph streams the monthly income chart.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Graph(r.Context())
	if err != nil {
		h.fail(w, "render analytics graph", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// Summary returns deals by status and income by month.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, "analytics summary", err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, sum)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
