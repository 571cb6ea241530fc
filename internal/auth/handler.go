package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// JWT actions.
const (
	ActionCreate  resource.Action = "jwt_create"
	ActionRefresh resource.Action = "jwt_refresh"
	ActionVerify  resource.Action = "jwt_verify"
)

// Schemas of the JWT actions.
var (
	TokenPairSchema = resource.NewSchema("TokenObtainPair", func(p TokenPair) any {
		return map[string]string{"access": p.Access, "refresh": p.Refresh}
	})
	TokenRefreshSchema = resource.NewSchema("TokenRefresh", func(p TokenPair) any {
		return map[string]string{"access": p.Access}
	})
	TokenVerifySchema = resource.NewSchema("TokenVerify", func(TokenPair) any {
		return struct{}{}
	})
)

type createRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// Handler wires HTTP endpoints for token flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	res      *resource.Resource[TokenPair]
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	res := resource.Must(resource.Config[TokenPair]{
		Name:          "jwt",
		DefaultSchema: TokenPairSchema,
		Schemas: map[resource.Action]resource.Schema[TokenPair]{
			ActionRefresh: TokenRefreshSchema,
			ActionVerify:  TokenVerifySchema,
		},
		DefaultPermissions: resource.Perms(resource.AllowAny),
		Logger:             logger,
	})
	return &Handler{logger: logger, service: service, validate: validate, res: res}
}

// MountRoutes registers token routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	resource.MustMount(r, h.res, []resource.Route{
		{Method: http.MethodPost, Pattern: "/jwt/create", Action: ActionCreate, Handler: h.create},
		{Method: http.MethodPost, Pattern: "/jwt/refresh", Action: ActionRefresh, Handler: h.refresh},
		{Method: http.MethodPost, Pattern: "/jwt/verify", Action: ActionVerify, Handler: h.verify},
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[createRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pair, err := h.service.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[refreshRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	access, err := h.service.Refresh(r.Context(), in.Refresh)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, TokenPair{Access: access})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[verifyRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Verify(in.Token); err != nil {
		h.fail(w, err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, TokenPair{})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		err = fmt.Errorf("%w: no active account found with the given credentials", httpx.ErrUnauthorized)
	case errors.Is(err, shared.ErrInvalidToken):
		err = fmt.Errorf("%w: token is invalid or expired", httpx.ErrUnauthorized)
	default:
		h.logger.Error("token request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
