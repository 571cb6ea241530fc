package password

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// Password actions.
const (
	ActionChangePassword       resource.Action = "change_password"
	ActionResetPassword        resource.Action = "reset_password"
	ActionResetPasswordConfirm resource.Action = "reset_password_confirm"
)

// ChangePasswordRequest is the body of change_password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ResetPasswordRequest is the body of reset_password.
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordConfirmRequest is the body of reset_password_confirm.
type ResetPasswordConfirmRequest struct {
	UID         string `json:"uid" validate:"required"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Every password action answers 204, so the schemas render nothing.
var (
	ChangePasswordSchema       = resource.NewSchema("ChangePassword", func(users.User) any { return nil })
	ResetPasswordSchema        = resource.NewSchema("ResetPassword", func(users.User) any { return nil })
	ResetPasswordConfirmSchema = resource.NewSchema("ResetPasswordConfirm", func(users.User) any { return nil })
)

// Handler exposes the password actions.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	site     users.Site
	res      *resource.Resource[users.User]
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, site users.Site) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	res := resource.Must(resource.Config[users.User]{
		Name:          "password",
		DefaultSchema: ChangePasswordSchema,
		Schemas: map[resource.Action]resource.Schema[users.User]{
			ActionResetPassword:        ResetPasswordSchema,
			ActionResetPasswordConfirm: ResetPasswordConfirmSchema,
		},
		DefaultPermissions: resource.Perms(resource.IsAuthenticated),
		Permissions: map[resource.Action][]resource.PermissionFactory{
			ActionResetPassword:        resource.Perms(resource.AllowAny),
			ActionResetPasswordConfirm: resource.Perms(resource.AllowAny),
		},
		Logger: logger,
	})
	return &Handler{logger: logger, service: service, validate: validate, site: site, res: res}
}

// MountRoutes registers password routes.
func (h *Handler) MountRoutes(r chi.Router) {
	resource.MustMount(r, h.res, []resource.Route{
		{Method: http.MethodPost, Pattern: "/change_password", Action: ActionChangePassword, Handler: h.changePassword},
		{Method: http.MethodPost, Pattern: "/reset_password", Action: ActionResetPassword, Handler: h.resetPassword},
		{Method: http.MethodPost, Pattern: "/reset_password_confirm", Action: ActionResetPasswordConfirm, Handler: h.resetPasswordConfirm},
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[ChangePasswordRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), principal.UserID, in.OldPassword, in.NewPassword); err != nil {
		h.fail(w, "change password", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[ResetPasswordRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RequestReset(r.Context(), in.Email, h.site.MailContext(r, 0)); err != nil {
		h.fail(w, "reset password", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) resetPasswordConfirm(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[ResetPasswordConfirmRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ConfirmReset(r.Context(), in.UID, in.Token, in.NewPassword, h.site.MailContext(r, 0)); err != nil {
		h.fail(w, "reset password confirm", err)
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
