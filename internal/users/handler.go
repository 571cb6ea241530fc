package users

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Account actions.
const (
	ActionRegistration resource.Action = "registration"
	ActionActivate     resource.Action = "activate"
	ActionUserList     resource.Action = "user_list"
	ActionUserSearch   resource.Action = "user_search"
	ActionUserUpdate   resource.Action = "user_update"
)

// Site describes the public site used in mailed links.
type Site struct {
	Name     string
	Domain   string
	Protocol string
}

// DefaultSiteDomain is used in mailed links when no domain is configured.
const DefaultSiteDomain = "localhost"

// MailContext builds the notification context for userID. Links always point
// at the configured domain; the request Host is client controlled and never
// used.
func (s Site) MailContext(r *http.Request, userID int64) MailContext {
	mc := MailContext{UserID: userID, SiteName: s.Name, Domain: s.Domain, Protocol: s.Protocol}
	if mc.Domain == "" {
		mc.Domain = DefaultSiteDomain
	}
	if mc.SiteName == "" {
		mc.SiteName = mc.Domain
	}
	if mc.Protocol == "" {
		mc.Protocol = "http"
		if r.TLS != nil {
			mc.Protocol = "https"
		}
	}
	return mc
}

// Handler manages account endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	site     Site
	res      *resource.Resource[User]
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, site Site) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validate,
		site:     site,
		res:      NewResource(logger),
	}
}

// NewResource declares the schemas and permissions of the account actions.
func NewResource(logger *slog.Logger) *resource.Resource[User] {
	return resource.Must(resource.Config[User]{
		Name:          "users",
		DefaultSchema: UserListSchema,
		Schemas: map[resource.Action]resource.Schema[User]{
			ActionRegistration: RegistrationSchema,
			ActionUserList:     UserListSchema,
			ActionUserSearch:   UserSearchSchema,
			ActionUserUpdate:   UserUpdateSchema,
		},
		DefaultPermissions: resource.Perms(resource.IsAuthenticated),
		Permissions: map[resource.Action][]resource.PermissionFactory{
			ActionRegistration: resource.Perms(resource.AllowAny),
			ActionActivate:     resource.Perms(resource.AllowAny),
		},
		Logger: logger,
	})
}

// Schemas of the account actions.
var (
	UserListSchema = resource.NewSchema("UserList", func(u User) any {
		return userView{
			ID:          u.ID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			FullName:    u.FullName(),
			Email:       u.Email,
			Role:        string(u.Role),
			IsActive:    u.IsActive,
			DateJoined:  u.DateJoined,
			PhoneNumber: u.Profile.PhoneNumber,
			Photo:       u.Profile.Photo,
		}
	})
	RegistrationSchema = resource.NewSchema("Registration", func(u User) any {
		return map[string]any{"id": u.ID, "full_name": u.FullName(), "email": u.Email}
	})
	UserSearchSchema = resource.NewSchema("UserSearchList", func(u User) any {
		return map[string]any{"id": u.ID, "username": u.Username, "email": u.Email, "full_name": u.FullName()}
	})
	UserUpdateSchema = resource.NewSchema("UserUpdate", func(u User) any {
		return map[string]any{
			"id":           u.ID,
			"username":     u.Username,
			"first_name":   u.FirstName,
			"last_name":    u.LastName,
			"email":        u.Email,
			"phone_number": u.Profile.PhoneNumber,
		}
	})
)

type userView struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	DateJoined  time.Time `json:"date_joined"`
	PhoneNumber *string   `json:"phone_number"`
	Photo       *string   `json:"photo"`
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	resource.MustMount(r, h.res, h.Routes())
}

// Routes lists the account actions.
func (h *Handler) Routes() []resource.Route {
	return []resource.Route{
		{Method: http.MethodPost, Pattern: "/registration", Action: ActionRegistration, Handler: h.registration},
		{Method: http.MethodPost, Pattern: "/activate", Action: ActionActivate, Handler: h.activate},
		{Method: http.MethodGet, Pattern: "/user_list", Action: ActionUserList, Handler: h.userList},
		{Method: http.MethodGet, Pattern: "/user_search", Action: ActionUserSearch, Handler: h.userSearch},
		{Method: http.MethodPut, Pattern: "/user_update", Action: ActionUserUpdate, Handler: h.userUpdate},
		{Method: http.MethodPatch, Pattern: "/user_update", Action: ActionUserUpdate, Handler: h.userUpdate},
	}
}

func (h *Handler) registration(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[RegistrationRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Register(r.Context(), Registration{
		Email:     in.Email,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
	}, h.site.MailContext(r, 0))
	if err != nil {
		h.fail(w, "registration", err)
		return
	}
	h.res.Respond(w, r, http.StatusCreated, *user)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	in, err := resource.Decode[ActivationRequest](r, h.validate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Activate(r.Context(), in.UID, in.Token); err != nil {
		h.fail(w, "activate", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) userList(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	user, err := h.service.Get(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "user list", err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, *user)
}

func (h *Handler) userSearch(w http.ResponseWriter, r *http.Request) {
	q := SearchQuery{Term: r.URL.Query().Get("search")}
	if ordering := r.URL.Query().Get("ordering"); ordering != "" {
		for _, field := range strings.Split(ordering, ",") {
			if field = strings.TrimSpace(field); field != "" {
				q.Ordering = append(q.Ordering, field)
			}
		}
	}
	users, err := h.service.Search(r.Context(), q)
	if err != nil {
		h.fail(w, "user search", err)
		return
	}
	h.res.RespondList(w, r, users)
}

func (h *Handler) userUpdate(w http.ResponseWriter, r *http.Request) {
	var changes Changes
	if r.Method == http.MethodPut {
		in, err := resource.Decode[UpdateUserRequest](r, h.validate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		changes = in.Changes()
	} else {
		in, err := resource.Decode[PatchUserRequest](r, h.validate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		changes = in.Changes()
	}
	principal := shared.PrincipalFromContext(r.Context())
	user, err := h.service.Update(r.Context(), principal.UserID, changes)
	if err != nil {
		h.fail(w, "user update", err)
		return
	}
	h.res.Respond(w, r, http.StatusOK, *user)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
