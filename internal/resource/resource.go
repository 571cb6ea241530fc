package resource

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// ErrMisconfigured reports a resource that cannot resolve a schema for an
// operation it exposes. It is raised while wiring routes, never per request.
var ErrMisconfigured = errors.New("resource misconfigured")

// Config declares the schemas and permissions of a resource.
type Config[T any] struct {
	Name               string
	DefaultSchema      Schema[T]
	Schemas            map[Action]Schema[T]
	DefaultPermissions []PermissionFactory
	Permissions        map[Action][]PermissionFactory
	Logger             *slog.Logger
}

// Resource resolves per-action schemas and permissions with resource-wide
// defaults as fallback.
type Resource[T any] struct {
	name        string
	schema      Schema[T]
	schemas     map[Action]Schema[T]
	permissions []PermissionFactory
	perAction   map[Action][]PermissionFactory
	logger      *slog.Logger
}

// New validates cfg and builds the resource. A resource with neither a default
// schema nor any per-action schema is rejected.
func New[T any](cfg Config[T]) (*Resource[T], error) {
	if cfg.DefaultSchema == nil && len(cfg.Schemas) == 0 {
		return nil, fmt.Errorf("%w: %s declares neither a default schema nor per-action schemas", ErrMisconfigured, cfg.Name)
	}
	for action, schema := range cfg.Schemas {
		if schema == nil {
			return nil, fmt.Errorf("%w: %s maps action %q to a nil schema", ErrMisconfigured, cfg.Name, action)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	schemas := make(map[Action]Schema[T], len(cfg.Schemas))
	for k, v := range cfg.Schemas {
		schemas[k] = v
	}
	perAction := make(map[Action][]PermissionFactory, len(cfg.Permissions))
	for k, v := range cfg.Permissions {
		perAction[k] = append([]PermissionFactory(nil), v...)
	}
	return &Resource[T]{
		name:        cfg.Name,
		schema:      cfg.DefaultSchema,
		schemas:     schemas,
		permissions: append([]PermissionFactory(nil), cfg.DefaultPermissions...),
		perAction:   perAction,
		logger:      logger,
	}, nil
}

// Must is New that panics on misconfiguration.
func Must[T any](cfg Config[T]) *Resource[T] {
	res, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return res
}

// Name returns the resource name.
func (res *Resource[T]) Name() string {
	return res.name
}

// SchemaFor resolves the schema of action, falling back to the default schema.
func (res *Resource[T]) SchemaFor(action Action) (Schema[T], error) {
	if schema, ok := res.schemas[action]; ok {
		return schema, nil
	}
	if res.schema != nil {
		return res.schema, nil
	}
	return nil, fmt.Errorf("%w: %s has no schema for action %q", ErrMisconfigured, res.name, action)
}

// PermissionsFor resolves the permissions of action, falling back to the
// default list when the action has none declared. Every call builds new
// instances.
func (res *Resource[T]) PermissionsFor(action Action) []Permission {
	factories := res.perAction[action]
	if len(factories) == 0 {
		factories = res.permissions
	}
	perms := make([]Permission, 0, len(factories))
	for _, factory := range factories {
		perms = append(perms, factory())
	}
	return perms
}

// Authorize checks the permissions of the request's action. Anonymous
// requests that fail are unauthorized, authenticated ones forbidden.
func (res *Resource[T]) Authorize(r *http.Request) error {
	principal := shared.PrincipalFromContext(r.Context())
	action := ActionFromRequest(r)
	for _, perm := range res.PermissionsFor(action) {
		if perm.HasPermission(r, principal) {
			continue
		}
		if principal == nil {
			return fmt.Errorf("%w: authentication credentials were not provided", httpx.ErrUnauthorized)
		}
		return fmt.Errorf("%w: not allowed to %s %s", httpx.ErrForbidden, action, res.name)
	}
	return nil
}

// Present renders v through the schema of the request's action.
func (res *Resource[T]) Present(r *http.Request, v T) (any, error) {
	schema, err := res.SchemaFor(ActionFromRequest(r))
	if err != nil {
		return nil, err
	}
	return schema.Present(v), nil
}

// PresentAll renders every item through the schema of the request's action.
func (res *Resource[T]) PresentAll(r *http.Request, items []T) ([]any, error) {
	schema, err := res.SchemaFor(ActionFromRequest(r))
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, schema.Present(item))
	}
	return out, nil
}

// Respond writes v with status using the schema of the request's action.
func (res *Resource[T]) Respond(w http.ResponseWriter, r *http.Request, status int, v T) {
	body, err := res.Present(r, v)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	httpx.JSON(w, status, body)
}

// RespondList writes an unpaginated list.
func (res *Resource[T]) RespondList(w http.ResponseWriter, r *http.Request, items []T) {
	body, err := res.PresentAll(r, items)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, body)
}

// RespondPage writes a paginated list envelope.
func (res *Resource[T]) RespondPage(w http.ResponseWriter, r *http.Request, page shared.PageRequest, total int, items []T) {
	body, err := res.PresentAll(r, items)
	if err != nil {
		res.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(r, page, total, body))
}

func (res *Resource[T]) fail(w http.ResponseWriter, r *http.Request, err error) {
	res.logger.Error("resolve schema", slog.String("resource", res.name), slog.String("action", string(ActionFromRequest(r))), slog.Any("error", err))
	httpx.RespondError(w, err)
}
