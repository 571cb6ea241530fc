package resource

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
)

// Capability interfaces. A handler exposes a standard operation by
// implementing the matching interface.
type (
	Lister interface {
		List(w http.ResponseWriter, r *http.Request)
	}
	Creator interface {
		Create(w http.ResponseWriter, r *http.Request)
	}
	Retriever interface {
		Retrieve(w http.ResponseWriter, r *http.Request)
	}
	Updater interface {
		Update(w http.ResponseWriter, r *http.Request)
	}
	PartialUpdater interface {
		PartialUpdate(w http.ResponseWriter, r *http.Request)
	}
	Destroyer interface {
		Destroy(w http.ResponseWriter, r *http.Request)
	}
)

// Route is an operation mounted on a resource. Custom operations carry their
// own action name; an empty Action leaves the request untagged so it resolves
// by HTTP verb.
type Route struct {
	Method  string
	Pattern string
	Action  Action
	Handler http.HandlerFunc
}

// IDParam is the URL parameter of detail routes.
const IDParam = "id"

// Routes lists the standard routes h implements followed by extra.
func Routes(h any, extra ...Route) []Route {
	var routes []Route
	if c, ok := h.(Lister); ok {
		routes = append(routes, Route{http.MethodGet, "/", ActionList, c.List})
	}
	if c, ok := h.(Creator); ok {
		routes = append(routes, Route{http.MethodPost, "/", ActionCreate, c.Create})
	}
	if c, ok := h.(Retriever); ok {
		routes = append(routes, Route{http.MethodGet, "/{id}", ActionRetrieve, c.Retrieve})
	}
	if c, ok := h.(Updater); ok {
		routes = append(routes, Route{http.MethodPut, "/{id}", ActionUpdate, c.Update})
	}
	if c, ok := h.(PartialUpdater); ok {
		routes = append(routes, Route{http.MethodPatch, "/{id}", ActionPartialUpdate, c.PartialUpdate})
	}
	if c, ok := h.(Destroyer); ok {
		routes = append(routes, Route{http.MethodDelete, "/{id}", ActionDestroy, c.Destroy})
	}
	return append(routes, extra...)
}

// Mount registers routes on r. Every route must resolve a schema, otherwise
// nothing is mounted and ErrMisconfigured is returned.
func Mount[T any](r chi.Router, res *Resource[T], routes []Route) error {
	for _, route := range routes {
		if route.Handler == nil {
			return fmt.Errorf("%w: %s %s %s has no handler", ErrMisconfigured, res.name, route.Method, route.Pattern)
		}
		action := route.Action
		if action == "" {
			action = Action(route.Method)
		}
		if _, err := res.SchemaFor(action); err != nil {
			return err
		}
	}
	for _, route := range routes {
		r.Method(route.Method, route.Pattern, res.guard(route))
	}
	return nil
}

// MustMount is Mount that panics on misconfiguration.
func MustMount[T any](r chi.Router, res *Resource[T], routes []Route) {
	if err := Mount(r, res, routes); err != nil {
		panic(err)
	}
}

func (res *Resource[T]) guard(route Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route.Action != "" {
			r = r.WithContext(WithAction(r.Context(), route.Action))
		}
		if err := res.Authorize(r); err != nil {
			httpx.RespondError(w, err)
			return
		}
		route.Handler(w, r)
	})
}
