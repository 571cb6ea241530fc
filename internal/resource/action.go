// Package resource resolves the schema and permission set of each operation a
// resource exposes, keyed by the operation's action name.
package resource

import (
	"context"
	"net/http"
)

// Action names an operation on a resource. Standard REST operations use the
// constants below; custom operations use their own names.
type Action string

// Standard actions.
const (
	ActionList          Action = "list"
	ActionCreate        Action = "create"
	ActionRetrieve      Action = "retrieve"
	ActionUpdate        Action = "update"
	ActionPartialUpdate Action = "partial_update"
	ActionDestroy       Action = "destroy"
)

type actionContextKey struct{}

// WithAction tags the context with the action being served.
func WithAction(ctx context.Context, action Action) context.Context {
	return context.WithValue(ctx, actionContextKey{}, action)
}

// ActionFromRequest returns the action tag of the request, or the HTTP verb
// when the request was not routed through a named action.
func ActionFromRequest(r *http.Request) Action {
	if action, ok := r.Context().Value(actionContextKey{}).(Action); ok && action != "" {
		return action
	}
	return Action(r.Method)
}
