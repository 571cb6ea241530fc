package resource

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
)

// Decode reads the JSON body into a new In and validates it.
func Decode[In any](r *http.Request, v *validator.Validate) (In, error) {
	var in In
	if err := httpx.DecodeJSON(r, &in); err != nil {
		return in, err
	}
	if err := v.StructCtx(r.Context(), in); err != nil {
		return in, FieldErrors(err)
	}
	return in, nil
}

// FieldErrors converts validator errors into a field-keyed validation error.
func FieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	out := &httpx.FieldErrors{Kind: httpx.ErrValidation}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ID parses the detail route identifier.
func ID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, IDParam), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", httpx.ErrNotFound)
	}
	return id, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "e164":
		return "Enter a valid phone number."
	case "min", "gte":
		if fe.Kind().String() == "string" {
			return "Ensure this field has at least " + fe.Param() + " characters."
		}
		return "Ensure this value is greater than or equal to " + fe.Param() + "."
	case "max", "lte":
		if fe.Kind().String() == "string" {
			return "Ensure this field has no more than " + fe.Param() + " characters."
		}
		return "Ensure this value is less than or equal to " + fe.Param() + "."
	case "gt":
		return "Ensure this value is greater than " + fe.Param() + "."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	case "eqfield":
		return "The two password fields didn't match."
	default:
		return "Invalid value."
	}
}
