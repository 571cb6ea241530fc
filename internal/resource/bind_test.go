package resource_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
)

type signupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Amount   int    `json:"amount" validate:"gt=0"`
}

func TestDecodeReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","password":"short"}`))
	_, err := resource.Decode[signupInput](req, resource.NewValidator())
	require.Error(t, err)

	var fields *httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, "Enter a valid email address.", fields.Fields["email"])
	assert.Equal(t, "Ensure this field has at least 8 characters.", fields.Fields["password"])
	assert.Equal(t, "Ensure this value is greater than 0.", fields.Fields["amount"])
}

func TestDecodeRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	_, err := resource.Decode[signupInput](req, resource.NewValidator())
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDecodeValidInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.io","password":"longenough","amount":3}`))
	in, err := resource.Decode[signupInput](req, resource.NewValidator())
	require.NoError(t, err)
	assert.Equal(t, 3, in.Amount)
}

func TestIDParam(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = resource.ID(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/42", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abc", nil))
	assert.ErrorIs(t, gotErr, httpx.ErrNotFound)
}
