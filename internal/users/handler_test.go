package users_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
	"github.com/odyssey-erp/odyssey-crm/internal/users/userstest"
)

func newRouter(t *testing.T, principal *shared.Principal) (http.Handler, *userstest.Memory) {
	t.Helper()
	repo := userstest.New()
	svc := users.NewService(repo, users.NewTokenGenerator("secret", time.Hour), &stubNotifier{}, nil, users.ServiceConfig{SendActivationEmail: true})
	h := users.NewHandler(nil, svc, resource.NewValidator(), users.Site{Name: "CRM", Domain: "crm.local", Protocol: "https"})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if principal != nil {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/users", h.MountRoutes)
	return r, repo
}

func TestRegistrationUsesRegistrationSchema(t *testing.T) {
	router, _ := newRouter(t, nil)
	body := `{"email":"nina@example.com","first_name":"Nina","last_name":"Lee","password":"Sh4rpOrbit!","re_password":"Sh4rpOrbit!"}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/registration", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Nina | Lee", got["full_name"])
	assert.Equal(t, "nina@example.com", got["email"])
	assert.NotContains(t, got, "username")
}

func TestRegistrationRejectsMismatchedPasswords(t *testing.T) {
	router, _ := newRouter(t, nil)
	body := `{"email":"nina@example.com","password":"Sh4rpOrbit!","re_password":"other"}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/registration", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "re_password")
}

func TestUserListRequiresAuthentication(t *testing.T) {
	router, _ := newRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/user_list", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserListReturnsCurrentUser(t *testing.T) {
	principal := &shared.Principal{UserID: 7, Username: "kate", Role: shared.RoleCustomer}
	router, repo := newRouter(t, principal)
	repo.Seed(users.User{ID: 7, Username: "kate", FirstName: "Kate", LastName: "Moss", Email: "kate@example.com", Role: shared.RoleCustomer, IsActive: true})
	repo.Seed(users.User{ID: 8, Username: "other", Email: "other@example.com"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/user_list", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "kate", got["username"])
	assert.Equal(t, "CUS", got["role"])
	assert.Equal(t, "Kate | Moss", got["full_name"])
}

func TestUserSearchUsesSearchSchema(t *testing.T) {
	principal := &shared.Principal{UserID: 1, Username: "anna"}
	router, repo := newRouter(t, principal)
	repo.Seed(users.User{ID: 1, Username: "anna", Email: "anna@x.io"})
	repo.Seed(users.User{ID: 2, Username: "bob", Email: "bob@y.io"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/user_search?search=bob", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0]["username"])
	assert.NotContains(t, got[0], "role")
}

func TestUserUpdatePatchesCurrentUser(t *testing.T) {
	principal := &shared.Principal{UserID: 3, Username: "lev"}
	router, repo := newRouter(t, principal)
	repo.Seed(users.User{ID: 3, Username: "lev", Email: "lev@example.com"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/users/user_update", strings.NewReader(`{"last_name":"Tolstoy"}`))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, _ := repo.Snapshot(3)
	assert.Equal(t, "Tolstoy", stored.LastName)
	assert.Equal(t, "lev@example.com", stored.Email)
}

func TestActivateIsPublic(t *testing.T) {
	router, _ := newRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/activate", strings.NewReader(`{"uid":"`+users.EncodeUID(42)+`","token":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSiteMailContextNeverUsesRequestHost(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/users/registration", nil)
	req.Host = "attacker.example"

	mc := users.Site{Name: "CRM", Domain: "crm.local", Protocol: "https"}.MailContext(req, 7)
	assert.Equal(t, users.MailContext{UserID: 7, SiteName: "CRM", Domain: "crm.local", Protocol: "https"}, mc)

	mc = users.Site{}.MailContext(req, 7)
	assert.Equal(t, users.DefaultSiteDomain, mc.Domain)
	assert.Equal(t, users.DefaultSiteDomain, mc.SiteName)
	assert.Equal(t, "http", mc.Protocol)
}
