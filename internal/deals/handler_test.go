package deals_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/deals"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func newRouter(t *testing.T, principal *shared.Principal) (http.Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	h := deals.NewHandler(nil, f.svc, resource.NewValidator())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if principal != nil {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/deals", h.MountRoutes)
	return r, f
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestCreateNestsShortClient(t *testing.T) {
	router, f := newRouter(t, manager)

	body := `{"name":"Renewal","amount":300,"client_id":` + strconv.FormatInt(f.acme, 10) + `}`
	rec := serve(router, http.MethodPost, "/deals/", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "NEW", got["status_deal"])
	client := got["client"].(map[string]any)
	assert.Len(t, client, 5)
	assert.Equal(t, "Acme", client["name"])
	assert.NotContains(t, client, "company")
}

func TestListNestsFullClient(t *testing.T) {
	router, f := newRouter(t, manager)
	f.repo.Seed(deals.Deal{Name: "a", Status: deals.StatusCompleted, Amount: 10, Client: clients.Client{ID: f.acme}})
	f.repo.Seed(deals.Deal{Name: "b", Status: deals.StatusNew, Amount: 20, Client: clients.Client{ID: f.globex}})

	rec := serve(router, http.MethodGet, "/deals/?status_deal=COM", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Count   int              `json:"count"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Count)
	client := page.Results[0]["client"].(map[string]any)
	assert.Contains(t, client, "company")
	assert.Contains(t, client, "created_at")
}

func TestFourthInProgressDealRejectedOverHTTP(t *testing.T) {
	router, f := newRouter(t, manager)
	f.seedInProgress(f.acme, 3)

	body := `{"name":"one more","status_deal":"PRG","amount":5,"client_id":` + strconv.FormatInt(f.acme, 10) + `}`
	rec := serve(router, http.MethodPost, "/deals/", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"client"`)
}

func TestDealsExposeOnlyDeclaredMethods(t *testing.T) {
	router, f := newRouter(t, manager)
	id := f.repo.Seed(deals.Deal{Name: "a", Amount: 10, Client: clients.Client{ID: f.acme}})
	path := "/deals/" + strconv.FormatInt(id, 10)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodPut, path, `{}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodGet, path, "").Code)

	rec := serve(router, http.MethodPatch, path, `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPatch, path, `{"status_deal":"PRG"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status_deal":"PRG"`)

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, path, "").Code)
}

func TestDealsRequireManager(t *testing.T) {
	router, _ := newRouter(t, &shared.Principal{UserID: 3, Role: shared.RoleCustomer})
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/deals/", "").Code)
}
