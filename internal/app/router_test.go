package app_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/app"
	"github.com/odyssey-erp/odyssey-crm/internal/auth"
	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/clients/clientstest"
	"github.com/odyssey-erp/odyssey-crm/internal/observability"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
	"github.com/odyssey-erp/odyssey-crm/internal/users/userstest"
	_ "github.com/odyssey-erp/odyssey-crm/testing"
)

const managerPassword = "violet-harbour-42"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	userRepo := userstest.New()
	hash, err := users.HashPassword(managerPassword)
	require.NoError(t, err)
	id := userRepo.Seed(users.User{Username: "mona", Email: "mona@crm.io", Role: shared.RoleManager, PasswordHash: hash, IsActive: true})

	clientRepo := clientstest.New()
	clientRepo.AddManager(clients.Manager{ID: id, Username: "mona", Role: shared.RoleManager})

	authService := auth.NewService(userRepo, auth.NewTokenManager("test-secret", "odyssey-crm", 5*time.Minute, time.Hour))
	validate := resource.NewValidator()
	cfg := &app.Config{AppEnv: "test", GlobalRateLimit: 1000, AuthRateLimit: 3, AppRequestTimeout: 5 * time.Second}

	return app.NewRouter(app.RouterParams{
		Config:         cfg,
		Authenticator:  auth.Authenticator(authService, nil),
		Metrics:        observability.NewMetrics(),
		AuthHandler:    auth.NewHandler(nil, authService, validate),
		ClientsHandler: clients.NewHandler(nil, clients.NewService(clientRepo, nil, nil), validate),
	})
}

func send(router http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := send(router, http.MethodPost, "/auth/jwt/create", `{"username":"mona","password":"`+managerPassword+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair["access"])
	return pair["access"]
}

func TestHealthzCarriesSecurityHeaders(t *testing.T) {
	rec := send(newTestRouter(t), http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestBearerTokenAuthenticatesRequests(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	rec := send(router, http.MethodPost, "/clients/", `{"name":"Acme","email":"buyer@acme.io"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(router, http.MethodGet, "/clients/", "", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "buyer@acme.io")
}

func TestAnonymousAndForgedTokensAreRejected(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, send(router, http.MethodGet, "/clients/", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, send(router, http.MethodGet, "/clients/", "", "not-a-jwt").Code)
}

func TestUnknownRouteIsProblemDocument(t *testing.T) {
	rec := send(newTestRouter(t), http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestAnonymousAuthRequestsAreThrottled(t *testing.T) {
	router := newTestRouter(t)
	body := `{"username":"mona","password":"wrong"}`
	for range 3 {
		assert.Equal(t, http.StatusUnauthorized, send(router, http.MethodPost, "/auth/jwt/create", body, "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, send(router, http.MethodPost, "/auth/jwt/create", body, "").Code)
}

func TestMetricsEndpointRecordsRoutes(t *testing.T) {
	router := newTestRouter(t)
	send(router, http.MethodGet, "/healthz", "", "")

	rec := send(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `odyssey_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestConfigValidate(t *testing.T) {
	base := app.Config{JWTSecret: "s", JWTAccessTTL: time.Minute, JWTRefreshTTL: time.Hour, ResetTokenTTL: time.Hour, MailMaxRetry: 3, SiteDomain: "crm.example.com"}
	require.NoError(t, base.Validate())

	cases := map[string]func(*app.Config){
		"missing secret": func(c *app.Config) { c.JWTSecret = "" },
		"zero ttl":       func(c *app.Config) { c.JWTAccessTTL = 0 },
		"negative retry": func(c *app.Config) { c.MailMaxRetry = -1 },
		"bad protocol":   func(c *app.Config) { c.SiteProtocol = "ftp" },
		"no domain":      func(c *app.Config) { c.SiteDomain = "" },
		"domain as url":  func(c *app.Config) { c.SiteDomain = "crm.example.com/evil" },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("MAIL_MAX_RETRY", "5")
	t.Setenv("PASSWORD_CHANGED_EMAIL_CONFIRMATION", "false")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, 5, cfg.MailMaxRetry)
	assert.False(t, cfg.PasswordChangedEmailConfirmation)
	assert.True(t, cfg.SendActivationEmail)
	assert.Equal(t, 5*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, "localhost:8080", cfg.Site().Domain)
}
