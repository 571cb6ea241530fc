package password_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/password"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
	"github.com/odyssey-erp/odyssey-crm/internal/users/userstest"
	_ "github.com/odyssey-erp/odyssey-crm/testing"
)

type sent struct {
	kind       string
	mc         users.MailContext
	recipients []string
}

type recordingNotifier struct {
	sent []sent
	err  error
}

func (n *recordingNotifier) SendResetPassword(ctx context.Context, mc users.MailContext, recipients []string) error {
	n.sent = append(n.sent, sent{kind: "reset", mc: mc, recipients: recipients})
	return n.err
}

func (n *recordingNotifier) SendResetPasswordConfirm(ctx context.Context, mc users.MailContext, recipients []string) error {
	n.sent = append(n.sent, sent{kind: "confirm", mc: mc, recipients: recipients})
	return n.err
}

type fixture struct {
	svc      *password.Service
	repo     *userstest.Memory
	notifier *recordingNotifier
	tokens   *users.TokenGenerator
	userID   int64
}

func newFixture(t *testing.T, confirmation bool) fixture {
	t.Helper()
	repo := userstest.New()
	hash, err := users.HashPassword("correct-horse")
	require.NoError(t, err)
	id := repo.Seed(users.User{Username: "vera", Email: "vera@example.com", PasswordHash: hash, IsActive: true})

	notifier := &recordingNotifier{}
	tokens := users.NewTokenGenerator("secret", time.Hour)
	svc := password.NewService(repo, tokens, notifier, nil, password.Config{ConfirmationEmail: confirmation})
	return fixture{svc: svc, repo: repo, notifier: notifier, tokens: tokens, userID: id}
}

func (f fixture) resetToken(t *testing.T) (string, string) {
	t.Helper()
	u, ok := f.repo.Snapshot(f.userID)
	require.True(t, ok)
	token, err := f.tokens.Make(&u, users.PurposePasswordReset)
	require.NoError(t, err)
	return users.EncodeUID(f.userID), token
}

func TestChangePasswordWrongOldPasswordIsForbidden(t *testing.T) {
	f := newFixture(t, true)
	before, _ := f.repo.Snapshot(f.userID)

	err := f.svc.ChangePassword(context.Background(), f.userID, "nope", "Str0ngPass!")
	require.ErrorIs(t, err, httpx.ErrForbidden)
	var fields *httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields.Fields, "old_password")

	after, _ := f.repo.Snapshot(f.userID)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestChangePasswordUpdatesOnlyTheHash(t *testing.T) {
	f := newFixture(t, true)
	before, _ := f.repo.Snapshot(f.userID)

	require.NoError(t, f.svc.ChangePassword(context.Background(), f.userID, "correct-horse", "Str0ngPass!"))

	after, _ := f.repo.Snapshot(f.userID)
	assert.True(t, after.CheckPassword("Str0ngPass!"))
	assert.Equal(t, before.LastLogin, after.LastLogin)
	assert.Equal(t, before.Email, after.Email)
	assert.Empty(t, f.notifier.sent)
}

func TestChangePasswordValidatesNewPassword(t *testing.T) {
	f := newFixture(t, true)

	err := f.svc.ChangePassword(context.Background(), f.userID, "correct-horse", "short")
	var fields *httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields.Fields, "new_password")
}

func TestChangePasswordRejectsPasswordBcryptCannotHash(t *testing.T) {
	f := newFixture(t, true)
	before, _ := f.repo.Snapshot(f.userID)

	err := f.svc.ChangePassword(context.Background(), f.userID, "correct-horse", strings.Repeat("Zq9!", 20))
	var fields *httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Contains(t, fields.Fields["new_password"], "too long")

	after, _ := f.repo.Snapshot(f.userID)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestRequestResetDoesNotLeakExistence(t *testing.T) {
	f := newFixture(t, true)
	mc := users.MailContext{SiteName: "CRM", Domain: "crm.local", Protocol: "https"}

	require.NoError(t, f.svc.RequestReset(context.Background(), "ghost@example.com", mc))
	assert.Empty(t, f.notifier.sent)

	require.NoError(t, f.svc.RequestReset(context.Background(), "VERA@example.com", mc))
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "reset", f.notifier.sent[0].kind)
	assert.Equal(t, f.userID, f.notifier.sent[0].mc.UserID)
	assert.Equal(t, "crm.local", f.notifier.sent[0].mc.Domain)
	assert.Equal(t, []string{"vera@example.com"}, f.notifier.sent[0].recipients)
}

func TestRequestResetIgnoresEnqueueFailure(t *testing.T) {
	f := newFixture(t, true)
	f.notifier.err = errors.New("queue unavailable")

	assert.NoError(t, f.svc.RequestReset(context.Background(), "vera@example.com", users.MailContext{}))
}

func TestConfirmResetUpdatesHashAndLastLoginTogether(t *testing.T) {
	f := newFixture(t, true)
	uid, token := f.resetToken(t)

	require.NoError(t, f.svc.ConfirmReset(context.Background(), uid, token, "Str0ngPass!", users.MailContext{Domain: "crm.local"}))

	after, _ := f.repo.Snapshot(f.userID)
	assert.True(t, after.CheckPassword("Str0ngPass!"))
	require.NotNil(t, after.LastLogin)
	assert.WithinDuration(t, time.Now(), *after.LastLogin, time.Minute)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "confirm", f.notifier.sent[0].kind)
	assert.Equal(t, f.userID, f.notifier.sent[0].mc.UserID)
}

func TestConfirmResetWithoutConfirmationEmail(t *testing.T) {
	f := newFixture(t, false)
	uid, token := f.resetToken(t)

	require.NoError(t, f.svc.ConfirmReset(context.Background(), uid, token, "Str0ngPass!", users.MailContext{}))
	assert.Empty(t, f.notifier.sent)
}

func TestConfirmResetInvalidTokenChangesNothing(t *testing.T) {
	f := newFixture(t, true)
	uid, _ := f.resetToken(t)
	before, _ := f.repo.Snapshot(f.userID)

	err := f.svc.ConfirmReset(context.Background(), uid, "forged", "Str0ngPass!", users.MailContext{})
	require.ErrorIs(t, err, httpx.ErrValidation)

	after, _ := f.repo.Snapshot(f.userID)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Nil(t, after.LastLogin)
	assert.Empty(t, f.notifier.sent)
}

func TestConfirmResetRejectsPasswordBcryptCannotHash(t *testing.T) {
	f := newFixture(t, true)
	uid, token := f.resetToken(t)
	before, _ := f.repo.Snapshot(f.userID)

	err := f.svc.ConfirmReset(context.Background(), uid, token, strings.Repeat("Zq9!", 20), users.MailContext{})
	var fields *httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields.Fields["new_password"], "too long")

	after, _ := f.repo.Snapshot(f.userID)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Nil(t, after.LastLogin)
	assert.Empty(t, f.notifier.sent)
}

func TestConfirmResetRollsBackWhenLastLoginFails(t *testing.T) {
	f := newFixture(t, true)
	uid, token := f.resetToken(t)
	before, _ := f.repo.Snapshot(f.userID)
	f.repo.TouchErr = errors.New("disk full")

	err := f.svc.ConfirmReset(context.Background(), uid, token, "Str0ngPass!", users.MailContext{})
	require.Error(t, err)

	after, _ := f.repo.Snapshot(f.userID)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Nil(t, after.LastLogin)
	assert.Empty(t, f.notifier.sent)
}

func TestConfirmResetTokenIsSingleUse(t *testing.T) {
	f := newFixture(t, false)
	uid, token := f.resetToken(t)

	require.NoError(t, f.svc.ConfirmReset(context.Background(), uid, token, "Str0ngPass!", users.MailContext{}))
	err := f.svc.ConfirmReset(context.Background(), uid, token, "An0therPass!", users.MailContext{})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func newRouter(f fixture, principal *shared.Principal) http.Handler {
	h := password.NewHandler(nil, f.svc, resource.NewValidator(), users.Site{Domain: "crm.local"})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if principal != nil {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/password", h.MountRoutes)
	return r
}

func TestHandlerChangePassword(t *testing.T) {
	f := newFixture(t, true)
	body := `{"old_password":"correct-horse","new_password":"Str0ngPass!"}`

	rec := httptest.NewRecorder()
	newRouter(f, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/password/change_password", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router := newRouter(f, &shared.Principal{UserID: f.userID, Username: "vera"})
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/password/change_password", strings.NewReader(body)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/password/change_password", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "old_password")
}

func TestHandlerChangePasswordTooLongIsValidationError(t *testing.T) {
	f := newFixture(t, true)
	body := `{"old_password":"correct-horse","new_password":"` + strings.Repeat("Zq9!", 20) + `"}`

	rec := httptest.NewRecorder()
	newRouter(f, &shared.Principal{UserID: f.userID, Username: "vera"}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/password/change_password", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "new_password")
}

func TestHandlerResetPasswordAlwaysNoContent(t *testing.T) {
	f := newFixture(t, true)
	router := newRouter(f, nil)

	for _, email := range []string{"ghost@example.com", "vera@example.com"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/password/reset_password", strings.NewReader(`{"email":"`+email+`"}`)))
		assert.Equal(t, http.StatusNoContent, rec.Code, email)
	}
	assert.Len(t, f.notifier.sent, 1)
}

func TestHandlerResetPasswordIgnoresRequestHost(t *testing.T) {
	f := newFixture(t, true)

	req := httptest.NewRequest(http.MethodPost, "/password/reset_password", strings.NewReader(`{"email":"vera@example.com"}`))
	req.Host = "attacker.example"
	rec := httptest.NewRecorder()
	newRouter(f, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "crm.local", f.notifier.sent[0].mc.Domain)
}

func TestHandlerResetPasswordConfirm(t *testing.T) {
	f := newFixture(t, true)
	uid, token := f.resetToken(t)
	body := `{"uid":"` + uid + `","token":"` + token + `","new_password":"Str0ngPass!"}`

	rec := httptest.NewRecorder()
	newRouter(f, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/password/reset_password_confirm", strings.NewReader(body)))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "crm.local", f.notifier.sent[0].mc.Domain)
}
