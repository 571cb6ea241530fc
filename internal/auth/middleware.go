package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Authenticator resolves the bearer access token of each request into a
// principal. Requests without an Authorization header pass through as
// anonymous; malformed or rejected tokens are answered with 401.
func Authenticator(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearer(header)
			if !ok {
				httpx.RespondError(w, fmt.Errorf("%w: authorization header must contain two space-delimited values", httpx.ErrUnauthorized))
				return
			}
			principal, err := service.Principal(r.Context(), token)
			if err != nil {
				if !errors.Is(err, shared.ErrInvalidToken) {
					logger.Error("authenticate request", slog.Any("error", err))
					httpx.RespondError(w, err)
					return
				}
				httpx.RespondError(w, fmt.Errorf("%w: given token not valid for any token type", httpx.ErrUnauthorized))
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
