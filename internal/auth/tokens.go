package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// TokenManager signs and parses HS256 access and refresh tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if issuer == "" {
		issuer = "odyssey-crm"
	}
	return &TokenManager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue signs a fresh access/refresh pair for u.
func (m *TokenManager) Issue(u *users.User) (TokenPair, error) {
	access, err := m.sign(u, TokenAccess, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.sign(u, TokenRefresh, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Access signs an access token for u.
func (m *TokenManager) Access(u *users.User) (string, error) {
	return m.sign(u, TokenAccess, m.accessTTL)
}

func (m *TokenManager) sign(u *users.User, typ TokenType, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := Claims{
		TokenType: typ,
		Role:      string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Parse verifies token and returns its claims. An empty typ accepts either
// token type.
func (m *TokenManager) Parse(token string, typ TokenType) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, shared.ErrInvalidToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, shared.ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired(), jwt.WithIssuedAt())
	if err != nil || !parsed.Valid {
		return nil, shared.ErrInvalidToken
	}
	if typ != "" && claims.TokenType != typ {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

// UserID returns the account id carried in the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrInvalidToken
	}
	return id, nil
}
