package users

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// TokenPurpose scopes an account token to one flow.
type TokenPurpose string

// Token purposes.
const (
	PurposeActivation    TokenPurpose = "activation"
	PurposePasswordReset TokenPurpose = "password_reset"
)

const tokenIssuer = "odyssey-crm"

type accountClaims struct {
	Purpose     TokenPurpose `json:"purpose"`
	Fingerprint string       `json:"fp"`
	jwt.RegisteredClaims
}

// TokenGenerator issues the uid/token pairs mailed to users. A token is bound
// to a fingerprint of the account state, so it stops validating once the
// password, last login or active flag changes.
type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenGenerator constructs a generator signing with secret.
func NewTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	return &TokenGenerator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Make issues a token for u.
func (g *TokenGenerator) Make(u *User, purpose TokenPurpose) (string, error) {
	now := g.now().UTC()
	claims := accountClaims{
		Purpose:     purpose,
		Fingerprint: fingerprint(u),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign account token: %w", err)
	}
	return signed, nil
}

// Check reports whether token was issued for u and purpose and is still valid.
func (g *TokenGenerator) Check(u *User, purpose TokenPurpose, token string) bool {
	claims := &accountClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, shared.ErrInvalidToken
		}
		return g.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(g.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Purpose == purpose &&
		claims.Subject == strconv.FormatInt(u.ID, 10) &&
		claims.Fingerprint == fingerprint(u)
}

func fingerprint(u *User) string {
	h := sha256.New()
	h.Write([]byte(u.PasswordHash))
	if u.LastLogin != nil {
		h.Write([]byte(strconv.FormatInt(u.LastLogin.UTC().UnixNano(), 10)))
	}
	h.Write([]byte(strconv.FormatBool(u.IsActive)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// EncodeUID encodes a user id for use in mailed links.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uid string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, shared.ErrInvalidToken
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(shared.ErrInvalidToken, err)
	}
	return id, nil
}
