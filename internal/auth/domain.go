package auth

import "github.com/golang-jwt/jwt/v5"

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

// Token types.
const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims are the JWT claims of access and refresh tokens.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	Role      string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	Access  string
	Refresh string
}
