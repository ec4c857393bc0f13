package auth

import "github.com/golang-jwt/jwt/v5"

// AccessTokenPayload is the input to MintAccessToken.
type AccessTokenPayload struct {
	UserID   int64
	Username string
	JTI      string
}

// AccessTokenClaims is the token shape shared with the host platform. Only
// UserID (or a numeric sub) matters to this service.
type AccessTokenClaims struct {
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}
