package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/materiel-backend/pkg/config"
)

// clockSkew tolerated between the host platform and this service.
const clockSkew = 30 * time.Second

var (
	ErrNoSecret = errors.New("jwt secret is required")
	ErrNoUser   = errors.New("token carries no user id")
)

var signingMethod = jwt.SigningMethodHS256

// MintAccessToken signs an HS256 token for payload.UserID. The host platform
// mints production tokens; this exists for the operator CLI and tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrNoSecret
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case payload.UserID <= 0:
		return "", fmt.Errorf("%w: got %d", ErrNoUser, payload.UserID)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID:   payload.UserID,
		Username: strings.TrimSpace(payload.Username),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatInt(payload.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry and resolves the
// acting user. Tokens without a user_id claim fall back to a numeric sub.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	if claims.UserID <= 0 {
		sub, convErr := strconv.ParseInt(claims.Subject, 10, 64)
		if convErr != nil || sub <= 0 {
			return nil, ErrNoUser
		}
		claims.UserID = sub
	}
	return claims, nil
}
