package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/angelmondragon/materiel-backend/api/responses"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

// RateLimit caps requests per client IP within window. A non-positive limit
// or window disables it.
func RateLimit(limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if logg != nil {
				ctx := logg.WithFields(r.Context(), map[string]any{
					"scope": "ip",
					"ip":    clientIP(r),
					"limit": limit,
				})
				logg.Warn(ctx, "rate_limit.blocked")
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		}),
	)
}

// RateLimitStore is the shared counter behind WriteRateLimit.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// WriteRateLimitPolicy bounds state-changing requests per acting user.
type WriteRateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int
}

func NewWriteRateLimitPolicy(name string, window time.Duration, limit int) WriteRateLimitPolicy {
	return WriteRateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p WriteRateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p WriteRateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "writes"
	}
	return p.name
}

func (p WriteRateLimitPolicy) userScope(userID int64) string {
	if userID <= 0 {
		return ""
	}
	return "user:" + p.normalizedName() + ":" + strconv.FormatInt(userID, 10)
}

// WriteRateLimit counts POST, PUT and DELETE requests per authenticated user
// in a shared store so the limit holds across instances. Reads pass through.
func WriteRateLimit(policy WriteRateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			userID := UserIDFromContext(ctx)
			scope := policy.userScope(userID)
			if scope == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := store.RateLimitKey(scope)

			allowed, count, err := allow(ctx, store, key, policy.window, int64(policy.limit))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"scope":          "user",
						"policy":         policy.normalizedName(),
						"attempts":       count,
						"limit":          policy.limit,
						"window_seconds": int(policy.window.Seconds()),
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func allow(ctx context.Context, store RateLimitStore, key string, window time.Duration, limit int64) (bool, int64, error) {
	count, err := store.IncrWithTTL(ctx, key, window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
