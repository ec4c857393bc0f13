package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/materiel-backend/api/responses"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/materiel-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"

	// stored under the key while the first request is still running
	inFlightMarker = "in_flight"
)

// storedResponse is what a settled key replays.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency guards the wrapped routes with the Idempotency-Key header.
// The first request claims the key, runs, and stores its response; repeats
// with the same body replay it, repeats with a different body and repeats
// that arrive while the first is running are rejected. Server errors release
// the key so the client can retry. A nil store or non-positive ttl disables
// the guard.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || ttl <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintOf(body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			claimed, err := store.SetNX(ctx, key, inFlightMarker, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(ctx, store, key, fingerprint, logg, w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			handled := false
			defer func() {
				// A panicking handler never settles; free the key for retries.
				if !handled {
					release(context.WithoutCancel(ctx), store, key, logg)
				}
			}()
			next.ServeHTTP(capture, r)
			handled = true
			settle(ctx, store, key, ttl, fingerprint, capture, logg)
		})
	}
}

func replay(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger, w http.ResponseWriter) {
	raw, err := store.Get(ctx, key)
	if pkgredis.IsNil(err) || raw == inFlightMarker {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this Idempotency-Key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if stored.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key reused with a different request body"))
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(IdempotentReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func settle(ctx context.Context, store pkgredis.IdempotencyStore, key string, ttl time.Duration, fingerprint string, capture *responseCapture, logg *logger.Logger) {
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		release(ctx, store, key, logg)
		return
	}

	payload, err := json.Marshal(storedResponse{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		Fingerprint: fingerprint,
	})
	if err != nil {
		logIdempotencyFailure(ctx, logg, "encode idempotency record", err)
		return
	}
	if err := store.Set(ctx, key, string(payload), ttl); err != nil {
		logIdempotencyFailure(ctx, logg, "store idempotency record", err)
	}
}

func release(ctx context.Context, store pkgredis.IdempotencyStore, key string, logg *logger.Logger) {
	if err := store.Del(ctx, key); err != nil {
		logIdempotencyFailure(ctx, logg, "release idempotency key", err)
	}
}

// idempotencyScope keys are per acting user and concrete path, so the same
// client key on two materiels or from two users never collides.
func idempotencyScope(r *http.Request) string {
	return strconv.FormatInt(UserIDFromContext(r.Context()), 10) + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(body))
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logIdempotencyFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
