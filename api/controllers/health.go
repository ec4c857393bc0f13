package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/materiel-backend/api/responses"
	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

const (
	envHeader    = "X-Materiel-Env"
	readyTimeout = 2 * time.Second
)

// Pinger is satisfied by the database and Redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady answers 200 when every configured dependency pings and 503
// with the per-dependency results otherwise. A nil pinger reads "skipped".
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger, redisPinger Pinger) http.HandlerFunc {
	deps := []struct {
		name string
		p    Pinger
	}{{"database", dbPinger}, {"redis", redisPinger}}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		status, code := "ready", http.StatusOK
		checks := make(map[string]string, len(deps))
		for _, dep := range deps {
			switch {
			case dep.p == nil:
				checks[dep.name] = "skipped"
			case dep.p.Ping(ctx) != nil:
				checks[dep.name] = "down"
				status, code = "unavailable", http.StatusServiceUnavailable
			default:
				checks[dep.name] = "ok"
			}
		}

		if code != http.StatusOK && logg != nil {
			logg.Warn(logg.WithField(r.Context(), "checks", checks), "health.not_ready")
		}
		responses.WriteSuccessStatus(w, code, map[string]any{"status": status, "checks": checks})
	}
}
