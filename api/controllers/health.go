package controllers

import (
	"context"
	"net/http"

	"github.com/laundrylink/laundrylink-backend/api/responses"
	"github.com/laundrylink/laundrylink-backend/pkg/config"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LaundryLink-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when both the database and Redis answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LaundryLink-Env", cfg.App.Env)

		checks := map[string]pinger{
			"database": dbP,
			"redis":    redisP,
		}
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
