package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/fanjava-backend/api/responses"
	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fanjava-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and Redis concurrently.
func HealthReady(cfg *config.Config, logg *logger.Logger, database db.Pinger, cache redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fanjava-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		var g errgroup.Group
		if database != nil {
			g.Go(func() error {
				if err := database.Ping(ctx); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database not ready")
				}
				return nil
			})
		}
		if cache != nil {
			g.Go(func() error {
				if err := cache.Ping(ctx); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis not ready")
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
