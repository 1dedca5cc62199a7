package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/openbasket/storefront/api/responses"
	"github.com/openbasket/storefront/pkg/config"
	"github.com/openbasket/storefront/pkg/logger"
)

const envHeader = "X-OpenBasket-Env"

// Pinger is anything that can confirm connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the local store and redis. The marketplace is deliberately
// not probed: the daemon is ready even when the marketplace is down, that is
// what the fallback path is for.
func HealthReady(cfg *config.Config, logg *logger.Logger, store Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]string{}
		ready := true
		for name, p := range map[string]Pinger{"local_store": store, "redis": cache} {
			if p == nil {
				components[name] = "skipped"
				continue
			}
			if err := p.Ping(ctx); err != nil {
				components[name] = "down"
				ready = false
				if logg != nil {
					logg.Error(r.Context(), "readiness probe failed for "+name, err)
				}
				continue
			}
			components[name] = "ok"
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status":     state,
			"components": components,
		})
	}
}
