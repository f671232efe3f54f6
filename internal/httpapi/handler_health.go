package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Pinger is implemented by *dbpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthHandler(pool Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				log.Warn("health check failed", zap.Error(err))
				http.Error(w, "db not ok", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
