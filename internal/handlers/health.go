package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/programhub/apiserver/internal/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz answers liveness probes, checking the database when db is set.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				response.Error(w, http.StatusServiceUnavailable, "Database unavailable", nil)
				return
			}
		}
		response.Success(w, http.StatusOK, "API is running", nil)
	}
}
