package jwttai

import (
	"encoding/json"
	"net/http"

	"github.com/cicsdev/go-jwt-tai/core"
)

// HealthResponse is the JSON body written by HealthHandler.
type HealthResponse struct {
	Version string `json:"version"`
	Type    string `json:"type"`
	Healthy bool   `json:"healthy"`
	core.Health
}

// HealthHandler reports Health as JSON: 200 while the interceptor holds a
// trust anchor and 503 otherwise.
func (i *Interceptor) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h := i.Health()

		status := http.StatusOK
		if !h.Healthy() {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Version: i.Version(),
			Type:    i.Type(),
			Healthy: h.Healthy(),
			Health:  h,
		})
	})
}
