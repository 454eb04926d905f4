package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/idgate/internal/pkg/config"
)

// maintenanceAll blocks every route except /health.
const maintenanceAll = "*"

func middlewareMaintenance(cfg config.Config) Middleware {
	endpoints := make(map[string]struct{})
	if cfg != nil {
		for _, endpoint := range cfg.GetArray("app.maintenance.endpoints") {
			if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
				endpoints[endpoint] = struct{}{}
			}
		}
	}
	_, all := endpoints[maintenanceAll]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeOf(r)
			_, blocked := endpoints[route]
			if (blocked || all) && route != "/health" {
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
