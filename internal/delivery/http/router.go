package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"confluence-backend/internal/config"
	"confluence-backend/internal/infrastructure/metrics"
	"confluence-backend/internal/logger"
)

// HealthCheck probes one optional dependency.
type HealthCheck func(ctx context.Context) error

// RouterDeps wires the handlers into one router.
type RouterDeps struct {
	Analysis  *AnalysisHandler
	Signals   *SignalHandler
	Devices   *DeviceHandler
	WebSocket http.Handler
	Checks    map[string]HealthCheck
	Security  config.SecurityConfig
	Metrics   bool
	Logger    *logrus.Logger
}

// NewRouter builds the /api/v1 routes with CORS and request logging.
func NewRouter(deps RouterDeps) http.Handler {
	router := mux.NewRouter()
	router.Use(logger.Middleware(deps.Logger))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", healthHandler(deps.Checks)).Methods(http.MethodGet)
	if deps.Analysis != nil {
		deps.Analysis.RegisterRoutes(api)
	}
	if deps.Signals != nil {
		deps.Signals.RegisterRoutes(api)
	}
	if deps.Devices != nil {
		deps.Devices.RegisterRoutes(api)
	}
	if deps.WebSocket != nil {
		api.Handle("/ws", deps.WebSocket)
	}
	if deps.Metrics {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(deps.Security.CORSOrigins),
		handlers.AllowedMethods(deps.Security.CORSMethods),
		handlers.AllowedHeaders(deps.Security.CORSHeaders),
	)
	return cors(router)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Time       time.Time         `json:"time"`
	Components map[string]string `json:"components,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Time: time.Now().UTC()}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Components = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Components[name] = "ok"
		}
		sendJSON(w, status, resp)
	}
}
