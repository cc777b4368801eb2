package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/PaulBabatuyi/messenger-core/internal/docstore"
)

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Store   string `json:"store"`
	Streams int    `json:"streams"`
	Users   int    `json:"users"`
	Error   string `json:"error,omitempty"`
}

// setupRouter configures the ops HTTP routes
func setupRouter(store docstore.Store, hub *WatchHub, logger *log.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", healthCheckHandler(store, hub)).Methods(http.MethodGet)
	return router
}

// healthCheckHandler reports 200 when the document store answers a ping.
func healthCheckHandler(store docstore.Store, hub *WatchHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		streams, users := hub.Len()
		resp := healthResponse{Status: "healthy", Service: "messenger-core", Store: "ok", Streams: streams, Users: users}
		code := http.StatusOK
		if err := store.Ping(ctx); err != nil {
			resp.Status, resp.Store, resp.Error = "unhealthy", "unreachable", err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
