package app

import (
	"net/http"

	"github.com/gorilla/mux"
)

// initializeRouter configures all routes for the application
func (a *App) initializeRouter(router *mux.Router) {
	// Set custom error handlers for 404 and 405 responses
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Apply common middleware
	router.Use(a.loggingMiddleware)
	router.Use(a.recoveryMiddleware)

	// Health check endpoints
	router.HandleFunc("/", a.healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/health", a.healthCheck).Methods(http.MethodGet)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", a.healthCheck).Methods(http.MethodGet)

	// Repository endpoints with their own subrouter
	initRepositoryRoutes(api.PathPrefix("/repos").Subrouter(), a)

	// GitHub App webhook
	api.HandleFunc("/webhook", a.handleWebhook).Methods(http.MethodPost)

	// GitHub user lookup
	api.HandleFunc("/user/{login}", a.getUserInfo).Methods(http.MethodGet)

	// Jobs endpoints
	api.HandleFunc("/jobs", a.listJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{job_id}", a.getJobStatus).Methods(http.MethodGet)
}

// initRepositoryRoutes configures all repository-related routes
func initRepositoryRoutes(router *mux.Router, a *App) {
	router.HandleFunc("", a.listRepositories).Methods(http.MethodGet)
	router.HandleFunc("/{owner}/{name}", a.getRepositoryDetail).Methods(http.MethodGet)
	router.HandleFunc("/{owner}/{name}", a.addRepository).Methods(http.MethodPut)
	router.HandleFunc("/{owner}/{name}", a.removeRepository).Methods(http.MethodDelete)
	router.HandleFunc("/{owner}/{name}/sync", a.resyncRepository).Methods(http.MethodPost)
	router.HandleFunc("/{owner}/{name}/gfis", a.listGFIs).Methods(http.MethodGet)
	router.HandleFunc("/{owner}/{name}/gfis", a.putGFIs).Methods(http.MethodPut)
	router.HandleFunc("/{owner}/{name}/training", a.getTrainingResult).Methods(http.MethodGet)
	router.HandleFunc("/{owner}/{name}/training", a.putTrainingResult).Methods(http.MethodPut)
	router.HandleFunc("/{owner}/{name}/config", a.getConfig).Methods(http.MethodGet)
	router.HandleFunc("/{owner}/{name}/config", a.putConfig).Methods(http.MethodPut)
	router.HandleFunc("/{owner}/{name}/searches", a.recordSearch).Methods(http.MethodPost)
}

// loggingMiddleware logs information about each request
func (a *App) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Msg("Incoming request")

		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and returns a 500 error
func (a *App) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				a.log.Error().
					Interface("error", err).
					Str("path", r.URL.Path).
					Msg("Panic recovered in request handler")

				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
