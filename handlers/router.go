package handlers

import (
	"github.com/gorilla/mux"

	"user-registry/metrics"
	"user-registry/utils"
)

// NewRouter wires the middleware chain and all routes.
// Order matters: request id -> metrics -> rate limiting -> handlers
func NewRouter(users *UserHandler, integration *IntegrationHandler, limiter *utils.RateLimiter) *mux.Router {
	router := mux.NewRouter()

	router.Use(utils.RequestIDMiddleware)
	router.Use(metrics.MetricsMiddleware)
	if limiter != nil {
		router.Use(limiter.Middleware)
	}

	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	users.RegisterRoutes(router)
	if integration != nil {
		integration.RegisterRoutes(router)
	}
	return router
}
