package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

// NewRouter builds the API router with request ids, instrumentation and docs.
// metricsHandler is mounted at /metrics when non-nil.
func NewRouter(h *EnergyHandler, metricsHandler http.Handler, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID)
	router.Use(Instrument(metricsCollector, logger))

	h.RegisterRoutes(router)
	RegisterDocsRoutes(router)

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}
	return router
}
