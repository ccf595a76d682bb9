package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"energy-forecast/internal/models"
	"energy-forecast/internal/repository"
	"energy-forecast/internal/services"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

const (
	maxRequestBody = 1 << 20
	maxPageLimit   = 500
)

// EnergyHandler handles the forecast API endpoints
type EnergyHandler struct {
	forecast *services.ForecastService
	history  *services.HistoryService
	validate *validator.Validate
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewEnergyHandler creates a new energy handler. history may be nil when
// prediction runs are not persisted; its routes are then not registered.
func NewEnergyHandler(
	forecast *services.ForecastService,
	history *services.HistoryService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *EnergyHandler {
	return &EnergyHandler{
		forecast: forecast,
		history:  history,
		validate: validator.New(),
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Code     int    `json:"code"`
	Category string `json:"category"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status          string   `json:"status"`
	CitiesAvailable int      `json:"cities_available"`
	ModelsLoaded    []string `json:"models_loaded"`
}

// CitiesResponse is the body of GET /cities
type CitiesResponse struct {
	Count  int      `json:"count"`
	Cities []string `json:"cities"`
}

// StatusForCategory maps an error category to its HTTP status
func StatusForCategory(category string) int {
	switch category {
	case models.CategoryInvalidRequest, models.CategoryInvalidArea:
		return http.StatusBadRequest
	case models.CategoryCityNotFound, models.CategoryNotFound:
		return http.StatusNotFound
	case models.CategoryUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case models.CategoryBadUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles GET /health
func (h *EnergyHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	loaded := h.forecast.Pool().Names()
	h.logger.Debug(r.Context(), "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, r, HealthResponse{
		Status:          "healthy",
		CitiesAvailable: h.forecast.Regions().Len(),
		ModelsLoaded:    loaded,
	}, http.StatusOK)
}

// ListCities handles GET /cities
func (h *EnergyHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities := h.forecast.Regions().Cities()
	if len(cities) == 0 {
		h.sendError(w, r, "City mapping not loaded", models.CategoryConfiguration, http.StatusInternalServerError)
		return
	}
	h.sendJSON(w, r, CitiesResponse{Count: len(cities), Cities: cities}, http.StatusOK)
}

// PredictEnergy handles POST /predict-energy
func (h *EnergyHandler) PredictEnergy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.PredictionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		h.sendError(w, r, "invalid request body: "+err.Error(), models.CategoryInvalidRequest, http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.sendError(w, r, validationMessage(err), models.CategoryInvalidRequest, http.StatusBadRequest)
		return
	}

	result, err := h.forecast.Predict(ctx, req)
	if err != nil {
		category := models.CategoryOf(err)
		status := StatusForCategory(category)

		fields := logging.Fields{"city": req.City, "mode": req.EffectiveMode(), "category": category}
		if status >= http.StatusInternalServerError {
			h.logger.Error(ctx, "[API_PREDICT_ERROR] Energy prediction failed", fields, err)
		} else {
			h.logger.Info(ctx, "[API_PREDICT_REJECTED] Energy prediction rejected", fields)
		}

		h.sendError(w, r, publicMessage(category, err), category, status)
		return
	}

	h.sendJSON(w, r, result, http.StatusOK)
}

// ListPredictions handles GET /api/predictions
func (h *EnergyHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	page := 1
	limit := 50

	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l <= maxPageLimit {
		limit = l
	}
	if p, err := strconv.Atoi(query.Get("page")); err == nil && p > 0 {
		page = p
	}
	// keep the offset within a Postgres integer
	if maxPage := math.MaxInt32/limit + 1; page > maxPage {
		page = maxPage
	}

	filter := repository.PredictionRunFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if city := query.Get("city"); city != "" {
		filter.City = &city
	}
	if mode := query.Get("mode"); mode != "" {
		filter.Mode = &mode
	}
	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.sendError(w, r, "since must be an RFC3339 timestamp", models.CategoryInvalidRequest, http.StatusBadRequest)
			return
		}
		filter.Since = &since
	}

	runs, total, err := h.history.ListRuns(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_PREDICTIONS_ERROR] Failed to list prediction runs", logging.Fields{
			"page":  page,
			"limit": limit,
		}, err)
		h.sendError(w, r, "failed to retrieve prediction history", models.CategoryInternal, http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, r, PaginatedResponse{
		Data:       runs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetPrediction handles GET /api/predictions/{id}
func (h *EnergyHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	run, err := h.history.GetRun(ctx, id)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			h.sendError(w, r, err.Error(), models.CategoryNotFound, http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_GET_PREDICTION_ERROR] Failed to get prediction run", logging.Fields{"run_id": id}, err)
		h.sendError(w, r, "failed to retrieve prediction run", models.CategoryInternal, http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, r, run, http.StatusOK)
}

func publicMessage(category string, err error) string {
	switch category {
	case models.CategoryUpstreamUnavailable:
		return "Weather API error"
	case models.CategoryInternal:
		return "internal server error"
	default:
		return err.Error()
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", field, fe.Tag()))
		}
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// sendJSON sends a JSON response. The body is encoded before the status is
// written so an unencodable value becomes a 500 instead of an empty 200.
func (h *EnergyHandler) sendJSON(w http.ResponseWriter, r *http.Request, data interface{}, statusCode int) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.logger.Error(r.Context(), "[API_ENCODE_ERROR] Failed to encode response", logging.Fields{
			"route":  routeName(r),
			"status": statusCode,
		}, err)
		h.sendError(w, r, "failed to encode response", models.CategoryInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(buf.Bytes())
}

// sendError sends an error response
func (h *EnergyHandler) sendError(w http.ResponseWriter, r *http.Request, message, category string, statusCode int) {
	h.metrics.RecordAPIError(category, routeName(r))

	response := ErrorResponse{
		Error:    http.StatusText(statusCode),
		Message:  message,
		Code:     statusCode,
		Category: category,
	}

	h.sendJSON(w, r, response, statusCode)
}

// RegisterRoutes registers all energy API routes
func (h *EnergyHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/cities", h.ListCities).Methods("GET")
	router.HandleFunc("/predict-energy", h.PredictEnergy).Methods("POST")

	if h.history != nil {
		router.HandleFunc("/api/predictions", h.ListPredictions).Methods("GET")
		router.HandleFunc("/api/predictions/{id}", h.GetPrediction).Methods("GET")
	}
}
