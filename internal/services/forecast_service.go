package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"energy-forecast/internal/features"
	"energy-forecast/internal/modelpool"
	"energy-forecast/internal/models"
	"energy-forecast/internal/registry"
	"energy-forecast/internal/weather"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

const hoursPerDay = 24

// Thresholds are the irradiance cutoffs used during aggregation, in W/m²
type Thresholds struct {
	// Hours with direct irradiance at or below this are not predicted
	DaylightCutoff float64
	// Direct irradiance above this reports a "Clear" condition
	ClearSkyCutoff float64
}

// DefaultThresholds returns the production cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{DaylightCutoff: 10, ClearSkyCutoff: 500}
}

// HorizonForMode maps a forecast mode to the number of days requested upstream
func HorizonForMode(mode string) int {
	switch mode {
	case models.ModeWeekly:
		return 7
	case models.ModeMonthly:
		return 16
	default:
		return 1
	}
}

// roundTo rounds half away from zero at the given number of decimals. Values
// too large to scale are already integral and are returned unchanged.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	if math.IsInf(v*p, 0) {
		return v
	}
	return math.Round(v*p) / p
}

// RunRecorder persists successful prediction runs
type RunRecorder interface {
	CreatePredictionRun(ctx context.Context, run *models.PredictionRun) error
}

// ForecastService turns a city request into current and multi-day energy estimates
type ForecastService struct {
	regions    *registry.Registry
	pool       *modelpool.Pool
	source     weather.Source
	builder    *features.Builder
	runs       RunRecorder
	thresholds Thresholds
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewForecastService creates a forecast service. runs may be nil when history
// is not persisted.
func NewForecastService(
	regions *registry.Registry,
	pool *modelpool.Pool,
	source weather.Source,
	runs RunRecorder,
	thresholds Thresholds,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ForecastService {
	return &ForecastService{
		regions:    regions,
		pool:       pool,
		source:     source,
		builder:    features.NewBuilder(nil),
		runs:       runs,
		thresholds: thresholds,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// SetClock overrides the instant used for series without a time axis
func (s *ForecastService) SetClock(now func() time.Time) {
	s.builder = features.NewBuilder(now)
}

// Regions returns the registry the service resolves cities against
func (s *ForecastService) Regions() *registry.Registry {
	return s.regions
}

// Pool returns the loaded models
func (s *ForecastService) Pool() *modelpool.Pool {
	return s.pool
}

// Predict validates the request against the registry and pool, fetches the
// weather series and aggregates it
func (s *ForecastService) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	mode := req.EffectiveMode()
	start := time.Now()

	region, ok := s.regions.Lookup(req.City)
	if !ok {
		return nil, models.NewCityNotFoundError(req.City)
	}

	if req.Area <= 0 {
		return nil, &models.ValidationError{
			Field:   "area",
			Value:   fmt.Sprintf("%g", req.Area),
			Message: "Area must be greater than 0",
			Code:    models.CategoryInvalidArea,
		}
	}

	if !s.pool.Has(region.Model) {
		return nil, &models.ConfigurationError{
			Model:   region.Model,
			Message: fmt.Sprintf("Model/scaler for '%s' not loaded on server", region.Model),
		}
	}

	horizon := HorizonForMode(mode)
	series, err := s.source.FetchHourly(ctx, region.Point(), horizon)
	if err != nil {
		if models.CategoryOf(err) == models.CategoryInternal {
			err = &models.UpstreamUnavailableError{Provider: "weather", Err: err}
		}
		return nil, err
	}

	result, err := s.Aggregate(ctx, series, region, req)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.metrics.ForecastDuration.WithLabelValues(mode).Observe(float64(elapsed.Microseconds()) / 1000)

	s.logger.Info(ctx, "[FORECAST_COMPLETE] Energy forecast generated", logging.Fields{
		"city":          region.City,
		"model":         region.Model,
		"mode":          mode,
		"forecast_days": len(result.ForecastData),
		"duration_ms":   elapsed.Milliseconds(),
	})

	s.recordRun(ctx, req, result)
	return result, nil
}

// Aggregate computes the current-hour result and, for multi-day modes, the
// per-day totals. It performs no I/O.
func (s *ForecastService) Aggregate(ctx context.Context, series *models.HourlyWeatherSeries, region models.Region, req models.PredictionRequest) (*models.PredictionResult, error) {
	mode := req.EffectiveMode()
	efficiency := req.EffectiveEfficiency()
	point := region.Point()

	var days []models.ForecastDay
	if horizon := HorizonForMode(mode); horizon > 1 {
		days = s.aggregateDays(ctx, series, region, horizon, efficiency, req.Area)
	}

	current, err := s.builder.Build(series, 0, point)
	if err != nil {
		return nil, &models.BadUpstreamResponseError{
			Provider: "weather",
			Message:  "first forecast hour is unusable",
			Err:      err,
		}
	}

	power, err := s.predict(region.Model, current.Vector)
	if err != nil {
		return nil, &models.ConfigurationError{
			Model:   region.Model,
			Message: fmt.Sprintf("model '%s' failed to predict", region.Model),
			Err:     err,
		}
	}

	energyPerM2 := power * efficiency / 1000.0
	energyTotal := energyPerM2 * req.Area

	condition := "Cloudy"
	if current.DirectIrradiance > s.thresholds.ClearSkyCutoff {
		condition = "Clear"
	}

	if !isFinite(energyTotal) || !daysFinite(days) {
		return nil, &models.ValidationError{
			Field:   "area",
			Value:   fmt.Sprintf("%g", req.Area),
			Message: "Area is too large for a finite energy total",
			Code:    models.CategoryInvalidArea,
		}
	}

	return &models.PredictionResult{
		City:          region.City,
		Latitude:      region.Latitude,
		Longitude:     region.Longitude,
		AssignedModel: region.Model,
		Weather: models.WeatherSnapshot{
			Temperature: current.Temperature,
			WindSpeed:   current.WindSpeed,
			Condition:   condition,
		},
		EnergyPerM2:  roundTo(energyPerM2, 4),
		EnergyTotal:  roundTo(energyTotal, 2),
		ForecastData: days,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func daysFinite(days []models.ForecastDay) bool {
	for _, d := range days {
		if !isFinite(d.EnergyTotal) || !isFinite(d.EnergyPerM2) {
			return false
		}
	}
	return true
}

// predict returns the model output clamped at zero; NaN counts as zero
func (s *ForecastService) predict(model string, v models.FeatureVector) (float64, error) {
	p, err := s.pool.Predict(model, v)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordPrediction(model)
	if !(p > 0) {
		p = 0
	}
	return p, nil
}

func (s *ForecastService) aggregateDays(ctx context.Context, series *models.HourlyWeatherSeries, region models.Region, horizon int, efficiency, area float64) []models.ForecastDay {
	available := series.Len()
	numDays := available / hoursPerDay
	if horizon < numDays {
		numDays = horizon
	}

	var days []models.ForecastDay
	for d := 0; d < numDays; d++ {
		var daily float64
		valid := 0

		for h := 0; h < hoursPerDay; h++ {
			idx := d*hoursPerDay + h
			if idx >= available {
				break
			}

			f, err := s.builder.Build(series, idx, region.Point())
			if err != nil {
				s.skipHour(ctx, region, idx, err)
				continue
			}
			if f.DirectIrradiance <= s.thresholds.DaylightCutoff {
				s.metrics.RecordSkippedHour("no_daylight")
				continue
			}

			p, err := s.predict(region.Model, f.Vector)
			if err != nil {
				s.skipHour(ctx, region, idx, err)
				continue
			}

			daily += p * efficiency / 1000.0
			valid++
		}

		if valid == 0 {
			continue
		}

		var timestamp string
		if first := d * hoursPerDay; first < len(series.Time) {
			timestamp = series.Time[first]
		}

		days = append(days, models.ForecastDay{
			Day:         d + 1,
			EnergyTotal: roundTo(daily*area, 2),
			EnergyPerM2: roundTo(daily, 4),
			Timestamp:   timestamp,
			ValidHours:  valid,
		})
	}

	s.logger.Debug(ctx, "[FORECAST_DAYS] Multi-day aggregation finished", logging.Fields{
		"city":           region.City,
		"requested_days": horizon,
		"hours":          available,
		"days_reported":  len(days),
	})
	return days
}

func (s *ForecastService) skipHour(ctx context.Context, region models.Region, idx int, err error) {
	s.metrics.RecordSkippedHour("error")
	s.logger.Warn(ctx, "[FORECAST_HOUR_SKIPPED] Error processing hour", logging.Fields{
		"city":       region.City,
		"model":      region.Model,
		"hour_index": idx,
		"error":      err.Error(),
	})
}

func (s *ForecastService) recordRun(ctx context.Context, req models.PredictionRequest, result *models.PredictionResult) {
	if s.runs == nil {
		return
	}

	run := &models.PredictionRun{
		ID:           uuid.NewString(),
		City:         result.City,
		Mode:         req.EffectiveMode(),
		Model:        result.AssignedModel,
		Area:         req.Area,
		Efficiency:   req.EffectiveEfficiency(),
		EnergyPerM2:  result.EnergyPerM2,
		EnergyTotal:  result.EnergyTotal,
		ForecastDays: len(result.ForecastData),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.runs.CreatePredictionRun(ctx, run); err != nil {
		s.logger.Error(ctx, "[FORECAST_HISTORY_ERROR] Failed to record prediction run", logging.Fields{
			"city": result.City,
			"mode": run.Mode,
		}, err)
	}
}
