package models

import (
	"fmt"
	"math"
	"time"
)

// Forecast modes accepted by POST /predict-energy
const (
	ModeRealtime = "realtime"
	ModeWeekly   = "7day"
	ModeMonthly  = "monthly"
	ModeWind     = "wind"
)

// DefaultEfficiency is the panel efficiency applied when the request omits one
const DefaultEfficiency = 0.18

// GeoPoint is an immutable latitude/longitude pair in degrees
type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Validate checks the coordinate ranges
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// Region maps a city to its coordinates and the regression model assigned to it
type Region struct {
	City      string    `json:"city" db:"city"`
	Latitude  float64   `json:"lat" db:"latitude"`
	Longitude float64   `json:"lon" db:"longitude"`
	Model     string    `json:"model" db:"model_name"`
	CreatedAt time.Time `json:"-" db:"created_at"`
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

// Point returns the region's coordinates
func (r Region) Point() GeoPoint {
	return GeoPoint{Latitude: r.Latitude, Longitude: r.Longitude}
}

// HourlyWeatherSeries holds the index-aligned hourly arrays returned by the
// weather provider. A nil slice means the provider omitted the field; a nil
// element means the provider returned null for that hour.
type HourlyWeatherSeries struct {
	Time               []string   `json:"time"`
	DirectRadiation    []*float64 `json:"direct_radiation"`
	DiffuseRadiation   []*float64 `json:"diffuse_radiation"`
	ShortwaveRadiation []*float64 `json:"shortwave_radiation,omitempty"`
	Temperature        []*float64 `json:"temperature_2m"`
	WindSpeed          []*float64 `json:"wind_speed_10m"`
}

// Len is the number of hours available. The time axis is authoritative; a
// series without one falls back to the direct irradiance array.
func (s *HourlyWeatherSeries) Len() int {
	if s == nil {
		return 0
	}
	if s.Time != nil {
		return len(s.Time)
	}
	return len(s.DirectRadiation)
}

// Feature positions inside a FeatureVector. The order is fixed by the trained scalers.
const (
	FeatureGroundReflected = iota
	FeatureSolarElevation
	FeatureTemperature
	FeatureWindSpeed
	FeatureLatitude
	FeatureLongitude

	FeatureCount
)

// FeatureVector is the model input row
type FeatureVector [FeatureCount]float64

// Slice returns a copy of the vector as a slice
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}

// WeatherSnapshot summarizes the first forecast hour
type WeatherSnapshot struct {
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"wind_speed"`
	Condition   string  `json:"condition"`
}

// ForecastDay is one aggregated day of a multi-day forecast
type ForecastDay struct {
	Day         int     `json:"day"`
	EnergyTotal float64 `json:"energy_total"`
	EnergyPerM2 float64 `json:"energy_per_m2"`
	Timestamp   string  `json:"timestamp"`
	ValidHours  int     `json:"valid_hours"`
}

// PredictionResult is the response of a forecast request
type PredictionResult struct {
	City          string          `json:"city"`
	Latitude      float64         `json:"lat"`
	Longitude     float64         `json:"lon"`
	AssignedModel string          `json:"assigned_model"`
	Weather       WeatherSnapshot `json:"weather"`
	EnergyPerM2   float64         `json:"energy_per_m2"`
	EnergyTotal   float64         `json:"energy_total"`
	ForecastData  []ForecastDay   `json:"forecast_data"`
}

// PredictionRequest is the body of POST /predict-energy.
// NumTurbines and RotorDiameter are accepted for wind mode but not used.
type PredictionRequest struct {
	City          string   `json:"city" validate:"required"`
	Area          float64  `json:"area"`
	Efficiency    *float64 `json:"efficiency,omitempty" validate:"omitempty,gt=0,lte=1"`
	Mode          string   `json:"mode,omitempty"`
	NumTurbines   *int     `json:"num_turbines,omitempty" validate:"omitempty,gte=1"`
	RotorDiameter *float64 `json:"rotor_diameter,omitempty" validate:"omitempty,gt=0"`
}

// EffectiveEfficiency returns the requested efficiency or the default
func (r PredictionRequest) EffectiveEfficiency() float64 {
	if r.Efficiency == nil {
		return DefaultEfficiency
	}
	return *r.Efficiency
}

// EffectiveMode returns the requested mode or realtime
func (r PredictionRequest) EffectiveMode() string {
	if r.Mode == "" {
		return ModeRealtime
	}
	return r.Mode
}

// PredictionRun is a persisted record of one successful forecast request
type PredictionRun struct {
	ID           string    `json:"id" db:"id"`
	City         string    `json:"city" db:"city"`
	Mode         string    `json:"mode" db:"mode"`
	Model        string    `json:"model" db:"model_name"`
	Area         float64   `json:"area" db:"area"`
	Efficiency   float64   `json:"efficiency" db:"efficiency"`
	EnergyPerM2  float64   `json:"energy_per_m2" db:"energy_per_m2"`
	EnergyTotal  float64   `json:"energy_total" db:"energy_total"`
	ForecastDays int       `json:"forecast_days" db:"forecast_days"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
