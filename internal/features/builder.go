package features

import (
	"fmt"
	"time"

	"energy-forecast/internal/models"
	"energy-forecast/internal/solar"
)

// Albedo is the ground reflectance used for the ground-reflected irradiance term
const Albedo = 0.2

// Field names as they appear in the provider's hourly payload
const (
	FieldTime             = "time"
	FieldDirectRadiation  = "direct_radiation"
	FieldDiffuseRadiation = "diffuse_radiation"
	FieldTemperature      = "temperature_2m"
	FieldWindSpeed        = "wind_speed_10m"
)

// Features is one model-ready row plus the raw values callers report back
type Features struct {
	Vector           models.FeatureVector
	Temperature      float64
	WindSpeed        float64
	SolarElevation   float64
	DirectIrradiance float64
	Instant          time.Time
}

// Builder assembles feature vectors from an hourly series
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a Builder. now supplies the instant for series without a
// time axis; nil means the wall clock.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// Build extracts hour index from series and returns its feature vector
func (b *Builder) Build(series *models.HourlyWeatherSeries, index int, point models.GeoPoint) (Features, error) {
	if series == nil {
		return Features{}, &models.MissingDataError{Field: "hourly", Index: index}
	}

	direct, err := valueAt(FieldDirectRadiation, series.DirectRadiation, index)
	if err != nil {
		return Features{}, err
	}
	diffuse, err := valueAt(FieldDiffuseRadiation, series.DiffuseRadiation, index)
	if err != nil {
		return Features{}, err
	}
	temperature, err := valueAt(FieldTemperature, series.Temperature, index)
	if err != nil {
		return Features{}, err
	}
	windSpeed, err := valueAt(FieldWindSpeed, series.WindSpeed, index)
	if err != nil {
		return Features{}, err
	}

	instant, err := b.instantAt(series, index)
	if err != nil {
		return Features{}, err
	}

	elevation, err := solar.Elevation(point.Latitude, point.Longitude, instant)
	if err != nil {
		return Features{}, fmt.Errorf("solar elevation at hour %d: %w", index, err)
	}

	var v models.FeatureVector
	v[models.FeatureGroundReflected] = (direct + diffuse) * Albedo
	v[models.FeatureSolarElevation] = elevation
	v[models.FeatureTemperature] = temperature
	v[models.FeatureWindSpeed] = windSpeed
	v[models.FeatureLatitude] = point.Latitude
	v[models.FeatureLongitude] = point.Longitude

	return Features{
		Vector:           v,
		Temperature:      temperature,
		WindSpeed:        windSpeed,
		SolarElevation:   elevation,
		DirectIrradiance: direct,
		Instant:          instant,
	}, nil
}

func (b *Builder) instantAt(series *models.HourlyWeatherSeries, index int) (time.Time, error) {
	if series.Time == nil {
		return b.now().UTC(), nil
	}
	if index < 0 || index >= len(series.Time) {
		return time.Time{}, &models.MissingDataError{Field: FieldTime, Index: index}
	}
	ts, err := ParseTimestamp(series.Time[index])
	if err != nil {
		return time.Time{}, fmt.Errorf("hour %d: %w", index, err)
	}
	return ts, nil
}

func valueAt(field string, values []*float64, index int) (float64, error) {
	if index < 0 || index >= len(values) || values[index] == nil {
		return 0, &models.MissingDataError{Field: field, Index: index}
	}
	return *values[index], nil
}
