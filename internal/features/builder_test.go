package features

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-forecast/internal/models"
	"energy-forecast/internal/solar"
)

func ptr(v float64) *float64 { return &v }

var mysuru = models.GeoPoint{Latitude: 12.2958, Longitude: 76.6394}

func oneHour(ts string, direct, diffuse, temp, wind float64) *models.HourlyWeatherSeries {
	return &models.HourlyWeatherSeries{
		Time:             []string{ts},
		DirectRadiation:  []*float64{ptr(direct)},
		DiffuseRadiation: []*float64{ptr(diffuse)},
		Temperature:      []*float64{ptr(temp)},
		WindSpeed:        []*float64{ptr(wind)},
	}
}

func TestBuild_FeatureOrderAndGroundReflected(t *testing.T) {
	b := NewBuilder(nil)
	series := oneHour("2024-06-21T06:00", 600, 100, 28.5, 3.2)

	f, err := b.Build(series, 0, mysuru)
	require.NoError(t, err)

	wantElevation, err := solar.Elevation(mysuru.Latitude, mysuru.Longitude, time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 140.0, f.Vector[models.FeatureGroundReflected])
	assert.Equal(t, wantElevation, f.Vector[models.FeatureSolarElevation])
	assert.Equal(t, 28.5, f.Vector[models.FeatureTemperature])
	assert.Equal(t, 3.2, f.Vector[models.FeatureWindSpeed])
	assert.Equal(t, mysuru.Latitude, f.Vector[models.FeatureLatitude])
	assert.Equal(t, mysuru.Longitude, f.Vector[models.FeatureLongitude])

	assert.Equal(t, 600.0, f.DirectIrradiance)
	assert.Equal(t, 28.5, f.Temperature)
	assert.Equal(t, 3.2, f.WindSpeed)
	assert.Equal(t, wantElevation, f.SolarElevation)
}

func TestBuild_MissingData(t *testing.T) {
	b := NewBuilder(nil)

	tests := []struct {
		name      string
		mutate    func(s *models.HourlyWeatherSeries)
		index     int
		wantField string
	}{
		{"absent direct radiation", func(s *models.HourlyWeatherSeries) { s.DirectRadiation = nil }, 0, FieldDirectRadiation},
		{"null diffuse radiation", func(s *models.HourlyWeatherSeries) { s.DiffuseRadiation[0] = nil }, 0, FieldDiffuseRadiation},
		{"absent temperature", func(s *models.HourlyWeatherSeries) { s.Temperature = nil }, 0, FieldTemperature},
		{"absent wind speed", func(s *models.HourlyWeatherSeries) { s.WindSpeed = nil }, 0, FieldWindSpeed},
		{"index past the end", func(s *models.HourlyWeatherSeries) {}, 5, FieldDirectRadiation},
		{"negative index", func(s *models.HourlyWeatherSeries) {}, -1, FieldDirectRadiation},
		{"short time axis", func(s *models.HourlyWeatherSeries) { s.Time = []string{} }, 0, FieldTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := oneHour("2024-06-21T06:00", 600, 100, 25, 2)
			tt.mutate(series)

			_, err := b.Build(series, tt.index, mysuru)
			var missing *models.MissingDataError
			require.True(t, errors.As(err, &missing), "expected MissingDataError, got %v", err)
			assert.Equal(t, tt.wantField, missing.Field)
			assert.Equal(t, tt.index, missing.Index)
		})
	}
}

func TestBuild_FallsBackToClockWithoutTimeAxis(t *testing.T) {
	fixed := time.Date(2024, 3, 20, 12, 7, 0, 0, time.UTC)
	b := NewBuilder(func() time.Time { return fixed })

	series := oneHour("", 0, 0, 20, 1)
	series.Time = nil

	f, err := b.Build(series, 0, models.GeoPoint{})
	require.NoError(t, err)
	assert.Equal(t, fixed, f.Instant)
	assert.InDelta(t, 90.0, f.SolarElevation, 1.0)
}

func TestBuild_InvalidTimestamp(t *testing.T) {
	b := NewBuilder(nil)
	_, err := b.Build(oneHour("yesterday", 1, 1, 1, 1), 0, mysuru)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ISO-8601 timestamp")
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-06-21T06:00", time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC)},
		{"2024-06-21T06:00:30", time.Date(2024, 6, 21, 6, 0, 30, 0, time.UTC)},
		{"2024-06-21T06:00:00Z", time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC)},
		{"2024-06-21T11:30:00+05:30", time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC)},
		{"2024-06-21T11:30+05:30", time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC)},
		{"2024-06-21 06:00:00", time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC)},
		{"2024-06-21", time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := ParseTimestamp("21/06/2024")
	assert.Error(t, err)
}
