package models

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoPoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		point   GeoPoint
		wantErr bool
	}{
		{"bengaluru", GeoPoint{Latitude: 12.97, Longitude: 77.59}, false},
		{"poles and antimeridian", GeoPoint{Latitude: -90, Longitude: 180}, false},
		{"latitude too high", GeoPoint{Latitude: 90.01, Longitude: 0}, true},
		{"longitude too low", GeoPoint{Latitude: 0, Longitude: -180.5}, true},
		{"NaN latitude", GeoPoint{Latitude: math.NaN(), Longitude: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHourlyWeatherSeries_Len(t *testing.T) {
	v := 1.0
	tests := []struct {
		name   string
		series *HourlyWeatherSeries
		want   int
	}{
		{"nil series", nil, 0},
		{"time axis wins", &HourlyWeatherSeries{Time: []string{"a", "b"}, DirectRadiation: []*float64{&v}}, 2},
		{"falls back to direct radiation", &HourlyWeatherSeries{DirectRadiation: []*float64{&v, &v, &v}}, 3},
		{"empty time axis", &HourlyWeatherSeries{Time: []string{}, DirectRadiation: []*float64{&v}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.series.Len())
		})
	}
}

func TestPredictionRequest_Defaults(t *testing.T) {
	req := PredictionRequest{City: "Mysuru", Area: 10}
	assert.Equal(t, DefaultEfficiency, req.EffectiveEfficiency())
	assert.Equal(t, ModeRealtime, req.EffectiveMode())

	eff := 0.21
	req = PredictionRequest{City: "Mysuru", Area: 10, Efficiency: &eff, Mode: ModeWeekly}
	assert.Equal(t, 0.21, req.EffectiveEfficiency())
	assert.Equal(t, ModeWeekly, req.EffectiveMode())
}

func TestFeatureVector_SliceIsCopy(t *testing.T) {
	v := FeatureVector{1, 2, 3, 4, 5, 6}
	s := v.Slice()
	s[0] = 99
	assert.Equal(t, 1.0, v[FeatureGroundReflected])
	assert.Len(t, s, FeatureCount)
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"city not found", NewCityNotFoundError("Atlantis"), CategoryCityNotFound},
		{"plain validation", &ValidationError{Message: "bad"}, CategoryInvalidRequest},
		{"configuration", &ConfigurationError{Model: "m", Message: "missing"}, CategoryConfiguration},
		{"wrapped upstream", fmt.Errorf("fetch: %w", &UpstreamUnavailableError{Provider: "open-meteo", StatusCode: 500}), CategoryUpstreamUnavailable},
		{"bad upstream", &BadUpstreamResponseError{Provider: "open-meteo", Message: "missing 'hourly'"}, CategoryBadUpstream},
		{"missing data", &MissingDataError{Field: "direct_radiation", Index: 3}, CategoryMissingData},
		{"unclassified", errors.New("boom"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestErrorTransience(t *testing.T) {
	assert.True(t, (&UpstreamUnavailableError{}).IsTransient())
	assert.False(t, (&BadUpstreamResponseError{}).IsTransient())
	assert.False(t, (&ValidationError{}).IsTransient())
	assert.False(t, (&ConfigurationError{}).IsTransient())
}

func TestUpstreamUnavailableError_Message(t *testing.T) {
	err := &UpstreamUnavailableError{Provider: "open-meteo", StatusCode: 503}
	assert.Equal(t, "open-meteo returned status 503", err.Error())

	cause := errors.New("dial tcp: timeout")
	err = &UpstreamUnavailableError{Provider: "open-meteo", Err: cause}
	assert.ErrorIs(t, err, cause)
}
