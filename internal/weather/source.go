// Package weather fetches hourly forecast series from Open-Meteo and wraps
// sources with caching.
package weather

import (
	"context"
	"encoding/json"
	"fmt"

	"energy-forecast/internal/models"
)

// HourlyFields is the hourly variable list requested from the provider
const HourlyFields = "direct_radiation,diffuse_radiation,shortwave_radiation,temperature_2m,wind_speed_10m"

// Source returns hourly weather arrays for a point over a number of forecast days
type Source interface {
	FetchHourly(ctx context.Context, point models.GeoPoint, days int) (*models.HourlyWeatherSeries, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, point models.GeoPoint, days int) (*models.HourlyWeatherSeries, error)

// FetchHourly calls f
func (f SourceFunc) FetchHourly(ctx context.Context, point models.GeoPoint, days int) (*models.HourlyWeatherSeries, error) {
	return f(ctx, point, days)
}

type forecastBody struct {
	Latitude  float64                     `json:"latitude"`
	Longitude float64                     `json:"longitude"`
	Timezone  string                      `json:"timezone"`
	Hourly    *models.HourlyWeatherSeries `json:"hourly"`
}

// ParseForecastBody decodes an Open-Meteo forecast document. A body that is not
// JSON or has no "hourly" object is a BadUpstreamResponseError; partially
// populated arrays are left for the feature builder to reject per hour.
func ParseForecastBody(provider string, body []byte) (*models.HourlyWeatherSeries, error) {
	var doc forecastBody
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &models.BadUpstreamResponseError{
			Provider: provider,
			Message:  "invalid JSON in weather response",
			Err:      err,
		}
	}
	if doc.Hourly == nil {
		return nil, &models.BadUpstreamResponseError{
			Provider: provider,
			Message:  "Weather API response missing 'hourly'",
		}
	}
	return doc.Hourly, nil
}

func cacheKey(point models.GeoPoint, days int) string {
	return fmt.Sprintf("weather:hourly:%.4f:%.4f:%d", point.Latitude, point.Longitude, days)
}
