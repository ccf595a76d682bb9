package weather

import (
	"context"
	"fmt"
	"os"

	"energy-forecast/internal/models"
)

// FileSource replays a saved forecast response. The point and day count are
// ignored; the file is returned as recorded.
type FileSource struct {
	Path string
}

func (f FileSource) FetchHourly(_ context.Context, _ models.GeoPoint, _ int) (*models.HourlyWeatherSeries, error) {
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &models.UpstreamUnavailableError{
			Provider: "file",
			Err:      fmt.Errorf("read %s: %w", f.Path, err),
		}
	}
	return ParseForecastBody("file", body)
}
