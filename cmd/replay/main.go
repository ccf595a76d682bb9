// Command replay runs the forecast pipeline offline for one city against a
// saved Open-Meteo response and prints the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"energy-forecast/internal/features"
	"energy-forecast/internal/modelpool"
	"energy-forecast/internal/models"
	"energy-forecast/internal/registry"
	"energy-forecast/internal/services"
	"energy-forecast/internal/weather"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

func main() {
	logger := logging.NewStructuredLogger("energy-forecast-replay", "1.0.0", logging.WarnLevel)
	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, logger *logging.StructuredLogger) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(out)
	city := fs.String("city", "", "City to forecast (required)")
	weatherFile := fs.String("weather", "", "Saved Open-Meteo response body (required)")
	mappingFile := fs.String("mapping", "city_mapping.json", "City mapping JSON file")
	modelDirs := fs.String("models", "../models,./models", "Comma-separated model directories in priority order")
	mode := fs.String("mode", models.ModeRealtime, "realtime, 7day or monthly")
	area := fs.Float64("area", 1, "Collector area in m²")
	efficiency := fs.Float64("efficiency", models.DefaultEfficiency, "Panel efficiency in (0,1]")
	hours := fs.Int("hours", 3, "Number of leading hours to print feature rows for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *city == "" || *weatherFile == "" {
		return fmt.Errorf("-city and -weather are required")
	}

	regions, err := registry.LoadFile(*mappingFile)
	if err != nil {
		return err
	}
	region, ok := regions.Lookup(*city)
	if !ok {
		return models.NewCityNotFoundError(*city)
	}

	metricsCollector := metrics.NewCollector("energy_forecast_replay", prometheus.NewRegistry())

	var dirs []string
	for _, d := range strings.Split(*modelDirs, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	store := modelpool.NewDirStore(dirs...)
	pool, loadErrs := modelpool.Load(ctx, store, []string{region.Model}, logger)
	if len(loadErrs) > 0 {
		return loadErrs[0]
	}

	source := weather.FileSource{Path: *weatherFile}
	series, err := source.FetchHourly(ctx, region.Point(), services.HorizonForMode(*mode))
	if err != nil {
		return err
	}

	divider := strings.Repeat("─", 64)
	fmt.Fprintln(out, divider)
	fmt.Fprintf(out, "Replaying %s (%.4f, %.4f) with model %s\n", region.City, region.Latitude, region.Longitude, region.Model)
	fmt.Fprintf(out, "Hours available: %d\n", series.Len())
	fmt.Fprintln(out, divider)

	builder := features.NewBuilder(nil)
	for i := 0; i < *hours && i < series.Len(); i++ {
		f, err := builder.Build(series, i, region.Point())
		if err != nil {
			fmt.Fprintf(out, "  [%d] skipped: %v\n", i, err)
			continue
		}
		p, err := pool.Predict(region.Model, f.Vector)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  [%d] %s | elev %.2f° | direct %.1f W/m² | temp %.1f°C | P %.2f\n",
			i, f.Instant.Format("2006-01-02T15:04Z07:00"), f.SolarElevation, f.DirectIrradiance, f.Temperature, p)
	}

	forecast := services.NewForecastService(regions, pool, source, nil, services.DefaultThresholds(), logger, metricsCollector)
	result, err := forecast.Predict(ctx, models.PredictionRequest{
		City:       region.City,
		Area:       *area,
		Efficiency: efficiency,
		Mode:       *mode,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, divider)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
