package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"energy-forecast/internal/config"
	"energy-forecast/internal/modelpool"
	"energy-forecast/internal/repository"
	"energy-forecast/internal/services"
	"energy-forecast/pkg/database"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

func main() {
	// Parse command-line flags
	mappingFile := flag.String("file", "city_mapping.json", "City mapping JSON file to import")
	batchSize := flag.Int("batch-size", 100, "Number of regions to upsert in each batch")
	checkModels := flag.Bool("check-models", false, "Report models that are missing from the configured model directories")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-forecast-importer", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[IMPORTER_START] Starting city mapping import", logging.Fields{
		"version":      "1.0.0",
		"file":         *mappingFile,
		"batch_size":   *batchSize,
		"check_models": *checkModels,
	})

	metricsCollector := metrics.NewCollector("energy_forecast_importer", nil)

	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(ctx, dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[IMPORTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	energyRepo := repository.NewEnergyRepository(db, logger, metricsCollector)
	regionService := services.NewRegionService(energyRepo, logger, metricsCollector)

	result, err := regionService.ImportFile(ctx, *mappingFile, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[IMPORT_ERROR] Import failed", logging.Fields{
			"file": *mappingFile,
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("IMPORT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Regions:    %d\n", result.TotalRegions)
	fmt.Printf("Upserted Regions: %d\n", result.UpsertedRegions)
	fmt.Printf("Batches:          %d\n", result.Batches)
	fmt.Printf("Models:           %s\n", strings.Join(result.Models, ", "))
	fmt.Printf("Duration:         %v\n", result.Duration)

	if *checkModels {
		fmt.Println("\n" + strings.Repeat("=", 80))
		fmt.Println("CHECKING MODEL DIRECTORIES")
		fmt.Println(strings.Repeat("=", 80))

		store := modelpool.NewDirStore(cfg.Models.Dirs...)
		missing := 0
		for _, name := range result.Models {
			if dir, ok := store.Resolve(name); ok {
				fmt.Printf("  %-24s %s\n", name, dir)
			} else {
				fmt.Printf("  %-24s MISSING\n", name)
				missing++
			}
		}
		if missing > 0 {
			logger.Warn(ctx, "[IMPORT_MODELS_MISSING] Imported regions reference missing models", logging.Fields{
				"missing": missing,
				"dirs":    cfg.Models.Dirs,
			})
		}
	}

	logger.Info(ctx, "[IMPORTER_COMPLETE] Import completed successfully", logging.Fields{
		"total_regions":    result.TotalRegions,
		"upserted_regions": result.UpsertedRegions,
		"duration_seconds": result.Duration.Seconds(),
	})
}
