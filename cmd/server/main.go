package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"energy-forecast/internal/config"
	"energy-forecast/internal/handlers"
	"energy-forecast/internal/modelpool"
	"energy-forecast/internal/registry"
	"energy-forecast/internal/repository"
	"energy-forecast/internal/services"
	"energy-forecast/internal/weather"
	"energy-forecast/pkg/database"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-forecast-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting energy forecast API server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"db_enabled":     cfg.Database.Enabled,
		"models_source":  cfg.Models.Source,
		"regions_source": cfg.Regions.Source,
	})

	metricsCollector := metrics.NewCollector("energy_forecast", nil)

	// Optional database for region storage and prediction history
	var repo repository.EnergyRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, &database.Config{
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
		}, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		repo = repository.NewEnergyRepository(db, logger, metricsCollector)
	}

	regions, err := loadRegions(ctx, cfg, repo, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load city mapping", logging.Fields{
			"regions_source": cfg.Regions.Source,
		}, err)
	}

	store, err := modelStore(cfg)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to configure model store", logging.Fields{}, err)
	}

	pool, loadErrs := modelpool.Load(ctx, store, regions.ModelNames(), logger)
	metricsCollector.ModelsLoaded.Set(float64(pool.Len()))
	if len(loadErrs) > 0 {
		logger.Warn(ctx, "[STARTUP_MODELS] Some models failed to load; their cities will be rejected", logging.Fields{
			"failed": len(loadErrs),
			"loaded": pool.Len(),
			"store":  store.String(),
		})
	}

	source := weatherSource(ctx, cfg, logger, metricsCollector)

	// Services
	var recorder services.RunRecorder
	var history *services.HistoryService
	if repo != nil {
		recorder = repo
		history = services.NewHistoryService(repo, logger, metricsCollector)
	}

	forecastService := services.NewForecastService(
		regions,
		pool,
		source,
		recorder,
		services.Thresholds{
			DaylightCutoff: cfg.Forecast.DaylightCutoff,
			ClearSkyCutoff: cfg.Forecast.ClearSkyCutoff,
		},
		logger,
		metricsCollector,
	)

	energyHandler := handlers.NewEnergyHandler(forecastService, history, logger, metricsCollector)
	router := handlers.NewRouter(energyHandler, promhttp.Handler(), logger, metricsCollector)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address":          server.Addr,
			"cities_available": regions.Len(),
			"models_loaded":    pool.Len(),
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

func loadRegions(ctx context.Context, cfg *config.Config, repo repository.EnergyRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*registry.Registry, error) {
	if cfg.Regions.Source == config.RegionSourcePostgres {
		return services.NewRegionService(repo, logger, metricsCollector).LoadRegistry(ctx)
	}

	reg, err := registry.LoadFile(cfg.Regions.File)
	if err != nil {
		return nil, err
	}
	metricsCollector.RegionsLoaded.Set(float64(reg.Len()))
	logger.Info(ctx, "[REGIONS_LOADED] City mapping loaded from file", logging.Fields{
		"file":   cfg.Regions.File,
		"cities": reg.Len(),
	})
	return reg, nil
}

func modelStore(cfg *config.Config) (modelpool.ArtifactStore, error) {
	if cfg.Models.Source == config.ModelSourceS3 {
		return modelpool.NewS3Store(modelpool.S3Config{
			Endpoint:  cfg.Models.S3Endpoint,
			AccessKey: cfg.Models.S3AccessKey,
			SecretKey: cfg.Models.S3SecretKey,
			Bucket:    cfg.Models.S3Bucket,
			Prefix:    cfg.Models.S3Prefix,
			UseSSL:    cfg.Models.S3UseSSL,
		})
	}
	return modelpool.NewDirStore(cfg.Models.Dirs...), nil
}

// weatherSource builds the Open-Meteo client, wrapped in a cache when a TTL is set
func weatherSource(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) weather.Source {
	client := weather.NewOpenMeteoClient(weather.OpenMeteoConfig{
		BaseURL:            cfg.Weather.BaseURL,
		Timeout:            cfg.Weather.Timeout,
		Timezone:           cfg.Weather.Timezone,
		RateLimitRPS:       cfg.Weather.RateLimitRPS,
		RateLimitBurst:     cfg.Weather.RateLimitBurst,
		BreakerMaxRequests: cfg.Weather.BreakerMaxRequests,
		BreakerInterval:    cfg.Weather.BreakerInterval,
		BreakerTimeout:     cfg.Weather.BreakerTimeout,
	}, nil, logger, metricsCollector)

	if cfg.Weather.CacheTTL <= 0 {
		return client
	}

	var cache weather.Cache = weather.NewMemoryCache()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "[STARTUP_CACHE] Redis unreachable, using in-memory weather cache", logging.Fields{
				"addr":  cfg.Redis.Addr,
				"error": err.Error(),
			})
		} else {
			cache = weather.NewRedisCache(rdb)
		}
	}

	logger.Info(ctx, "[STARTUP_CACHE] Weather cache enabled", logging.Fields{
		"ttl_seconds": cfg.Weather.CacheTTL.Seconds(),
		"redis":       cfg.Redis.Enabled,
	})
	return weather.NewCachedSource(client, cache, cfg.Weather.CacheTTL, logger, metricsCollector)
}
