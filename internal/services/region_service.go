package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"energy-forecast/internal/models"
	"energy-forecast/internal/registry"
	"energy-forecast/internal/repository"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

// RegionService imports city mappings into the database and builds
// registries from the stored regions
type RegionService struct {
	repo    repository.EnergyRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// ImportResult contains import statistics
type ImportResult struct {
	TotalRegions    int
	UpsertedRegions int
	Batches         int
	Models          []string
	Duration        time.Duration
}

// NewRegionService creates a new region service
func NewRegionService(repo repository.EnergyRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *RegionService {
	return &RegionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ImportFile validates a city mapping file and upserts it in batches.
// Nothing is written if any entry is invalid.
func (s *RegionService) ImportFile(ctx context.Context, path string, batchSize int) (*ImportResult, error) {
	startTime := time.Now()
	if batchSize < 1 {
		batchSize = 1
	}

	s.logger.Info(ctx, "[IMPORT_START] Starting region import", logging.Fields{
		"file_path":  path,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer f.Close()

	regions, err := registry.Decode(f)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(regions)
	if err != nil {
		return nil, fmt.Errorf("invalid mapping file: %w", err)
	}

	result := &ImportResult{
		TotalRegions: len(regions),
		Models:       reg.ModelNames(),
	}

	batch := make([]*models.Region, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.UpsertRegionsBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to upsert batch %d: %w", result.Batches+1, err)
		}
		result.UpsertedRegions += len(batch)
		result.Batches++
		batch = batch[:0]
		return nil
	}

	for i := range regions {
		batch = append(batch, &regions[i])
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[IMPORT_COMPLETE] Region import completed", logging.Fields{
		"total_regions":    result.TotalRegions,
		"upserted_regions": result.UpsertedRegions,
		"batches":          result.Batches,
		"models":           result.Models,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

// LoadRegistry builds a registry from the regions table
func (s *RegionService) LoadRegistry(ctx context.Context) (*registry.Registry, error) {
	regions, err := s.repo.ListRegions(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(regions)
	if err != nil {
		return nil, fmt.Errorf("invalid regions in database: %w", err)
	}

	s.metrics.RegionsLoaded.Set(float64(reg.Len()))
	s.logger.Info(ctx, "[REGIONS_LOADED] Region registry loaded from database", logging.Fields{
		"cities": reg.Len(),
		"models": reg.ModelNames(),
	})
	return reg, nil
}
