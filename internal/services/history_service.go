package services

import (
	"context"

	"github.com/google/uuid"

	"energy-forecast/internal/models"
	"energy-forecast/internal/repository"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

// HistoryService handles prediction history queries
type HistoryService struct {
	repo    repository.EnergyRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewHistoryService creates a new history service
func NewHistoryService(repo repository.EnergyRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *HistoryService {
	return &HistoryService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListRuns retrieves prediction runs with filtering
func (s *HistoryService) ListRuns(ctx context.Context, filter repository.PredictionRunFilter) ([]*models.PredictionRun, int, error) {
	return s.repo.ListPredictionRuns(ctx, filter)
}

// GetRun retrieves one prediction run. Ids that are not UUIDs cannot exist.
func (s *HistoryService) GetRun(ctx context.Context, id string) (*models.PredictionRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &models.NotFoundError{Resource: "prediction run", ID: id}
	}
	return s.repo.GetPredictionRun(ctx, id)
}
