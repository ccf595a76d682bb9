package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"energy-forecast/internal/models"
	"energy-forecast/pkg/database"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

// EnergyRepository provides data access for regions and prediction history
type EnergyRepository interface {
	// Region operations
	UpsertRegionsBatch(ctx context.Context, regions []*models.Region) error
	ListRegions(ctx context.Context) ([]models.Region, error)

	// Prediction history operations
	CreatePredictionRun(ctx context.Context, run *models.PredictionRun) error
	GetPredictionRun(ctx context.Context, id string) (*models.PredictionRun, error)
	ListPredictionRuns(ctx context.Context, filter PredictionRunFilter) ([]*models.PredictionRun, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// PredictionRunFilter defines filters for querying prediction history
type PredictionRunFilter struct {
	City   *string
	Mode   *string
	Since  *time.Time
	Limit  int
	Offset int
}

// energyRepository implements EnergyRepository
type energyRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewEnergyRepository creates a new energy repository
func NewEnergyRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) EnergyRepository {
	return &energyRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const upsertRegionQuery = `
	INSERT INTO regions (city, latitude, longitude, model_name, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (city) DO UPDATE SET
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		model_name = EXCLUDED.model_name,
		updated_at = EXCLUDED.updated_at
`

// UpsertRegionsBatch inserts or updates regions in a single transaction
func (r *energyRepository) UpsertRegionsBatch(ctx context.Context, regions []*models.Region) error {
	if len(regions) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Region batch upsert completed", logging.Fields{
			"count":       len(regions),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertRegionQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, region := range regions {
		created := region.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err := stmt.ExecContext(ctx,
			region.City,
			region.Latitude,
			region.Longitude,
			region.Model,
			created,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert region %q: %w", region.City, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRegions returns every region ordered by city
func (r *energyRepository) ListRegions(ctx context.Context) ([]models.Region, error) {
	query := `
		SELECT city, latitude, longitude, model_name, created_at, updated_at
		FROM regions
		ORDER BY city
	`

	var regions []models.Region
	if err := r.db.SelectContext(ctx, "list_regions", &regions, query); err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return regions, nil
}

// CreatePredictionRun stores one prediction run
func (r *energyRepository) CreatePredictionRun(ctx context.Context, run *models.PredictionRun) error {
	query := `
		INSERT INTO prediction_runs (
			id, city, mode, model_name, area, efficiency,
			energy_per_m2, energy_total, forecast_days, created_at
		)
		VALUES (
			:id, :city, :mode, :model_name, :area, :efficiency,
			:energy_per_m2, :energy_total, :forecast_days, :created_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, "insert_prediction_run", query, run); err != nil {
		return fmt.Errorf("failed to create prediction run: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_RUN] Prediction run recorded", logging.Fields{
		"run_id": run.ID,
		"city":   run.City,
		"mode":   run.Mode,
	})
	return nil
}

const runColumns = `id, city, mode, model_name, area, efficiency,
		       energy_per_m2, energy_total, forecast_days, created_at`

// GetPredictionRun retrieves a prediction run by ID
func (r *energyRepository) GetPredictionRun(ctx context.Context, id string) (*models.PredictionRun, error) {
	query := `SELECT ` + runColumns + ` FROM prediction_runs WHERE id = $1`

	var run models.PredictionRun
	err := r.db.GetContext(ctx, "get_prediction_run", &run, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{
			Resource: "prediction_run",
			ID:       id,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction run: %w", err)
	}
	return &run, nil
}

// buildRunQuery returns the filtered select and its arguments, without pagination
func buildRunQuery(filter PredictionRunFilter) (string, []interface{}) {
	query := `
		SELECT ` + runColumns + `
		FROM prediction_runs
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.City != nil {
		query += fmt.Sprintf(" AND city = $%d", argNum)
		args = append(args, *filter.City)
		argNum++
	}

	if filter.Mode != nil {
		query += fmt.Sprintf(" AND mode = $%d", argNum)
		args = append(args, *filter.Mode)
		argNum++
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, *filter.Since)
	}

	return query, args
}

// ListPredictionRuns retrieves prediction runs with filtering and pagination
func (r *energyRepository) ListPredictionRuns(ctx context.Context, filter PredictionRunFilter) ([]*models.PredictionRun, int, error) {
	query, args := buildRunQuery(filter)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	if err := r.db.GetContext(ctx, "count_prediction_runs", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count prediction runs: %w", err)
	}

	argNum := len(args) + 1
	query += " ORDER BY created_at DESC, id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var runs []*models.PredictionRun
	if err := r.db.SelectContext(ctx, "list_prediction_runs", &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list prediction runs: %w", err)
	}

	return runs, totalCount, nil
}

// HealthCheck performs a repository health check
func (r *energyRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
