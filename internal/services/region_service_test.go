package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-forecast/internal/models"
	"energy-forecast/internal/repository"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

type fakeRepo struct {
	repository.EnergyRepository
	batches   [][]string
	regions   []models.Region
	upsertErr error
	runs      []*models.PredictionRun
}

func (f *fakeRepo) UpsertRegionsBatch(_ context.Context, regions []*models.Region) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	var cities []string
	for _, r := range regions {
		cities = append(cities, r.City)
	}
	f.batches = append(f.batches, cities)
	return nil
}

func (f *fakeRepo) ListRegions(context.Context) ([]models.Region, error) {
	return f.regions, nil
}

func (f *fakeRepo) GetPredictionRun(_ context.Context, id string) (*models.PredictionRun, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "prediction run", ID: id}
}

func (f *fakeRepo) ListPredictionRuns(_ context.Context, filter repository.PredictionRunFilter) ([]*models.PredictionRun, int, error) {
	return f.runs, len(f.runs), nil
}

func writeMapping(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "city_mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const threeCities = `{
	"Mysuru":    {"lat": 12.2958, "lon": 76.6394, "model": "south"},
	"Belagavi":  {"lat": 15.8497, "lon": 74.4977, "model": "north"},
	"Bengaluru": {"lat": 12.9716, "lon": 77.5946, "model": "south"}
}`

func TestRegionService_ImportFileInBatches(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewRegionService(repo, logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))

	res, err := svc.ImportFile(context.Background(), writeMapping(t, threeCities), 2)
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRegions)
	assert.Equal(t, 3, res.UpsertedRegions)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, []string{"north", "south"}, res.Models)
	assert.Equal(t, [][]string{{"Belagavi", "Bengaluru"}, {"Mysuru"}}, repo.batches)
}

func TestRegionService_ImportFileRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `[`},
		{"missing coordinates", `{"A": {"model": "m"}}`},
		{"latitude out of range", `{"A": {"lat": 91, "lon": 0, "model": "m"}}`},
		{"empty model", `{"A": {"lat": 1, "lon": 0, "model": ""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			svc := NewRegionService(repo, logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))

			_, err := svc.ImportFile(context.Background(), writeMapping(t, tt.body), 10)
			assert.Error(t, err)
			assert.Empty(t, repo.batches, "nothing is written for invalid files")
		})
	}
}

func TestRegionService_ImportFileUpsertError(t *testing.T) {
	repo := &fakeRepo{upsertErr: errors.New("connection reset")}
	svc := NewRegionService(repo, logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))

	_, err := svc.ImportFile(context.Background(), writeMapping(t, threeCities), 10)
	assert.ErrorContains(t, err, "connection reset")
}

func TestRegionService_LoadRegistry(t *testing.T) {
	repo := &fakeRepo{regions: []models.Region{
		{City: "Bengaluru", Latitude: 12.9716, Longitude: 77.5946, Model: "south"},
		{City: "Belagavi", Latitude: 15.8497, Longitude: 74.4977, Model: "north"},
	}}
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	svc := NewRegionService(repo, logging.NewNopLogger(), m)

	reg, err := svc.LoadRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Belagavi", "Bengaluru"}, reg.Cities())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RegionsLoaded))

	repo.regions = append(repo.regions, models.Region{City: "Bengaluru", Model: "x"})
	_, err = svc.LoadRegistry(context.Background())
	assert.Error(t, err)
}

func TestHistoryService_ListRuns(t *testing.T) {
	repo := &fakeRepo{runs: []*models.PredictionRun{{ID: "a"}, {ID: "b"}}}
	svc := NewHistoryService(repo, logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))

	runs, total, err := svc.ListRuns(context.Background(), repository.PredictionRunFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, runs, 2)
}

func TestHistoryService_GetRun(t *testing.T) {
	const id = "0b7e3f52-9c1a-4d8e-b6f0-2a4c6e8d0f13"
	repo := &fakeRepo{runs: []*models.PredictionRun{{ID: id, City: "Mysuru"}, {ID: "not-a-uuid"}}}
	svc := NewHistoryService(repo, logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))

	run, err := svc.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Mysuru", run.City)

	// malformed ids never reach the repository
	_, err = svc.GetRun(context.Background(), "not-a-uuid")
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, models.CategoryNotFound, models.CategoryOf(err))
}
