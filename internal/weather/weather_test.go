package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-forecast/internal/models"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

const sampleBody = `{
	"latitude": 12.97, "longitude": 77.59, "timezone": "Asia/Kolkata",
	"hourly": {
		"time": ["2024-06-21T00:00", "2024-06-21T01:00"],
		"direct_radiation": [0, 12.5],
		"diffuse_radiation": [0, 3],
		"shortwave_radiation": [0, 15.5],
		"temperature_2m": [22.1, null],
		"wind_speed_10m": [5.4, 6.1]
	}
}`

var bengaluru = models.GeoPoint{Latitude: 12.9716, Longitude: 77.5946}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenMeteoClient, *metrics.Collector) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultOpenMeteoConfig()
	cfg.BaseURL = srv.URL
	cfg.RateLimitRPS = 0
	cfg.BreakerTimeout = time.Hour

	m := metrics.NewCollector("test", prometheus.NewRegistry())
	return NewOpenMeteoClient(cfg, srv.Client(), logging.NewNopLogger(), m), m
}

func TestOpenMeteoClient_RequestParameters(t *testing.T) {
	var got map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"latitude":      q.Get("latitude"),
			"longitude":     q.Get("longitude"),
			"hourly":        q.Get("hourly"),
			"timezone":      q.Get("timezone"),
			"forecast_days": q.Get("forecast_days"),
		}
		w.Write([]byte(sampleBody))
	})

	series, err := client.FetchHourly(context.Background(), bengaluru, 7)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"latitude":      "12.9716",
		"longitude":     "77.5946",
		"hourly":        HourlyFields,
		"timezone":      "auto",
		"forecast_days": "7",
	}, got)

	require.Equal(t, 2, series.Len())
	assert.Equal(t, 12.5, *series.DirectRadiation[1])
	assert.Nil(t, series.Temperature[1])
}

func TestOpenMeteoClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		category   string
	}{
		{"server error", http.StatusInternalServerError, `{}`, 500, models.CategoryUpstreamUnavailable},
		{"bad request", http.StatusBadRequest, `{"error": true}`, 400, models.CategoryUpstreamUnavailable},
		{"missing hourly", http.StatusOK, `{"latitude": 1}`, 0, models.CategoryBadUpstream},
		{"null hourly", http.StatusOK, `{"hourly": null}`, 0, models.CategoryBadUpstream},
		{"not json", http.StatusOK, `<html>`, 0, models.CategoryBadUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.FetchHourly(context.Background(), bengaluru, 1)
			require.Error(t, err)
			assert.Equal(t, tt.category, models.CategoryOf(err))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.WeatherFetchErrors.WithLabelValues(tt.category)))

			var unavailable *models.UpstreamUnavailableError
			if errors.As(err, &unavailable) {
				assert.Equal(t, tt.wantStatus, unavailable.StatusCode)
			}
		})
	}
}

func TestOpenMeteoClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultOpenMeteoConfig()
	cfg.BaseURL = url
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	client := NewOpenMeteoClient(cfg, nil, logging.NewNopLogger(), m)

	_, err := client.FetchHourly(context.Background(), bengaluru, 1)
	var unavailable *models.UpstreamUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.True(t, unavailable.IsTransient())
}

func TestOpenMeteoClient_BreakerOpensWithoutRetrying(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	// The default breaker trips after more than five consecutive failures.
	for i := 0; i < 6; i++ {
		_, err := client.FetchHourly(context.Background(), bengaluru, 1)
		require.Error(t, err)
	}
	assert.Equal(t, int32(6), atomic.LoadInt32(&hits), "one request per call")
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err := client.FetchHourly(context.Background(), bengaluru, 1)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, models.CategoryUpstreamUnavailable, models.CategoryOf(err))
	assert.Equal(t, int32(6), atomic.LoadInt32(&hits))
}

func TestOpenMeteoClient_RateLimiterHonorsContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleBody))
	})
	cfg := client.cfg
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	limited := NewOpenMeteoClient(cfg, client.client, logging.NewNopLogger(), client.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limited.FetchHourly(ctx, bengaluru, 1)
	assert.Equal(t, models.CategoryUpstreamUnavailable, models.CategoryOf(err))
}

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) FetchHourly(context.Context, models.GeoPoint, int) (*models.HourlyWeatherSeries, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return ParseForecastBody("stub", []byte(sampleBody))
}

func TestCachedSource(t *testing.T) {
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	src := &countingSource{}
	cached := NewCachedSource(src, NewMemoryCache(), time.Minute, logging.NewNopLogger(), m)

	first, err := cached.FetchHourly(context.Background(), bengaluru, 7)
	require.NoError(t, err)
	second, err := cached.FetchHourly(context.Background(), bengaluru, 7)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WeatherCacheResults.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WeatherCacheResults.WithLabelValues("miss")))

	_, err = cached.FetchHourly(context.Background(), bengaluru, 16)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "days is part of the key")
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	src := &countingSource{err: &models.UpstreamUnavailableError{Provider: "stub", StatusCode: 503}}
	cached := NewCachedSource(src, NewMemoryCache(), time.Minute, logging.NewNopLogger(),
		metrics.NewCollector("test", prometheus.NewRegistry()))

	for i := 0; i < 2; i++ {
		_, err := cached.FetchHourly(context.Background(), bengaluru, 1)
		require.Error(t, err)
	}
	assert.Equal(t, 2, src.calls)
}

func TestCachedSource_ZeroTTLDisables(t *testing.T) {
	src := &countingSource{}
	cached := NewCachedSource(src, NewMemoryCache(), 0, logging.NewNopLogger(),
		metrics.NewCollector("test", prometheus.NewRegistry()))

	for i := 0; i < 3; i++ {
		_, err := cached.FetchHourly(context.Background(), bengaluru, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	c := NewRedisCache(client)
	key := "test:" + t.Name()

	require.NoError(t, c.Set(ctx, key, []byte("v"), time.Minute))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, client.Del(ctx, key).Err())
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "forecast.json")
	require.NoError(t, os.WriteFile(good, []byte(sampleBody), 0o644))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"daily": {}}`), 0o644))

	series, err := FileSource{Path: good}.FetchHourly(context.Background(), bengaluru, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, series.Len())

	_, err = FileSource{Path: bad}.FetchHourly(context.Background(), bengaluru, 1)
	assert.Equal(t, models.CategoryBadUpstream, models.CategoryOf(err))

	_, err = FileSource{Path: filepath.Join(dir, "missing.json")}.FetchHourly(context.Background(), bengaluru, 1)
	assert.Equal(t, models.CategoryUpstreamUnavailable, models.CategoryOf(err))
}
