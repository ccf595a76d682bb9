package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"energy-forecast/internal/models"
	"energy-forecast/pkg/logging"
	"energy-forecast/pkg/metrics"
)

// ProviderName identifies Open-Meteo in errors and logs
const ProviderName = "open-meteo"

// DefaultBaseURL is the public forecast endpoint
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// maxBodyBytes bounds a monthly hourly payload with generous headroom
const maxBodyBytes = 8 << 20

// OpenMeteoConfig configures the HTTP client, throttling and circuit breaker
type OpenMeteoConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Timezone string

	RateLimitRPS   float64
	RateLimitBurst int

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// DefaultOpenMeteoConfig returns the production settings
func DefaultOpenMeteoConfig() OpenMeteoConfig {
	return OpenMeteoConfig{
		BaseURL:            DefaultBaseURL,
		Timeout:            20 * time.Second,
		Timezone:           "auto",
		RateLimitRPS:       10,
		RateLimitBurst:     10,
		BreakerMaxRequests: 5,
		BreakerInterval:    time.Minute,
		BreakerTimeout:     30 * time.Second,
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

// OpenMeteoClient fetches hourly forecasts. A call makes at most one HTTP
// request; the breaker only short-circuits while the provider is failing.
type OpenMeteoClient struct {
	cfg     OpenMeteoConfig
	client  *http.Client
	limiter *rate.Limiter
	circuit *gobreaker.CircuitBreaker
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewOpenMeteoClient creates a client. A nil httpClient gets one with cfg.Timeout.
func NewOpenMeteoClient(cfg OpenMeteoConfig, httpClient *http.Client, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *OpenMeteoClient {
	def := DefaultOpenMeteoConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	c := &OpenMeteoClient{
		cfg:     cfg,
		client:  httpClient,
		limiter: limiter,
		logger:  logger,
		metrics: metricsCollector,
	}

	c.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        ProviderName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "[CIRCUIT_STATE] Weather provider breaker changed state", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return c
}

// RequestURL builds the forecast URL for point and days
func (c *OpenMeteoClient) RequestURL(point models.GeoPoint, days int) string {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(point.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(point.Longitude, 'f', -1, 64))
	values.Set("hourly", HourlyFields)
	values.Set("timezone", c.cfg.Timezone)
	values.Set("forecast_days", strconv.Itoa(days))
	return c.cfg.BaseURL + "?" + values.Encode()
}

// FetchHourly requests the hourly forecast. Transport failures, non-200
// answers and an open breaker are UpstreamUnavailableError; a 200 answer
// without usable hourly data is BadUpstreamResponseError.
func (c *OpenMeteoClient) FetchHourly(ctx context.Context, point models.GeoPoint, days int) (*models.HourlyWeatherSeries, error) {
	timer := c.metrics.NewTimer(c.metrics.WeatherFetchDuration)
	defer timer.ObserveDuration()

	series, err := c.fetch(ctx, point, days)
	if err != nil {
		c.metrics.RecordWeatherError(models.CategoryOf(err))
		c.logger.Error(ctx, "[WEATHER_FETCH_ERROR] Failed to fetch hourly forecast", logging.Fields{
			"latitude":      point.Latitude,
			"longitude":     point.Longitude,
			"forecast_days": days,
		}, err)
		return nil, err
	}

	c.logger.Debug(ctx, "[WEATHER_FETCHED] Hourly forecast received", logging.Fields{
		"latitude":      point.Latitude,
		"longitude":     point.Longitude,
		"forecast_days": days,
		"hours":         series.Len(),
	})
	return series, nil
}

func (c *OpenMeteoClient) fetch(ctx context.Context, point models.GeoPoint, days int) (*models.HourlyWeatherSeries, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &models.UpstreamUnavailableError{
				Provider: ProviderName,
				Err:      fmt.Errorf("rate limit wait canceled: %w", err),
			}
		}
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(point, days), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, &statusError{code: resp.StatusCode}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		unavailable := &models.UpstreamUnavailableError{Provider: ProviderName, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			unavailable.StatusCode = se.code
		}
		return nil, unavailable
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return ParseForecastBody(ProviderName, body)
}

// BreakerState reports the circuit breaker state
func (c *OpenMeteoClient) BreakerState() gobreaker.State {
	return c.circuit.State()
}
