package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Weather  WeatherConfig
	Redis    RedisConfig
	Models   ModelsConfig
	Regions  RegionsConfig
	Forecast ForecastConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// DatabaseConfig holds PostgreSQL settings. The database is optional; when
// disabled, prediction history is not recorded.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// WeatherConfig holds Open-Meteo client settings
type WeatherConfig struct {
	BaseURL            string
	Timeout            time.Duration
	Timezone           string
	RateLimitRPS       float64
	RateLimitBurst     int
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	CacheTTL           time.Duration
}

// RedisConfig holds the weather cache connection
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Model artifact sources
const (
	ModelSourceDir = "dir"
	ModelSourceS3  = "s3"
)

// ModelsConfig selects where model artifacts are read from
type ModelsConfig struct {
	Source string
	Dirs   []string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Prefix    string
	S3UseSSL    bool
}

// Region registry sources
const (
	RegionSourceFile     = "file"
	RegionSourcePostgres = "postgres"
)

// RegionsConfig selects where the city mapping is read from
type RegionsConfig struct {
	Source string
	File   string
}

// ForecastConfig holds the aggregation cutoffs in W/m²
type ForecastConfig struct {
	DaylightCutoff float64
	ClearSkyCutoff float64
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory (or at ENV_FILE) is loaded first when present; variables
// already set in the environment take precedence.
func LoadConfig() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	var errs []error
	durationVar := func(key string, def time.Duration) time.Duration {
		d, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	intVar := func(key string, def int) int {
		n, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	floatVar := func(key string, def float64) float64 {
		f, err := getEnvFloat(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return f
	}
	boolVar := func(key string, def bool) bool {
		b, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return b
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         intVar("SERVER_PORT", 8000),
			ReadTimeout:  durationVar("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: durationVar("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  durationVar("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		Database: DatabaseConfig{
			Enabled:         boolVar("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            intVar("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "energy_forecast"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    intVar("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    intVar("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durationVar("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: durationVar("DB_CONN_MAX_IDLE_TIME", time.Minute),
		},
		Weather: WeatherConfig{
			BaseURL:            getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
			Timeout:            durationVar("WEATHER_TIMEOUT", 20*time.Second),
			Timezone:           getEnv("WEATHER_TIMEZONE", "auto"),
			RateLimitRPS:       floatVar("WEATHER_RATE_LIMIT_RPS", 10),
			RateLimitBurst:     intVar("WEATHER_RATE_LIMIT_BURST", 10),
			BreakerMaxRequests: uint32(intVar("WEATHER_BREAKER_MAX_REQUESTS", 5)),
			BreakerInterval:    durationVar("WEATHER_BREAKER_INTERVAL", time.Minute),
			BreakerTimeout:     durationVar("WEATHER_BREAKER_TIMEOUT", 30*time.Second),
			CacheTTL:           durationVar("WEATHER_CACHE_TTL", 0),
		},
		Redis: RedisConfig{
			Enabled:  boolVar("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Models: ModelsConfig{
			Source:      strings.ToLower(getEnv("MODELS_SOURCE", ModelSourceDir)),
			Dirs:        splitList(getEnv("MODELS_DIRS", "../models,./models")),
			S3Endpoint:  getEnv("MODELS_S3_ENDPOINT", "localhost:9000"),
			S3AccessKey: getEnv("MODELS_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("MODELS_S3_SECRET_KEY", ""),
			S3Bucket:    getEnv("MODELS_S3_BUCKET", ""),
			S3Prefix:    getEnv("MODELS_S3_PREFIX", "models"),
			S3UseSSL:    boolVar("MODELS_S3_USE_SSL", false),
		},
		Regions: RegionsConfig{
			Source: strings.ToLower(getEnv("REGIONS_SOURCE", RegionSourceFile)),
			File:   getEnv("REGIONS_FILE", "city_mapping.json"),
		},
		Forecast: ForecastConfig{
			DaylightCutoff: floatVar("FORECAST_DAYLIGHT_CUTOFF", 10),
			ClearSkyCutoff: floatVar("FORECAST_CLEAR_SKY_CUTOFF", 500),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate rejects impossible or inconsistent settings
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	if c.Weather.Timeout <= 0 {
		return fmt.Errorf("weather timeout must be positive")
	}
	if c.Weather.RateLimitRPS < 0 {
		return fmt.Errorf("weather rate limit must not be negative")
	}
	if c.Weather.CacheTTL < 0 {
		return fmt.Errorf("weather cache TTL must not be negative")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("database host and name are required when the database is enabled")
		}
		if c.Database.MaxOpenConns < 1 {
			return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
		}
	}

	switch c.Models.Source {
	case ModelSourceDir:
		if len(c.Models.Dirs) == 0 {
			return fmt.Errorf("MODELS_DIRS must name at least one directory")
		}
	case ModelSourceS3:
		if c.Models.S3Bucket == "" {
			return fmt.Errorf("MODELS_S3_BUCKET is required when MODELS_SOURCE=s3")
		}
	default:
		return fmt.Errorf("unknown MODELS_SOURCE %q", c.Models.Source)
	}

	switch c.Regions.Source {
	case RegionSourceFile:
		if c.Regions.File == "" {
			return fmt.Errorf("REGIONS_FILE is required when REGIONS_SOURCE=file")
		}
	case RegionSourcePostgres:
		if !c.Database.Enabled {
			return fmt.Errorf("REGIONS_SOURCE=postgres requires DB_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown REGIONS_SOURCE %q", c.Regions.Source)
	}

	if c.Forecast.DaylightCutoff < 0 || c.Forecast.ClearSkyCutoff < 0 {
		return fmt.Errorf("forecast cutoffs must not be negative")
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
