package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers      []string
	KafkaSourceTopic  string
	KafkaWeatherTopic string
	KafkaAlertTopic   string
	KafkaGroupID      string
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Ingestion and validation.
	DedupPrecision      int
	ImplausibleCeiling  float64
	AreaOfInterest      domain.AreaOfInterest
	AODFactor           float64
	StationDelay        time.Duration
	ProviderParallelism int

	// Spatial estimation.
	IDWNeighbors   int
	IDWPower       float64
	IDWEpsilonKm   float64
	IDWMinPoints   int
	HotspotK       int
	HotspotMaxIter int

	// Forecasting.
	ForecastRadiusKm      float64
	ForecastRefitFraction float64
	ForecastRidge         float64
	ForecastUTCOffset     time.Duration

	// Dispersion rules.
	StagnationWindKmh  float64
	WashoutPrecipMM    float64
	ColocationRadiusKm float64

	// Persistence; empty disables the feature.
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Mapbox reverse geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	area, aoiErr := domain.ParseAreaOfInterest(sharedcfg.EnvOrDefault("AREA_OF_INTEREST", "6.5,68,37.5,97.5"))
	if aoiErr != nil {
		p.err = fmt.Errorf("invalid AREA_OF_INTEREST: %w", aoiErr)
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-air-quality"),
		KafkaWeatherTopic:  sharedcfg.EnvOrDefault("KAFKA_WEATHER_TOPIC", "weather-conditions"),
		KafkaAlertTopic:    sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "air-quality-warnings"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "air-quality-fusion"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DedupPrecision:      p.intRange("DEDUP_PRECISION", 4, 1, 8),
		ImplausibleCeiling:  p.positiveFloat("IMPLAUSIBLE_CEILING", 1000),
		AreaOfInterest:      area,
		AODFactor:           p.positiveFloat("AOD_PM25_FACTOR", 120),
		StationDelay:        p.duration("STATION_DELAY", 500*time.Millisecond, true),
		ProviderParallelism: p.intRange("PROVIDER_PARALLELISM", 4, 1, 64),

		IDWNeighbors:   p.intRange("IDW_NEIGHBORS", 5, 1, 1000),
		IDWPower:       p.positiveFloat("IDW_POWER", 2),
		IDWEpsilonKm:   p.positiveFloat("IDW_EPSILON_KM", 0.01),
		IDWMinPoints:   p.intRange("IDW_MIN_POINTS", 1, 1, 1000),
		HotspotK:       p.intRange("HOTSPOT_DEFAULT_CLUSTERS", 15, 1, 1000),
		HotspotMaxIter: p.intRange("HOTSPOT_MAX_ITERATIONS", 100, 1, 100000),

		ForecastRadiusKm:      p.positiveFloat("FORECAST_RADIUS_KM", 50),
		ForecastRefitFraction: p.positiveFloat("FORECAST_REFIT_FRACTION", 0.1),
		ForecastRidge:         p.positiveFloat("FORECAST_RIDGE", 1),
		ForecastUTCOffset:     p.utcOffset("FORECAST_UTC_OFFSET", 5*time.Hour+30*time.Minute),

		StagnationWindKmh:  p.positiveFloat("STAGNATION_WIND_KMH", 5),
		WashoutPrecipMM:    p.positiveFloat("WASHOUT_PRECIP_MM", 0.05),
		ColocationRadiusKm: p.positiveFloat("COLOCATION_RADIUS_KM", 10),

		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       p.intRange("REDIS_DB", 0, 0, 15),

		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:   p.duration("MAPBOX_TIMEOUT", 5*time.Second, false),
		MapboxCacheSize: p.intRange("MAPBOX_CACHE_SIZE", 1000, 1, 1_000_000),
	}
	if p.err != nil {
		return nil, p.err
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// parser reads typed variables and keeps the first error, so Load can
// build the Config in one literal and check once.
type parser struct {
	err error
}

func (p *parser) fail(key, want string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: must be %s", key, want)
	}
}

func (p *parser) intRange(key string, def, lo, hi int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		p.fail(key, fmt.Sprintf("%d-%d", lo, hi))
		return def
	}
	return n
}

func (p *parser) positiveFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		p.fail(key, "a positive number")
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration, allowZero bool) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		p.fail(key, "a positive duration")
		return def
	}
	return d
}

func (p *parser) utcOffset(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < -14*time.Hour || d > 14*time.Hour {
		p.fail(key, "a duration between -14h and 14h")
		return def
	}
	return d
}
