// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Durations are expressed in milliseconds with an _ms suffix.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Allowed feature vector widths.
const (
	VectorSizeCompact = 16
	VectorSizeFull    = 40
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// CORSOrigins lists allowed browser origins for the API.
	CORSOrigins []string `koanf:"cors_origins"`

	// VectorSize is the feature vector width shared by the extractor and both models.
	VectorSize int `koanf:"vector_size"`
	// IncludeGeoFeature appends a hashed country component to the vector.
	IncludeGeoFeature bool `koanf:"include_geo_feature"`
	// ModelSeed seeds weight initialization when no snapshot is available.
	ModelSeed int64 `koanf:"model_seed"`
	// AnomalyThreshold separates normal from anomalous reconstruction error.
	AnomalyThreshold float64 `koanf:"anomaly_threshold"`
	// Timezone is the IANA location used for hour-of-day features and buckets.
	Timezone string `koanf:"timezone"`

	// SnapshotBackend selects weight persistence: none, file or s3.
	SnapshotBackend  string `koanf:"snapshot_backend"`
	SnapshotDir      string `koanf:"snapshot_dir"`
	SnapshotBucket   string `koanf:"snapshot_bucket"`
	SnapshotKey      string `koanf:"snapshot_key"`
	SnapshotRegion   string `koanf:"snapshot_region"`
	SnapshotEndpoint string `koanf:"snapshot_endpoint"`

	// GeoCacheTTLMS bounds how long resolved locations are reused.
	GeoCacheTTLMS int `koanf:"geo_cache_ttl_ms"`
	// GeoProviderTimeoutMS bounds each provider call.
	GeoProviderTimeoutMS int `koanf:"geo_provider_timeout_ms"`
	// GeoProviders is the ordered provider chain.
	GeoProviders []string `koanf:"geo_providers"`
	GeoJSURL     string   `koanf:"geojs_url"`
	IPWhoisURL   string   `koanf:"ipwhois_url"`
	IPAPIURL     string   `koanf:"ipapi_url"`

	// StoreBackend selects the visitor store: memory, redis or postgres.
	StoreBackend   string `koanf:"store_backend"`
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	PostgresURL    string `koanf:"postgres_url"`
	StoreTimeoutMS int    `koanf:"store_timeout_ms"`
	// HistoryLimit caps how many recent visitors feed pattern analysis.
	HistoryLimit int `koanf:"history_limit"`

	SessionTimeoutMS      int     `koanf:"session_timeout_ms"`
	MinSessionMS          int     `koanf:"min_session_ms"`
	PeakStdMultiplier     float64 `koanf:"peak_std_multiplier"`
	PeakMeanMultiplier    float64 `koanf:"peak_mean_multiplier"`
	SpikeMultiplier       float64 `koanf:"spike_multiplier"`
	HighFrequencyVisits   int     `koanf:"high_frequency_visits"`
	HighFrequencyWindowMS int     `koanf:"high_frequency_window_ms"`
	HighFrequencyScore    float64 `koanf:"high_frequency_score"`

	// PublisherBackend selects where scored visits go: none or kafka.
	PublisherBackend string   `koanf:"publisher_backend"`
	KafkaBrokers     []string `koanf:"kafka_brokers"`
	KafkaTopic       string   `koanf:"kafka_topic"`

	// EventQueueSize bounds the scored visit outbox.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of publishing workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds remembered visit event ids.
	DedupeSize  int `koanf:"dedupe_size"`
	DedupeTTLMS int `koanf:"dedupe_ttl_ms"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",

		VectorSize:       VectorSizeFull,
		ModelSeed:        1337,
		AnomalyThreshold: 0.1,
		Timezone:         "UTC",

		SnapshotBackend: "none",
		SnapshotDir:     "./data/models",
		SnapshotKey:     "footprint/models",
		SnapshotRegion:  "us-east-1",

		GeoCacheTTLMS:        30 * 60 * 1000,
		GeoProviderTimeoutMS: 5000,
		GeoProviders:         []string{"geojs", "ipwhois", "ipapi"},
		GeoJSURL:             "https://get.geojs.io",
		IPWhoisURL:           "https://ipwho.is",
		IPAPIURL:             "https://ipapi.co",

		StoreBackend:   "memory",
		RedisAddr:      "localhost:6379",
		StoreTimeoutMS: 3000,
		HistoryLimit:   1000,

		SessionTimeoutMS:      30 * 60 * 1000,
		MinSessionMS:          5 * 60 * 1000,
		PeakStdMultiplier:     1.0,
		PeakMeanMultiplier:    1.5,
		SpikeMultiplier:       3.0,
		HighFrequencyVisits:   100,
		HighFrequencyWindowMS: 24 * 60 * 60 * 1000,
		HighFrequencyScore:    0.8,

		PublisherBackend: "none",
		KafkaTopic:       "visits.scored",

		EventQueueSize: 10_000,
		WorkerCount:    runtime.NumCPU(),

		DedupeSize:  100_000,
		DedupeTTLMS: 10 * 60 * 1000,
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.VectorSize != VectorSizeCompact && c.VectorSize != VectorSizeFull:
		return fmt.Errorf("%w: vector_size must be %d or %d, got %d",
			ErrInvalidConfig, VectorSizeCompact, VectorSizeFull, c.VectorSize)
	case c.AnomalyThreshold <= 0:
		return fmt.Errorf("%w: anomaly_threshold must be positive", ErrInvalidConfig)
	case c.GeoCacheTTLMS <= 0 || c.GeoProviderTimeoutMS <= 0 || c.StoreTimeoutMS <= 0:
		return fmt.Errorf("%w: geo and store timeouts must be positive", ErrInvalidConfig)
	case c.SessionTimeoutMS <= 0 || c.MinSessionMS < 0:
		return fmt.Errorf("%w: session durations out of range", ErrInvalidConfig)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	if err := oneOf("snapshot_backend", c.SnapshotBackend, "none", "file", "s3"); err != nil {
		return err
	}
	if err := oneOf("store_backend", c.StoreBackend, "memory", "redis", "postgres"); err != nil {
		return err
	}
	if err := oneOf("publisher_backend", c.PublisherBackend, "none", "kafka"); err != nil {
		return err
	}
	if c.PublisherBackend == "kafka" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("%w: %w: kafka_brokers for kafka publisher", ErrInvalidConfig, ErrMissingSetting)
	}
	if c.StoreBackend == "postgres" && c.PostgresURL == "" {
		return fmt.Errorf("%w: %w: postgres_url for postgres store", ErrInvalidConfig, ErrMissingSetting)
	}
	if c.SnapshotBackend == "s3" && c.SnapshotBucket == "" {
		return fmt.Errorf("%w: %w: snapshot_bucket for s3 snapshots", ErrInvalidConfig, ErrMissingSetting)
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Millis converts a millisecond setting into a time.Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func oneOf(key, val string, allowed ...string) error {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %w: %s must be one of %v, got %q", ErrInvalidConfig, ErrUnknownBackend, key, allowed, val)
}
