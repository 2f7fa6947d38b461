package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the matching API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	MatchTopic   string

	PGDSN string

	LocationServiceURL string
	DriverServiceURL   string
	TripServiceURL     string

	MatcherTiersKm []int
	MatcherPolicy  string // "score" or "nearest"
	LockTTL        time.Duration

	RelayInterval   time.Duration
	RelayBatchSize  int
	RescueInterval  time.Duration
	StuckTimeout    time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
	JobLockTTL      time.Duration

	ReconcileInterval time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		MatchTopic: "matching_events",

		MatcherTiersKm: []int{1, 2, 3},
		MatcherPolicy:  "score",
		LockTTL:        10 * time.Second,

		RelayInterval:   500 * time.Millisecond,
		RelayBatchSize:  100,
		RescueInterval:  time.Minute,
		StuckTimeout:    10 * time.Minute,
		CleanupInterval: 24 * time.Hour,
		Retention:       72 * time.Hour,
		JobLockTTL:      50 * time.Second,

		ReconcileInterval: time.Minute,

		LogLevel: "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.MatchTopic, "MATCH_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.LocationServiceURL, "LOCATION_SERVICE_URL")
	setStringFromEnv(&cfg.DriverServiceURL, "DRIVER_SERVICE_URL")
	setStringFromEnv(&cfg.TripServiceURL, "TRIP_SERVICE_URL")

	setIntsFromEnv(&cfg.MatcherTiersKm, "MATCHER_TIERS_KM", &errs)
	setStringFromEnv(&cfg.MatcherPolicy, "MATCHER_POLICY")
	setDurationFromEnv(&cfg.LockTTL, "RESERVATION_LOCK_TTL", &errs)

	setDurationFromEnv(&cfg.RelayInterval, "OUTBOX_RELAY_INTERVAL", &errs)
	setIntFromEnv(&cfg.RelayBatchSize, "OUTBOX_RELAY_BATCH_SIZE", &errs)
	setDurationFromEnv(&cfg.RescueInterval, "OUTBOX_RESCUE_INTERVAL", &errs)
	setDurationFromEnv(&cfg.StuckTimeout, "OUTBOX_STUCK_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.CleanupInterval, "OUTBOX_CLEANUP_INTERVAL", &errs)
	setDurationFromEnv(&cfg.Retention, "OUTBOX_RETENTION", &errs)
	setDurationFromEnv(&cfg.JobLockTTL, "JOB_LOCK_TTL", &errs)

	setDurationFromEnv(&cfg.ReconcileInterval, "RECONCILE_INTERVAL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MatcherPolicy != "score" && cfg.MatcherPolicy != "nearest" {
		errs = append(errs, fmt.Errorf("MATCHER_POLICY must be score or nearest"))
	}
	if len(cfg.MatcherTiersKm) == 0 {
		errs = append(errs, fmt.Errorf("MATCHER_TIERS_KM must name at least one radius"))
	}
	if cfg.RelayBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_RELAY_BATCH_SIZE must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig drives the trip-events consumer binary.
type ConsumerConfig struct {
	KafkaBrokers []string
	TripTopic    string
	KafkaGroup   string

	RedisAddr     string
	RedisPassword string

	MetricsAddr string
	LogLevel    string
}

func defaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		KafkaBrokers: []string{"localhost:9092"},
		TripTopic:    "trip_events",
		KafkaGroup:   "matching-service-group",
		MetricsAddr:  ":2112",
		LogLevel:     "info",
	}
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := defaultConsumerConfig()

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.TripTopic, "TRIP_EVENTS_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	return cfg, nil
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setIntsFromEnv(target *[]int, key string, errs *[]error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []int
	for _, part := range splitAndTrim(v) {
		i, err := strconv.Atoi(part)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		out = append(out, i)
	}
	*target = out
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
