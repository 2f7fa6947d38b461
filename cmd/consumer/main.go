// Command consumer subscribes to the trip lifecycle topic and frees drivers
// whose trips completed or were canceled.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/dispatch/internal/availability"
	"github.com/example/dispatch/internal/config"
	"github.com/example/dispatch/internal/logging"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/reservation"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_trip_events_consumed_total",
		Help: "Total trip lifecycle events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_trip_events_invalid_total",
		Help: "Total malformed or unknown trip events",
	})
	driversReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_drivers_released_total",
		Help: "Total drivers released back to available",
	})
	releaseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_release_errors_total",
		Help: "Total failed release writes",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, driversReleased, releaseErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	store := availability.NewRedisStore(redisAddr, cfg.RedisPassword)
	defer store.Close()
	coordinator := reservation.NewCoordinator(store, 0, logger)

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.TripTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer r.Close()

	logger.Info("consumer listening", "topic", cfg.TripTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Error("kafka read error, backing off", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		eventsConsumed.Inc()

		var event models.TripEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			eventsInvalid.Inc()
			logger.Warn("invalid trip event", "error", err)
			continue
		}
		handleTripEvent(ctx, coordinator, logger, event)
	}
}

func handleTripEvent(ctx context.Context, coordinator *reservation.Coordinator, logger *slog.Logger, event models.TripEvent) {
	switch event.EventType {
	case models.TripCompleted, models.TripCanceled:
		if event.DriverID == "" {
			eventsInvalid.Inc()
			logger.Warn("trip event missing driver id", "event_type", event.EventType)
			return
		}
		if err := coordinator.Release(ctx, event.DriverID); err != nil {
			releaseErrors.Inc()
			logger.Error("driver release failed", "driver_id", event.DriverID, "error", err)
			return
		}
		driversReleased.Inc()
		logger.Info("driver released", "driver_id", event.DriverID, "event_type", event.EventType)
	default:
		eventsInvalid.Inc()
		logger.Warn("unknown trip event type", "event_type", event.EventType)
	}
}
