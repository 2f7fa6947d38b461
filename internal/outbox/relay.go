package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/observability"
)

// Relay drains READY events to the message bus. Multiple relay instances may
// run concurrently: the skip-locked fetch guarantees no row is double-picked,
// and the rescue sweep requeues rows orphaned by a crash between pick and ack.
type Relay struct {
	store      Store
	publisher  Publisher
	logger     *slog.Logger
	batchSize  int
	stuckAfter time.Duration
	retention  time.Duration
}

func NewRelay(store Store, publisher Publisher, logger *slog.Logger, batchSize int, stuckAfter, retention time.Duration) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if stuckAfter <= 0 {
		stuckAfter = 10 * time.Minute
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	return &Relay{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		batchSize:  batchSize,
		stuckAfter: stuckAfter,
		retention:  retention,
	}
}

// PublishBatch runs one relay cycle. A failed publish requeues only its own
// row; the cycle itself never fails on publish errors.
func (r *Relay) PublishBatch(ctx context.Context) error {
	events, err := r.store.FetchForPublishing(ctx, r.batchSize)
	if err != nil {
		return err
	}
	for _, e := range events {
		r.send(ctx, e)
	}
	return nil
}

func (r *Relay) send(ctx context.Context, e models.OutboxEvent) {
	if err := r.publisher.Publish(ctx, e.Topic, e.AggregateID, e.Payload); err != nil {
		observability.OutboxPublishFailuresTotal.Inc()
		r.logger.Error("outbox publish failed, requeued", "event_id", e.ID, "topic", e.Topic, "error", err)
		if err := r.store.MarkStatus(ctx, []int64{e.ID}, models.OutboxReady); err != nil {
			// Left in PUBLISHING; the rescue sweep will requeue it.
			r.logger.Error("outbox requeue failed", "event_id", e.ID, "error", err)
		}
		return
	}
	observability.OutboxPublishedTotal.Inc()
	if err := r.store.MarkStatus(ctx, []int64{e.ID}, models.OutboxDone); err != nil {
		r.logger.Error("outbox done mark failed", "event_id", e.ID, "error", err)
	}
}

// Rescue requeues events stuck in PUBLISHING past the timeout, indicating a
// relay instance died between pick and ack.
func (r *Relay) Rescue(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.stuckAfter)
	n, err := r.store.ResetStuck(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		observability.OutboxRescuedTotal.Add(float64(n))
		r.logger.Warn("rescued stuck outbox events", "count", n)
	}
	return nil
}

// Cleanup purges DONE events older than the retention window.
func (r *Relay) Cleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.retention)
	n, err := r.store.PurgeDone(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		observability.OutboxPurgedTotal.Add(float64(n))
		r.logger.Info("purged old outbox events", "count", n)
	}
	return nil
}
