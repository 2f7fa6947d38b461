package outbox

import (
	"context"
	"time"

	"github.com/example/dispatch/internal/models"
)

// Store is the durable outbox table. Save gives the claim its atomic durable
// fact; the fetch/mark operations are the relay's concurrency-safe state
// transitions.
type Store interface {
	// Save inserts one READY event.
	Save(ctx context.Context, aggregateID, topic string, payload []byte) error

	// FetchForPublishing picks up to limit READY events oldest-first, flips
	// them to PUBLISHING in the same transaction, and returns them. Rows
	// locked by a concurrent relay instance are skipped, never double-picked.
	FetchForPublishing(ctx context.Context, limit int) ([]models.OutboxEvent, error)

	// MarkStatus transitions the given events.
	MarkStatus(ctx context.Context, ids []int64, status models.OutboxStatus) error

	// ResetStuck requeues PUBLISHING events created before cutoff, returning
	// how many were rescued.
	ResetStuck(ctx context.Context, cutoff time.Time) (int64, error)

	// PurgeDone deletes DONE events created before cutoff, returning how many
	// were purged.
	PurgeDone(ctx context.Context, cutoff time.Time) (int64, error)
}
