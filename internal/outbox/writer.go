package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/dispatch/internal/models"
)

// Writer records match facts durably in the claim's unit of work. Either the
// claim and its READY row both exist, or neither does.
type Writer struct {
	store Store
	topic string
}

func NewWriter(store Store, topic string) *Writer {
	return &Writer{store: store, topic: topic}
}

// Record persists the fact as a READY outbox event keyed by trip id.
func (w *Writer) Record(ctx context.Context, fact models.MatchedTripFact) error {
	payload, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("outbox record marshal: %w", err)
	}
	return w.store.Save(ctx, fact.TripID, w.topic, payload)
}
