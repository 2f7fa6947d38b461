package outbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/dispatch/internal/models"
)

var errSaveFailed = errors.New("outbox save failed")

// MemoryStore is an in-process Store for tests and database-less local runs.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events map[int64]*models.OutboxEvent
	now    func() time.Time

	failSaves int // when > 0, Save fails that many times; test hook
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[int64]*models.OutboxEvent), now: time.Now}
}

func (m *MemoryStore) Save(ctx context.Context, aggregateID, topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves > 0 {
		m.failSaves--
		return errSaveFailed
	}
	m.nextID++
	m.events[m.nextID] = &models.OutboxEvent{
		ID:          m.nextID,
		AggregateID: aggregateID,
		Topic:       topic,
		Payload:     payload,
		Status:      models.OutboxReady,
		CreatedAt:   m.now(),
	}
	return nil
}

func (m *MemoryStore) FetchForPublishing(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ready []*models.OutboxEvent
	for _, e := range m.events {
		if e.Status == models.OutboxReady {
			ready = append(ready, e)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].CreatedAt.Before(ready[j].CreatedAt) })
	if len(ready) > limit {
		ready = ready[:limit]
	}
	out := make([]models.OutboxEvent, 0, len(ready))
	for _, e := range ready {
		e.Status = models.OutboxPublishing
		out = append(out, *e)
	}
	return out, nil
}

func (m *MemoryStore) MarkStatus(ctx context.Context, ids []int64, status models.OutboxStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if e, ok := m.events[id]; ok {
			e.Status = status
		}
	}
	return nil
}

func (m *MemoryStore) ResetStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.events {
		if e.Status == models.OutboxPublishing && e.CreatedAt.Before(cutoff) {
			e.Status = models.OutboxReady
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) PurgeDone(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.events {
		if e.Status == models.OutboxDone && e.CreatedAt.Before(cutoff) {
			delete(m.events, id)
			n++
		}
	}
	return n, nil
}

// Events returns a snapshot of all rows. Test helper.
func (m *MemoryStore) Events() []models.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OutboxEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FailNextSaves makes the next n Save calls fail. Test helper.
func (m *MemoryStore) FailNextSaves(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSaves = n
}

// SetCreatedAt backdates a row. Test helper.
func (m *MemoryStore) SetCreatedAt(id int64, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		e.CreatedAt = t
	}
}
