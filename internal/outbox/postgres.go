package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/dispatch/internal/models"
)

// PostgresStore implements Store on the matching_outbox table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing handle (shared with migrations).
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Save(ctx context.Context, aggregateID, topic string, payload []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO matching_outbox(aggregate_id, topic, payload, status, created_at) VALUES($1,$2,$3,$4,$5)`,
		aggregateID, topic, payload, models.OutboxReady, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("outbox save: %w", err)
	}
	return nil
}

func (p *PostgresStore) FetchForPublishing(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("outbox fetch begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, aggregate_id, topic, payload, status, created_at
		 FROM matching_outbox
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		models.OutboxReady, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox fetch select: %w", err)
	}
	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.Topic, &e.Payload, &e.Status, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("outbox fetch scan: %w", err)
		}
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox fetch rows: %w", err)
	}
	if len(events) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE matching_outbox SET status = $1 WHERE id = ANY($2)`,
		models.OutboxPublishing, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("outbox fetch mark: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("outbox fetch commit: %w", err)
	}
	for i := range events {
		events[i].Status = models.OutboxPublishing
	}
	return events, nil
}

func (p *PostgresStore) MarkStatus(ctx context.Context, ids []int64, status models.OutboxStatus) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE matching_outbox SET status = $1 WHERE id = ANY($2)`,
		status, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("outbox mark %s: %w", status, err)
	}
	return nil
}

func (p *PostgresStore) ResetStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE matching_outbox SET status = $1 WHERE status = $2 AND created_at < $3`,
		models.OutboxReady, models.OutboxPublishing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("outbox rescue: %w", err)
	}
	return res.RowsAffected()
}

func (p *PostgresStore) PurgeDone(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM matching_outbox WHERE status = $1 AND created_at < $2`,
		models.OutboxDone, cutoff)
	if err != nil {
		return 0, fmt.Errorf("outbox purge: %w", err)
	}
	return res.RowsAffected()
}

func (p *PostgresStore) Close() error { return p.db.Close() }
