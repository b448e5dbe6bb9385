package models

import "time"

// OutboxRecord is a persisted domain event waiting to be relayed.
type OutboxRecord struct {
	ID          int64     `db:"id"`
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	AggregateID string    `db:"aggregate_id"`
	Payload     []byte    `db:"payload"`
	OccurredAt  time.Time `db:"occurred_at"`
}
