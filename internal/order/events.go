package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Event envelopes published after order state changes. EventID is fresh per
// publish so at-least-once consumers have something to deduplicate on; the
// order service itself does no dedup.

type CreatedEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	Total      decimal.Decimal `json:"total_amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type PaymentEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	OrderID    int64     `json:"order_id"`
	UserID     int64     `json:"user_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newEventID() uuid.UUID {
	id, err := uuid.NewV4()
	if err != nil {
		// NewV4 only fails when the system entropy source does; a zero id
		// still publishes, consumers just lose dedup for that message.
		return uuid.Nil
	}
	return id
}
