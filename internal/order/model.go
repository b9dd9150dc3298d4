package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Well-known statuses. The column is free text: payment providers and back
// office tooling write their own terminal values, so the set is open and the
// service never validates transitions against a closed list.
const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
)

// Order is one row in a shard's orders table.
//
// ID comes from the shard's local sequence and is unique only within that
// shard. Two orders on different shards can share an ID, which is why every
// lookup and update must also be scoped by UserID: the user id is the routing
// key that pins the row to its shard.
type Order struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	Items           string          `json:"items" db:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status          string          `json:"status" db:"status"`
	PaymentMethod   string          `json:"payment_method" db:"payment_method"`
	DeliveryAddress string          `json:"delivery_address" db:"delivery_address"`
	CreatedYear     int             `json:"created_year" db:"created_year"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// ShardStat is a best-effort per-shard row count for the stats endpoint.
// An unreachable shard is reported as Reachable=false rather than failing
// the whole call; nothing makes decisions off these numbers.
type ShardStat struct {
	ShardIndex   int    `json:"shard_index"`
	DatabaseName string `json:"database_name"`
	OrderCount   int64  `json:"order_count"`
	Reachable    bool   `json:"reachable"`
}
