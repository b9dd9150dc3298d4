package order

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/orderingsystem/order-service/internal/shard"
)

var ErrOrderNotFound = errors.New("order not found")

// Repository is the only component that issues SQL. Point operations are
// routed to exactly one shard by user id; GetByStatus, CountAll and
// ShardStats fan out to every shard.
type Repository interface {
	Save(ctx context.Context, o *Order) error
	GetByUserAndID(ctx context.Context, userID, orderID int64) (*Order, error)
	GetByUser(ctx context.Context, userID int64) ([]Order, error)
	GetByStatus(ctx context.Context, status string) ([]Order, error)
	CountAll(ctx context.Context) (int64, error)
	ShardStats(ctx context.Context) ([]ShardStat, error)
}

type shardedRepository struct {
	topology *shard.Topology
}

func NewShardedRepository(topology *shard.Topology) Repository {
	return &shardedRepository{topology: topology}
}

const orderColumns = "id, user_id, items, total_amount, status, payment_method, delivery_address, created_year, created_at, updated_at"

// scanOrder decodes one result row into an Order. A scan failure means a
// malformed row, which callers must be able to tell apart from "no such row".
func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Items,
		&o.TotalAmount,
		&o.Status,
		&o.PaymentMethod,
		&o.DeliveryAddress,
		&o.CreatedYear,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// Save inserts the order into the shard its UserID routes to, or updates it
// in place when the ID is already set. An order can never move between
// shards: the routing key is immutable once the row exists.
func (r *shardedRepository) Save(ctx context.Context, o *Order) error {
	shardIndex := r.topology.ResolveShard(o.UserID)
	pool, err := r.topology.Pool(ctx, shardIndex)
	if err != nil {
		return fmt.Errorf("repository: %w", err)
	}

	if o.ID == 0 {
		// created_year is denormalized from created_at so the shards can
		// range-partition by year; keep the two in lockstep here.
		o.CreatedYear = o.CreatedAt.Year()

		query := `
			INSERT INTO orders (user_id, items, total_amount, status, payment_method, delivery_address, created_year, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		err = pool.QueryRow(ctx, query,
			o.UserID,
			o.Items,
			o.TotalAmount,
			o.Status,
			o.PaymentMethod,
			o.DeliveryAddress,
			o.CreatedYear,
			o.CreatedAt,
			o.UpdatedAt,
		).Scan(&o.ID)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order for user %d on shard %d: %w", o.UserID, shardIndex, err)
		}

		return nil
	}

	// Updates filter by both id and user_id. IDs are shard-local, so an
	// id-only predicate could hit a different user's order after a routing
	// bug or a manual cross-shard copy.
	query := `
		UPDATE orders
		SET status = $1, payment_method = $2, delivery_address = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6
	`
	cmdTag, err := pool.Exec(ctx, query,
		o.Status,
		o.PaymentMethod,
		o.DeliveryAddress,
		o.UpdatedAt,
		o.ID,
		o.UserID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update order %d for user %d: %w", o.ID, o.UserID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// GetByUserAndID issues a point query against the single shard the user id
// routes to. Other shards are deliberately ignored even though one of them
// may hold a row with the same id value under a different user.
func (r *shardedRepository) GetByUserAndID(ctx context.Context, userID, orderID int64) (*Order, error) {
	pool, err := r.topology.PoolForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	o, err := scanOrder(pool.QueryRow(ctx, query, orderID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %d for user %d: %w", orderID, userID, err)
	}

	return &o, nil
}

func (r *shardedRepository) GetByUser(ctx context.Context, userID int64) ([]Order, error) {
	pool, err := r.topology.PoolForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %d: %w", userID, err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// GetByStatus is the scatter-gather read: the same query runs on every shard
// concurrently, each goroutine fills its own pre-allocated slot, and the
// merge and sort happen only after every shard has answered. Fail-fast: one
// failed shard fails the whole call with no partial result.
func (r *shardedRepository) GetByStatus(ctx context.Context, status string) ([]Order, error) {
	entries := r.topology.All()
	perShard := make([][]Order, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at DESC`

			rows, err := e.Pool.Query(gctx, query, status)
			if err != nil {
				return fmt.Errorf("shard %d: failed to query orders by status: %w", e.Index, err)
			}
			defer rows.Close()

			orders, err := collectOrders(rows)
			if err != nil {
				return fmt.Errorf("shard %d: %w", e.Index, err)
			}

			perShard[e.Index] = orders
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("repository: scatter-gather by status %q failed: %w", status, err)
	}

	merged := mergeByCreatedAtDesc(perShard)
	return merged, nil
}

// CountAll sums COUNT(*) over every shard. A null count contributes zero
// instead of failing the call; query errors still fail it.
func (r *shardedRepository) CountAll(ctx context.Context) (int64, error) {
	entries := r.topology.All()
	counts := make([]int64, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			var count *int64
			if err := e.Pool.QueryRow(gctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
				return fmt.Errorf("shard %d: failed to count orders: %w", e.Index, err)
			}
			if count != nil {
				counts[e.Index] = *count
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("repository: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// ShardStats reports a row count per shard for observability. Best effort:
// a shard that cannot answer shows up as unreachable instead of sinking the
// whole call.
func (r *shardedRepository) ShardStats(ctx context.Context) ([]ShardStat, error) {
	entries := r.topology.All()
	stats := make([]ShardStat, len(entries))

	g := new(errgroup.Group)
	for _, e := range entries {
		g.Go(func() error {
			stat := ShardStat{
				ShardIndex:   e.Index,
				DatabaseName: r.topology.ShardName(e.Index),
			}

			var count *int64
			if err := e.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
				log.Warn().Err(err).Int("shard", e.Index).Msg("repository: shard unreachable for stats")
				stats[e.Index] = stat
				return nil
			}

			stat.Reachable = true
			if count != nil {
				stat.OrderCount = *count
			}
			stats[e.Index] = stat
			return nil
		})
	}

	_ = g.Wait() // goroutines never return errors, degraded shards are in-band

	return stats, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

// mergeByCreatedAtDesc concatenates per-shard result slots and re-sorts the
// union by creation time, newest first. The relative order of rows with equal
// created_at is unspecified.
func mergeByCreatedAtDesc(perShard [][]Order) []Order {
	total := 0
	for _, s := range perShard {
		total += len(s)
	}

	merged := make([]Order, 0, total)
	for _, s := range perShard {
		merged = append(merged, s...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	return merged
}
