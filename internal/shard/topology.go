// Package shard owns the fixed mapping from a routing key (user id) to one of
// N independent Postgres databases, and the connection pool for each of them.
package shard

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/orderingsystem/order-service/internal/config"
)

// ErrShardUnavailable is returned when a shard's pool cannot be reached.
// The topology never retries; the caller decides what a dead shard means.
var ErrShardUnavailable = errors.New("shard unavailable")

// Topology is the process-wide shard map. It is built once at startup and
// read-only afterwards: the shard count and the routing function must never
// change while data written under them exists, or routed lookups will miss
// rows that now live on the "wrong" shard.
type Topology struct {
	pools  []*pgxpool.Pool
	prefix string
}

// New connects a pool to every shard database. Shard i lives in database
// "<prefix>_<i>" on the same Postgres host.
func New(ctx context.Context, pg config.PostgresConfig, sh config.ShardingConfig) (*Topology, error) {
	pools := make([]*pgxpool.Pool, sh.ShardCount)

	for i := 0; i < sh.ShardCount; i++ {
		dbName := fmt.Sprintf("%s_%d", sh.DBNamePrefix, i)
		connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			pg.Host, pg.Port, pg.User, pg.Password, dbName, pg.SSLMode)

		poolCfg, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			closeAll(pools[:i])
			return nil, fmt.Errorf("shard %d: failed to parse pool config: %w", i, err)
		}
		poolCfg.MaxConns = pg.MaxConns
		poolCfg.MinConns = pg.MinConns
		poolCfg.MaxConnLifetime = pg.MaxConnLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			closeAll(pools[:i])
			return nil, fmt.Errorf("shard %d: failed to create pool: %w", i, err)
		}
		pools[i] = pool

		log.Info().Int("shard", i).Str("database", dbName).Msg("Connected to shard")
	}

	return &Topology{pools: pools, prefix: sh.DBNamePrefix}, nil
}

// ShardCount returns N, fixed at construction.
func (t *Topology) ShardCount() int {
	return len(t.pools)
}

// ResolveShard maps a user id to a shard index in [0, N). The function is
// pure: the same id always lands on the same shard for the process lifetime.
//
// A plain modulo is uniform enough for roughly uniform user ids, but it skews
// badly for clustered id ranges (e.g. ids issued in blocks per region). Known
// weakness; fixing it would strand every existing row.
func (t *Topology) ResolveShard(userID int64) int {
	idx := int(userID % int64(len(t.pools)))
	if idx < 0 {
		idx += len(t.pools)
	}
	return idx
}

// Pool returns the pool for a shard index, pinging it first so callers get
// ErrShardUnavailable instead of a late query failure. Acquisition on one
// shard never blocks another: every shard has its own independent pool.
func (t *Topology) Pool(ctx context.Context, shardIndex int) (*pgxpool.Pool, error) {
	if shardIndex < 0 || shardIndex >= len(t.pools) {
		return nil, fmt.Errorf("shard index %d out of range [0, %d)", shardIndex, len(t.pools))
	}

	pool := t.pools[shardIndex]
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("shard %d: %w: %v", shardIndex, ErrShardUnavailable, err)
	}

	return pool, nil
}

// PoolForUser resolves the shard for a user id and returns its pool.
func (t *Topology) PoolForUser(ctx context.Context, userID int64) (*pgxpool.Pool, error) {
	return t.Pool(ctx, t.ResolveShard(userID))
}

// All returns every (index, pool) pair in index order. The slice is a copy;
// callers may range over it freely during scatter-gather.
func (t *Topology) All() []Entry {
	entries := make([]Entry, len(t.pools))
	for i, p := range t.pools {
		entries[i] = Entry{Index: i, Pool: p}
	}
	return entries
}

// Entry is one shard slot as seen by scatter-gather callers.
type Entry struct {
	Index int
	Pool  *pgxpool.Pool
}

// ShardName returns the logical database name for a shard index. Used for
// observability only, never for routing.
func (t *Topology) ShardName(shardIndex int) string {
	return fmt.Sprintf("%s_%d", t.prefix, shardIndex)
}

// Close releases every shard's pool.
func (t *Topology) Close() {
	closeAll(t.pools)
	log.Info().Msg("Shard pools closed")
}

// Migrate applies the same migration set to every shard. All shards share one
// schema; a shard that is already up to date is a no-op.
func (t *Topology) Migrate(pg config.PostgresConfig) error {
	for i := range t.pools {
		dsn := fmt.Sprintf("pgx5://%s:%s@%s:%s/%s_%d?sslmode=%s",
			pg.User, pg.Password, pg.Host, pg.Port, t.prefix, i, pg.SSLMode)

		m, err := migrate.New("file://"+pg.MigrationsPath, dsn)
		if err != nil {
			return fmt.Errorf("shard %d: failed to initialize migrations: %w", i, err)
		}

		err = m.Up()
		srcErr, dbErr := m.Close()
		if err == migrate.ErrNoChange {
			log.Debug().Int("shard", i).Msg("No new migrations to apply")
			continue
		}
		if err != nil {
			return fmt.Errorf("shard %d: failed to apply migrations: %w", i, err)
		}
		if srcErr != nil {
			return fmt.Errorf("shard %d: failed to close migration source: %w", i, srcErr)
		}
		if dbErr != nil {
			return fmt.Errorf("shard %d: failed to close migration database: %w", i, dbErr)
		}

		log.Info().Int("shard", i).Msg("Migrations applied")
	}

	return nil
}

func closeAll(pools []*pgxpool.Pool) {
	for _, p := range pools {
		if p != nil {
			p.Close()
		}
	}
}
