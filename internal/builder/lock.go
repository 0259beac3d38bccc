package builder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultforge/vaultforge/pkg/database"
)

// BuildLock is a per-model advisory lock held on the metadata database for
// the duration of a build. Two concurrent builds of the same named model
// would interleave hub inserts and SCD read-then-write updates; the lock
// turns the second build into an immediate failure instead.
type BuildLock struct {
	db   *database.PostgreSQL
	key  int64
	conn *pgxpool.Conn
}

// NewBuildLock creates a lock for one model. The scope distinguishes vault
// and warehouse namespaces.
func NewBuildLock(db *database.PostgreSQL, scope, modelName string) *BuildLock {
	digest := sha256.Sum256([]byte(scope + ":" + modelName))
	key := int64(binary.BigEndian.Uint64(digest[:8]))
	return &BuildLock{db: db, key: key}
}

// Acquire takes the advisory lock. It fails immediately when another build of
// the same model holds it. Advisory locks are session scoped, so the lock
// pins one pool connection until Release.
func (l *BuildLock) Acquire(ctx context.Context) error {
	conn, err := l.db.Pool().Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire metadata connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&locked); err != nil {
		conn.Release()
		return fmt.Errorf("failed to take build lock: %w", err)
	}
	if !locked {
		conn.Release()
		return fmt.Errorf("another build of this model is already in progress")
	}

	l.conn = conn
	return nil
}

// Release drops the advisory lock and returns the pinned connection to the
// pool.
func (l *BuildLock) Release(ctx context.Context) {
	if l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	l.conn.Release()
	l.conn = nil
}
