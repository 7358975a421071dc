package health

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tavasya/speakdrill/pkg/blob"
)

// probeKey is the object key used by the blob store readiness probe. The
// probe writes and deletes this object on every check.
const probeKey = "healthz/probe"

// Database returns a [Checker] that pings the Postgres pool.
func Database(pool *pgxpool.Pool) Checker {
	return Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
	}
}

// BlobStore returns a [Checker] that verifies the blob store accepts writes
// by putting and deleting a small probe object.
func BlobStore(store blob.Store) Checker {
	return Checker{
		Name: "blob",
		Check: func(ctx context.Context) error {
			if _, err := store.Put(ctx, probeKey, []byte("ok"), "text/plain"); err != nil {
				return fmt.Errorf("put probe: %w", err)
			}
			if err := store.Delete(ctx, probeKey); err != nil {
				return fmt.Errorf("delete probe: %w", err)
			}
			return nil
		},
	}
}
