package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AcquireFingerprintLock takes a blocking advisory transaction lock keyed by
// the fingerprint hash. It serializes only creators of the same fingerprint
// and auto-releases on commit or rollback.
func (db *DB) AcquireFingerprintLock(ctx context.Context, tx pgx.Tx, key int64) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
		return fmt.Errorf("acquire fingerprint lock: %w", err)
	}

	return nil
}
