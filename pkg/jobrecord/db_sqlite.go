//go:build !cgo

package jobrecord

import (
	"context"
	"database/sql"
	"fmt"

	sqlite "modernc.org/sqlite"
)

// driverName is registered by this package only.
const driverName = "gospool-jobs"

func init() {
	sql.Register(driverName, &sqlite.Driver{})
}

// Open opens the job history database using the pure-Go sqlite driver.
// Only local files and ":memory:" are served; a Turso URL yields
// ErrRemoteStore.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	if isRemoteDSN(dsn) {
		return nil, fmt.Errorf("%w: %s", ErrRemoteStore, redactDSN(dsn))
	}
	return openDB(ctx, dsn)
}
