//go:build cgo

package jobrecord

import (
	"context"
	"database/sql"

	_ "github.com/tursodatabase/go-libsql"
)

const driverName = "libsql"

// Open opens the job history database through go-libsql, which serves local
// files as well as Turso URLs such as libsql://jobs.turso.io.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	return openDB(ctx, dsn)
}
