package jobrecord

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timestampLayout is fixed-width so created_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLStore is a Repository backed by database/sql.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an opened and migrated database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenStore opens the database, migrates it and returns a store.
func OpenStore(ctx context.Context, cfg Config) (*SQLStore, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db), nil
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Save(ctx context.Context, r *Record) (int64, error) {
	if err := validate(r); err != nil {
		return 0, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO print_jobs (
			spool_id, file_name, document_pages, selected_pages, printed_pages,
			cost, printer_id, printer_name, owner, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SpoolID, r.FileName, r.DocumentPages, r.SelectedPages, r.PrintedPages,
		r.Cost, r.PrinterID, r.PrinterName, r.Owner, r.Timestamp.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert job record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read job record id: %w", err)
	}
	r.ID = id
	return id, nil
}

const selectColumns = `SELECT id, spool_id, file_name, document_pages, selected_pages,
	printed_pages, cost, printer_id, printer_name, owner, created_at FROM print_jobs`

func (s *SQLStore) FindByOwner(ctx context.Context, owner string) ([]Record, error) {
	return s.query(ctx, selectColumns+` WHERE owner = ? ORDER BY created_at DESC, id DESC`, owner)
}

func (s *SQLStore) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM print_jobs WHERE owner = ?`, owner)
	if err != nil {
		return 0, fmt.Errorf("delete job records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted job records: %w", err)
	}
	return n, nil
}

func (s *SQLStore) FindByPrinter(ctx context.Context, printerID int64, page Page) ([]Record, error) {
	p := page.normalized()
	return s.query(ctx, selectColumns+` WHERE printer_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		printerID, p.Size, p.Offset())
}

func (s *SQLStore) FindAll(ctx context.Context) ([]Record, error) {
	return s.query(ctx, selectColumns+` ORDER BY created_at DESC, id DESC`)
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query job records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Record{}
	for rows.Next() {
		var (
			r           Record
			printerName  sql.NullString
			createdAtRaw any
		)
		if err := rows.Scan(&r.ID, &r.SpoolID, &r.FileName, &r.DocumentPages, &r.SelectedPages,
			&r.PrintedPages, &r.Cost, &r.PrinterID, &printerName, &r.Owner, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		r.PrinterName = printerName.String
		ts, err := parseDBTime(createdAtRaw)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		r.Timestamp = ts
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job records: %w", err)
	}
	return out, nil
}

// readLayouts are the text forms created_at may come back in.
var readLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseDBTime normalizes a scanned timestamp column. Drivers return
// time.Time, string or []byte depending on build and column affinity.
func parseDBTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseDBTimeString(t)
	case []byte:
		return parseDBTimeString(string(t))
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is null")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseDBTimeString(s string) (time.Time, error) {
	for _, layout := range readLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
