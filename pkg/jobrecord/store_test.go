package jobrecord

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Repository {
	t.Helper()
	ctx := context.Background()

	sqlStore, err := OpenStore(ctx, Config{Path: filepath.Join(t.TempDir(), "jobs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]Repository{
		"sql":    sqlStore,
		"memory": NewMemoryStore(),
	}
}

func TestRepository(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, repo := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			records := []Record{
				{SpoolID: "office-1", FileName: "a.pdf", DocumentPages: 4, SelectedPages: 4, PrintedPages: 4, Cost: 0.2, PrinterID: 1, PrinterName: "Office", Owner: "alice", Timestamp: base},
				{SpoolID: "office-2", FileName: "b.pdf", DocumentPages: 10, SelectedPages: 10, PrintedPages: 5, Cost: 0.4, PrinterID: 1, Owner: "bob", Timestamp: base.Add(time.Minute)},
				{SpoolID: "lab-3", FileName: "c.pdf", DocumentPages: 2, SelectedPages: 1, PrintedPages: 1, Cost: 0.3, PrinterID: 2, Owner: "alice", Timestamp: base.Add(2 * time.Minute)},
				{SpoolID: "office-4", FileName: "d.pdf", DocumentPages: 1, SelectedPages: 1, PrintedPages: 1, Cost: 0.05, PrinterID: 1, Owner: "alice", Timestamp: base.Add(3 * time.Minute)},
			}
			for i := range records {
				id, err := repo.Save(ctx, &records[i])
				require.NoError(t, err)
				assert.Positive(t, id)
				assert.Equal(t, id, records[i].ID)
			}

			t.Run("find by owner newest first", func(t *testing.T) {
				got, err := repo.FindByOwner(ctx, "alice")
				require.NoError(t, err)
				require.Len(t, got, 3)
				assert.Equal(t, "office-4", got[0].SpoolID)
				assert.Equal(t, "lab-3", got[1].SpoolID)
				assert.Equal(t, "office-1", got[2].SpoolID)
				assert.Equal(t, "Office", got[2].PrinterName)
				assert.True(t, base.Equal(got[2].Timestamp))
			})

			t.Run("find by printer paged", func(t *testing.T) {
				first, err := repo.FindByPrinter(ctx, 1, Page{Number: 0, Size: 2})
				require.NoError(t, err)
				require.Len(t, first, 2)
				assert.Equal(t, "office-4", first[0].SpoolID)
				assert.Equal(t, "office-2", first[1].SpoolID)

				second, err := repo.FindByPrinter(ctx, 1, Page{Number: 1, Size: 2})
				require.NoError(t, err)
				require.Len(t, second, 1)
				assert.Equal(t, "office-1", second[0].SpoolID)

				empty, err := repo.FindByPrinter(ctx, 1, Page{Number: 5, Size: 2})
				require.NoError(t, err)
				assert.Empty(t, empty)
			})

			t.Run("delete by owner", func(t *testing.T) {
				n, err := repo.DeleteByOwner(ctx, "alice")
				require.NoError(t, err)
				assert.Equal(t, int64(3), n)

				left, err := repo.FindAll(ctx)
				require.NoError(t, err)
				require.Len(t, left, 1)
				assert.Equal(t, "bob", left[0].Owner)

				n, err = repo.DeleteByOwner(ctx, "nobody")
				require.NoError(t, err)
				assert.Zero(t, n)
			})

			t.Run("rejects record without spool id", func(t *testing.T) {
				_, err := repo.Save(ctx, &Record{Owner: "alice"})
				assert.ErrorIs(t, err, ErrInvalidRecord)
			})
		})
	}
}

func TestSubSecondTimestampsRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 120000000, time.UTC)

	for name, repo := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := repo.Save(ctx, &Record{SpoolID: "office-9", FileName: "z.pdf", PrinterID: 7, Owner: "carol", Timestamp: ts})
			require.NoError(t, err)

			byOwner, err := repo.FindByOwner(ctx, "carol")
			require.NoError(t, err)
			require.Len(t, byOwner, 1)
			assert.True(t, ts.Equal(byOwner[0].Timestamp), "got %s", byOwner[0].Timestamp)

			byPrinter, err := repo.FindByPrinter(ctx, 7, Page{Size: 10})
			require.NoError(t, err)
			require.Len(t, byPrinter, 1)
			assert.True(t, ts.Equal(byPrinter[0].Timestamp))

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.True(t, ts.Equal(all[0].Timestamp))
		})
	}
}

func TestParseDBTime(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 0, 0, 120000000, time.UTC)

	for name, v := range map[string]any{
		"time value":          want.In(time.FixedZone("CET", 3600)),
		"stored layout":       "2025-03-01T12:00:00.120000000Z",
		"trimmed nanoseconds": "2025-03-01T12:00:00.12Z",
		"bytes":               []byte("2025-03-01T12:00:00.12Z"),
		"space separator":     "2025-03-01 12:00:00.12",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := parseDBTime(v)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	got, err := parseDBTime("2025-03-01 12:00:00")
	require.NoError(t, err)
	assert.True(t, want.Truncate(time.Second).Equal(got))

	_, err = parseDBTime(nil)
	assert.Error(t, err)
	_, err = parseDBTime(int64(42))
	assert.Error(t, err)
	_, err = parseDBTime("yesterday")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var version int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	dsn, err := buildDSN(Config{Path: filepath.Join(dir, "nested", "jobs.db")})
	require.NoError(t, err)
	assert.Equal(t, "file:"+filepath.Join(dir, "nested", "jobs.db"), dsn)
	assert.DirExists(t, filepath.Join(dir, "nested"))

	dsn, err = buildDSN(Config{URL: "libsql://jobs.example.io", AuthToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "libsql://jobs.example.io?authToken=tok", dsn)

	_, err = buildDSN(Config{})
	assert.Error(t, err)
}

func TestRemoteDSN(t *testing.T) {
	for dsn, want := range map[string]bool{
		"libsql://jobs.turso.io":    true,
		"LIBSQL://jobs.turso.io":    true,
		"https://jobs.turso.io":     true,
		"wss://jobs.turso.io":       true,
		"file:/tmp/jobs.db":         false,
		":memory:":                  false,
	} {
		assert.Equal(t, want, isRemoteDSN(dsn), dsn)
	}

	redacted := redactDSN("libsql://jobs.turso.io?authToken=secret")
	assert.Equal(t, "libsql://jobs.turso.io", redacted)
	assert.NotContains(t, redacted, "secret")
}
