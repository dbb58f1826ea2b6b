package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gospool/pkg/printer"
	"github.com/3leaps/gospool/pkg/spool"
)

type counter struct{ pages int }

func (c counter) CountPages(ctx context.Context, path string) (int, error) {
	if c.pages == 0 {
		return 0, errors.New("unreadable")
	}
	return c.pages, nil
}

type spooler struct{}

func (spooler) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if name == "lpstat" {
		return []byte("lab-1 alice 2048 Mon 02 Mar 2026\n"), nil, nil
	}
	return []byte("request id is lab-1 (1 file(s))\n"), nil, nil
}

func TestJobEventsAndSummary(t *testing.T) {
	printers := printer.NewMemoryRepository(printer.Printer{ID: 1, Name: "Lab", Priority: 1, PriceOneSided: 0.1, PriceTwoSided: 0.2})
	spec := func(name string, n int) *spool.JobSpec {
		return spool.NewJobSpec(context.Background(), "/srv/"+name, spool.SpecDeps{Counter: counter{pages: n}, Printers: printers})
	}
	jobs := []*spool.JobSpec{spec("ok.pdf", 3), spec("bad.pdf", 0)}

	var buf bytes.Buffer
	events := JobEvents{W: NewJSONLWriter(&buf, "batch-9")}

	pool := spool.NewPool(spool.PoolConfig{MinWorkers: 1, MaxWorkers: 1},
		spool.NewInvoker(spooler{}, spool.InvokerConfig{}, nil),
		&spool.PollTracker{Runner: spooler{}, Interval: time.Millisecond, Attempts: 3},
		nil)
	defer func() { _ = pool.Close(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := pool.Process(ctx, jobs, events).Wait(ctx)
	require.NoError(t, err)

	seen := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		var job JobRecord
		require.NoError(t, json.Unmarshal(rec.Data, &job))
		if job.Event == EventCompleted || job.Event == EventError {
			seen[job.Name] = job.Event
			if job.Event == EventError {
				assert.Equal(t, "page_count", job.ErrorType)
			} else {
				assert.Equal(t, "lab-1", job.SpoolID)
				require.NotNil(t, job.Cost)
				assert.InDelta(t, 0.3, *job.Cost, 1e-9)
			}
		}
	}
	assert.Equal(t, map[string]string{"ok.pdf": EventCompleted, "bad.pdf": EventError}, seen)

	sum := Summarize(results)
	assert.Equal(t, 2, sum.Jobs)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 3, sum.PagesPrinted)
	assert.InDelta(t, 0.3, sum.Cost, 1e-9)
}
