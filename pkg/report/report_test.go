package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gospool/pkg/jobrecord"
)

func sampleRecords() []jobrecord.Record {
	return []jobrecord.Record{
		{SpoolID: "lab-1", Owner: "bob", PrintedPages: 4, Cost: 0.40},
		{SpoolID: "lab-2", Owner: "alice", PrintedPages: 10, Cost: 1.50},
		{SpoolID: "lab-3", Owner: "bob", PrintedPages: 1, Cost: 0.10},
	}
}

func TestTotals(t *testing.T) {
	got := Totals(sampleRecords())
	require.Len(t, got, 2)

	assert.Equal(t, "alice", got[0].Owner)
	assert.Equal(t, 1, got[0].Jobs)
	assert.Equal(t, 10, got[0].PrintedPages)

	assert.Equal(t, "bob", got[1].Owner)
	assert.Equal(t, 2, got[1].Jobs)
	assert.Equal(t, 5, got[1].PrintedPages)
	assert.InDelta(t, 0.50, got[1].Cost, 1e-9)

	all := Sum(got)
	assert.Equal(t, 3, all.Jobs)
	assert.Equal(t, 15, all.PrintedPages)
	assert.InDelta(t, 2.0, all.Cost, 1e-9)

	assert.Empty(t, Totals(nil))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, Totals(sampleRecords())))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"OWNER", "JOBS", "PAGES", "COST"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"alice", "1", "10", "1.50"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"TOTAL", "3", "15", "2.00"}, strings.Fields(lines[3]))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Totals(sampleRecords())))
	assert.Equal(t, "owner,jobs,printed_pages,cost\nalice,1,10,1.50\nbob,2,5,0.50\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, FormatJSON, Totals(sampleRecords())))
	var got []OwnerTotal
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 2)

	assert.Error(t, Write(&buf, Format("xml"), nil))
}
