// Package report aggregates persisted job records into per-owner totals.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/3leaps/gospool/pkg/jobrecord"
)

// OwnerTotal sums the completed jobs of one owner.
type OwnerTotal struct {
	Owner        string  `json:"owner"`
	Jobs         int     `json:"jobs"`
	PrintedPages int     `json:"printed_pages"`
	Cost         float64 `json:"cost"`
}

// Totals groups records by owner, sorted by owner name. Records without an
// owner are grouped under the empty name.
func Totals(records []jobrecord.Record) []OwnerTotal {
	byOwner := make(map[string]*OwnerTotal)
	for _, r := range records {
		t, ok := byOwner[r.Owner]
		if !ok {
			t = &OwnerTotal{Owner: r.Owner}
			byOwner[r.Owner] = t
		}
		t.Jobs++
		t.PrintedPages += r.PrintedPages
		t.Cost += r.Cost
	}

	out := make([]OwnerTotal, 0, len(byOwner))
	for _, t := range byOwner {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Sum folds totals into a single grand total with an empty owner.
func Sum(totals []OwnerTotal) OwnerTotal {
	var all OwnerTotal
	for _, t := range totals {
		all.Jobs += t.Jobs
		all.PrintedPages += t.PrintedPages
		all.Cost += t.Cost
	}
	return all
}

func formatCost(c float64) string {
	return strconv.FormatFloat(c, 'f', 2, 64)
}

// WriteTable renders totals as an aligned text table with a total row.
func WriteTable(w io.Writer, totals []OwnerTotal) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "OWNER\tJOBS\tPAGES\tCOST")
	for _, t := range totals {
		owner := t.Owner
		if owner == "" {
			owner = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", owner, t.Jobs, t.PrintedPages, formatCost(t.Cost))
	}
	all := Sum(totals)
	_, _ = fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%s\n", all.Jobs, all.PrintedPages, formatCost(all.Cost))
	return tw.Flush()
}

// WriteCSV renders totals as CSV with a header row.
func WriteCSV(w io.Writer, totals []OwnerTotal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"owner", "jobs", "printed_pages", "cost"}); err != nil {
		return err
	}
	for _, t := range totals {
		row := []string{t.Owner, strconv.Itoa(t.Jobs), strconv.Itoa(t.PrintedPages), formatCost(t.Cost)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON renders totals as an indented JSON array.
func WriteJSON(w io.Writer, totals []OwnerTotal) error {
	if totals == nil {
		totals = []OwnerTotal{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(totals)
}

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// Write renders totals in the given format.
func Write(w io.Writer, f Format, totals []OwnerTotal) error {
	switch f {
	case FormatTable, "":
		return WriteTable(w, totals)
	case FormatCSV:
		return WriteCSV(w, totals)
	case FormatJSON:
		return WriteJSON(w, totals)
	}
	return fmt.Errorf("unknown report format %q", f)
}
