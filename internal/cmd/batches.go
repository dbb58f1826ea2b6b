package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/gospool/pkg/batchregistry"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect recorded print batches",
	Long: `Inspect the batches written by 'gospool print'.

Every print run writes <batches.root>/<batch_id>/batch.json and keeps it
current while jobs progress. Batch ids may be abbreviated to any unique
prefix.

Examples:
  gospool batches list
  gospool batches status 3f2a --json`,
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batches, newest first",
	RunE:  runBatchesList,
}

var batchesStatusCmd = &cobra.Command{
	Use:   "status <batch_id>",
	Short: "Show one batch and its jobs",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchesStatus,
}

func init() {
	rootCmd.AddCommand(batchesCmd)
	batchesCmd.AddCommand(batchesListCmd)
	batchesCmd.AddCommand(batchesStatusCmd)

	batchesListCmd.Flags().Bool("json", false, "Output as JSON")
	batchesStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

func runBatchesList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	store := batchregistry.NewStore(appConfig.Batches.Root)

	batches, err := store.List()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot list batches", err)
	}
	if jsonOutput {
		if batches == nil {
			batches = []batchregistry.BatchRecord{}
		}
		return encodeJSON(os.Stdout, batches)
	}
	if len(batches) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No batches found")
		return nil
	}
	return writeBatchList(os.Stdout, batches)
}

func writeBatchList(w io.Writer, batches []batchregistry.BatchRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BATCH ID\tOWNER\tSTATE\tJOBS\tCOMPLETED\tFAILED\tCREATED\tENDED")
	for _, b := range batches {
		completed, failed := b.Counts()
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			shortBatchID(b.BatchID), dash(b.Owner), b.State, len(b.Jobs), completed, failed,
			b.CreatedAt.UTC().Format(time.RFC3339), formatOptionalTime(b.EndedAt))
	}
	return tw.Flush()
}

func runBatchesStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	store := batchregistry.NewStore(appConfig.Batches.Root)

	id, err := resolveBatchID(store, strings.TrimSpace(args[0]))
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Unknown batch", err)
	}
	rec, err := store.Get(id)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot read batch", err)
	}
	if jsonOutput {
		return encodeJSON(os.Stdout, rec)
	}

	_, _ = fmt.Fprintf(os.Stdout, "batch_id=%s\n", rec.BatchID)
	if rec.Owner != "" {
		_, _ = fmt.Fprintf(os.Stdout, "owner=%s\n", rec.Owner)
	}
	_, _ = fmt.Fprintf(os.Stdout, "state=%s\n", rec.State)
	if rec.ManifestPath != "" {
		_, _ = fmt.Fprintf(os.Stdout, "manifest_path=%s\n", rec.ManifestPath)
	}
	_, _ = fmt.Fprintf(os.Stdout, "created_at=%s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
	if rec.EndedAt != nil {
		_, _ = fmt.Fprintf(os.Stdout, "ended_at=%s\n", rec.EndedAt.UTC().Format(time.RFC3339))
	}
	_, _ = fmt.Fprintln(os.Stdout)
	writeBatchTable(os.Stdout, *rec)
	return nil
}

// resolveBatchID expands a unique prefix to a full batch id.
func resolveBatchID(store *batchregistry.Store, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("batch_id is required")
	}
	batches, err := store.List()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, b := range batches {
		if b.BatchID == prefix {
			return prefix, nil
		}
		if strings.HasPrefix(b.BatchID, prefix) {
			matches = append(matches, b.BatchID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no batch matches %q", prefix)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("batch id %q is ambiguous (%d matches)", prefix, len(matches))
}

func shortBatchID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
