package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gospool/internal/observability"
	"github.com/3leaps/gospool/pkg/jobrecord"
	"github.com/3leaps/gospool/pkg/report"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Query recorded print jobs",
	Long: `Query and maintain the record of completed print jobs.

A job is recorded once the spooler reports it finished. Failed jobs are
never recorded.

Examples:
  gospool jobs list --owner alice
  gospool jobs by-printer 2 --page 1 --size 20
  gospool jobs delete --owner alice`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded jobs, newest first",
	RunE:  runJobsList,
}

var jobsByPrinterCmd = &cobra.Command{
	Use:   "by-printer <printer_id>",
	Short: "List one page of a printer's jobs",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsByPrinter,
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every recorded job of an owner",
	RunE:  runJobsDelete,
}

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Report printed pages and cost per owner",
	Long: `Report the number of jobs, printed pages and cost per owner.

Examples:
  gospool totals
  gospool totals --format csv > totals.csv`,
	RunE: runTotals,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(totalsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsByPrinterCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)

	jobsListCmd.Flags().String("owner", "", "Only jobs of this owner")
	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsByPrinterCmd.Flags().Int("page", 0, "Zero-based page number")
	jobsByPrinterCmd.Flags().Int("size", jobrecord.DefaultPageSize, "Page size")
	jobsByPrinterCmd.Flags().Bool("json", false, "Output as JSON")
	jobsDeleteCmd.Flags().String("owner", "", "Owner whose jobs are deleted (required)")
	_ = jobsDeleteCmd.MarkFlagRequired("owner")
	totalsCmd.Flags().String("format", string(report.FormatTable), "Output format: table, csv or json")
}

func openJobStore(cmd *cobra.Command) (*engine, error) {
	eng := newEngine(appConfig, observability.CLILogger)
	if err := eng.openJobs(commandContext(cmd)); err != nil {
		return nil, exitError(foundry.ExitFileReadError, "Cannot open job store", err)
	}
	return eng, nil
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	eng, err := openJobStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var records []jobrecord.Record
	if owner != "" {
		records, err = eng.jobs.FindByOwner(commandContext(cmd), owner)
	} else {
		records, err = eng.jobs.FindAll(commandContext(cmd))
	}
	if err != nil {
		return err
	}
	return writeRecords(os.Stdout, records, jsonOutput)
}

func runJobsByPrinter(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid printer id", err)
	}
	number, _ := cmd.Flags().GetInt("page")
	size, _ := cmd.Flags().GetInt("size")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if number < 0 || size < 1 {
		return exitError(foundry.ExitInvalidArgument, "Invalid page", fmt.Errorf("page must be >= 0 and size >= 1"))
	}

	eng, err := openJobStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	records, err := eng.jobs.FindByPrinter(commandContext(cmd), id, jobrecord.Page{Number: number, Size: size})
	if err != nil {
		return err
	}
	return writeRecords(os.Stdout, records, jsonOutput)
}

func runJobsDelete(cmd *cobra.Command, _ []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	eng, err := openJobStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	n, err := eng.jobs.DeleteByOwner(commandContext(cmd), owner)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot delete jobs", err)
	}
	observability.CLILogger.Info("Deleted jobs", zap.String("owner", owner), zap.Int64("deleted", n))
	_, _ = fmt.Fprintf(os.Stdout, "deleted %d job(s) of %s\n", n, owner)
	return nil
}

func runTotals(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	eng, err := openJobStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	records, err := eng.jobs.FindAll(commandContext(cmd))
	if err != nil {
		return err
	}
	if err := report.Write(os.Stdout, report.Format(format), report.Totals(records)); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot write report", err)
	}
	return nil
}

func writeRecords(w io.Writer, records []jobrecord.Record, jsonOutput bool) error {
	if jsonOutput {
		if records == nil {
			records = []jobrecord.Record{}
		}
		return encodeJSON(w, records)
	}
	if len(records) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "No jobs found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTIME\tOWNER\tPRINTER\tFILE\tSPOOL ID\tPAGES\tCOST")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Timestamp.UTC().Format(time.RFC3339), r.Owner, dash(r.PrinterName),
			r.FileName, r.SpoolID, r.PrintedPages, strconv.FormatFloat(r.Cost, 'f', 2, 64))
	}
	return tw.Flush()
}
