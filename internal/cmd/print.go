package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gospool/internal/observability"
	"github.com/3leaps/gospool/pkg/batchregistry"
	"github.com/3leaps/gospool/pkg/manifest"
	"github.com/3leaps/gospool/pkg/output"
	"github.com/3leaps/gospool/pkg/printer"
	"github.com/3leaps/gospool/pkg/source"
	"github.com/3leaps/gospool/pkg/spool"
)

var printCmd = &cobra.Command{
	Use:   "print [files...]",
	Short: "Print documents and wait for them to finish",
	Long: `Submit one or more documents to the spooler and wait until every job
has completed or failed.

Documents come from positional arguments (paths, globs, s3:// URIs) or from
a batch manifest. Images are converted to PDF before submission. Completed
jobs are recorded for the owner; the batch itself is recorded under the
batches directory and can be inspected with 'gospool batches'.

Examples:
  gospool print thesis.pdf --owner alice
  gospool print 'scans/**/*.png' --duplex two-sided-long-edge --layout 2
  gospool print s3://docs/reports/q1.pdf --range 1-4,9 --copies 2
  gospool print --manifest batch.yaml --json > events.jsonl`,
	RunE: runPrint,
}

var (
	printManifest    string
	printOwner       string
	printPrinter     string
	printRange       string
	printDuplex      string
	printLayout      int
	printOrientation string
	printCopies      int
	printJSON        bool
)

func init() {
	rootCmd.AddCommand(printCmd)

	printCmd.Flags().StringVarP(&printManifest, "manifest", "m", "", "Batch manifest (YAML or JSON)")
	printCmd.Flags().StringVar(&printOwner, "owner", "", "Owner recorded for the jobs (default: current user)")
	printCmd.Flags().StringVarP(&printPrinter, "printer", "p", "", "Printer name (default: catalog default)")
	printCmd.Flags().StringVarP(&printRange, "range", "r", "", "Page range, e.g. 1-3,7")
	printCmd.Flags().StringVar(&printDuplex, "duplex", "", "one-sided, two-sided-short-edge or two-sided-long-edge")
	printCmd.Flags().IntVar(&printLayout, "layout", 0, "Pages per sheet: 1, 2, 4, 8 or 16")
	printCmd.Flags().StringVar(&printOrientation, "orientation", "", "portrait or landscape")
	printCmd.Flags().IntVarP(&printCopies, "copies", "n", 0, "Number of copies")
	printCmd.Flags().BoolVar(&printJSON, "json", false, "Emit JSONL job events and a summary on stdout")
}

func runPrint(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	log := observability.CLILogger

	m, err := buildManifest(args)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid print request", err)
	}

	eng := newEngine(appConfig, log)
	defer func() { _ = eng.Close() }()
	if err := eng.loadPrinters(); err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot load printers", err)
	}
	if err := eng.openJobs(ctx); err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot open job store", err)
	}

	var out io.Writer = os.Stdout
	if !printJSON {
		out = io.Discard
	}
	res, err := eng.printBatch(ctx, m, printManifest, out)
	if err != nil {
		if source.IsNotFound(err) {
			return exitError(foundry.ExitFileNotFound, "Cannot resolve source", err)
		}
		return exitError(foundry.ExitInvalidArgument, "Print failed", err)
	}
	if !printJSON {
		writeBatchTable(os.Stdout, res.record)
	}
	if res.record.State != batchregistry.BatchStateSuccess {
		_, failed := res.record.Counts()
		return exitError(foundry.ExitExternalServiceUnavailable, "Batch did not complete",
			fmt.Errorf("%d of %d jobs failed (batch %s)", failed, len(res.record.Jobs), res.record.BatchID))
	}
	return nil
}

// buildManifest returns the manifest file, or a manifest built from the
// positional arguments and flags. Flags override manifest defaults.
func buildManifest(args []string) (*manifest.Manifest, error) {
	overrides := manifest.Options{
		Printer:     printPrinter,
		Duplex:      printDuplex,
		Layout:      printLayout,
		Orientation: printOrientation,
		Copies:      printCopies,
	}

	if printManifest != "" {
		if len(args) > 0 {
			return nil, errors.New("positional files cannot be combined with --manifest")
		}
		m, err := manifest.Load(printManifest)
		if err != nil {
			return nil, err
		}
		if printOwner != "" {
			m.Owner = printOwner
		}
		for i := range m.Jobs {
			applyFlagOverrides(&m.Jobs[i].Options, overrides)
			if printRange != "" {
				m.Jobs[i].Range = printRange
			}
		}
		if m.Owner == "" {
			m.Owner = currentUser()
		}
		return m, manifest.Validate(m)
	}

	if len(args) == 0 {
		return nil, errors.New("no files given; pass files or --manifest")
	}
	m := &manifest.Manifest{Version: "1.0", Owner: printOwner, Defaults: overrides}
	if m.Owner == "" {
		m.Owner = currentUser()
	}
	for _, a := range args {
		m.Jobs = append(m.Jobs, manifest.Job{Source: a, Range: printRange})
	}
	if err := manifest.Validate(m); err != nil {
		return nil, err
	}
	m.ApplyDefaults()
	return m, nil
}

func applyFlagOverrides(dst *manifest.Options, flags manifest.Options) {
	if flags.Printer != "" {
		dst.Printer = flags.Printer
	}
	if flags.Duplex != "" {
		dst.Duplex = flags.Duplex
	}
	if flags.Layout != 0 {
		dst.Layout = flags.Layout
	}
	if flags.Orientation != "" {
		dst.Orientation = flags.Orientation
	}
	if flags.Copies != 0 {
		dst.Copies = flags.Copies
	}
}

func currentUser() string {
	for _, key := range []string{"USER", "USERNAME", "LOGNAME"} {
		if u := strings.TrimSpace(os.Getenv(key)); u != "" {
			return u
		}
	}
	return "unknown"
}

// expand resolves every manifest job into spool job specs, in order.
func (e *engine) expand(ctx context.Context, m *manifest.Manifest) ([]*spool.JobSpec, error) {
	deps := e.specDeps()
	var specs []*spool.JobSpec
	for i, job := range m.Jobs {
		settings, err := job.Settings()
		if err != nil {
			return nil, err
		}
		var chosen *printer.Printer
		if settings.Printer != "" {
			p, err := e.printers.FindByName(ctx, settings.Printer)
			if err != nil {
				return nil, fmt.Errorf("job %d: %w", i, err)
			}
			chosen = &p
		}

		files, err := e.resolver.Resolve(ctx, job.Source)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		for _, file := range files {
			spec := spool.NewJobSpec(ctx, file, deps).
				WithOwner(m.Owner).
				WithOrientation(settings.Orientation).
				WithDuplex(settings.Duplex).
				WithLayout(settings.Layout).
				WithCopies(settings.Copies)
			if job.Name != "" && len(files) == 1 {
				spec.WithName(job.Name)
			}
			if chosen != nil {
				spec.WithPrinter(*chosen)
			}
			if job.Range != "" {
				spec.WithRange(job.Range)
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

type batchResult struct {
	record  batchregistry.BatchRecord
	results []*spool.Result
	summary *output.SummaryRecord
}

// printBatch runs the manifest through the pool, recording the batch and
// writing JSONL events to out.
func (e *engine) printBatch(ctx context.Context, m *manifest.Manifest, manifestPath string, out io.Writer) (*batchResult, error) {
	started := time.Now()
	batchID := uuid.NewString()
	writer := output.NewJSONLWriter(out, batchID)
	defer func() { _ = writer.Close() }()

	specs, err := e.expand(ctx, m)
	if err != nil {
		_ = writer.WriteError(ctx, &output.ErrorRecord{
			Code:    errorCode(err),
			Message: err.Error(),
		})
		return nil, err
	}

	recorder, err := batchregistry.NewRecorder(e.batches(), specs, batchregistry.RecorderOptions{
		BatchID:      batchID,
		Owner:        m.Owner,
		ManifestPath: manifestPath,
		Logger:       e.log,
	})
	if err != nil {
		return nil, err
	}

	log := e.log.With(zap.String("batch_id", batchID), zap.String("owner", m.Owner))
	log.Info("Submitting batch", zap.Int("jobs", len(specs)))

	pool := e.pool()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = pool.Close(closeCtx)
	}()

	listeners := spool.Listeners{
		recorder,
		observability.NewLoggingListener(log),
		output.JobEvents{W: writer, Log: log},
	}
	results, waitErr := pool.Process(ctx, specs, listeners).Wait(ctx)

	record, err := recorder.Finish()
	if err != nil {
		log.Warn("Failed to write final batch record", zap.Error(err))
	}
	if waitErr != nil {
		return nil, waitErr
	}

	summary := output.Summarize(results)
	summary.Duration = time.Since(started)
	summary.DurationHuman = summary.Duration.Round(time.Millisecond).String()
	if err := writer.WriteSummary(ctx, summary); err != nil {
		log.Warn("Failed to write summary", zap.Error(err))
	}
	log.Info("Batch finished",
		zap.String("state", string(record.State)),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("pages_printed", summary.PagesPrinted),
		zap.Float64("cost", summary.Cost))

	return &batchResult{record: record, results: results, summary: summary}, nil
}

func errorCode(err error) string {
	switch {
	case source.IsNotFound(err), errors.Is(err, printer.ErrNotFound):
		return output.ErrCodeNotFound
	case errors.Is(err, source.ErrAccessDenied), errors.Is(err, source.ErrInvalidCredentials):
		return output.ErrCodeAccessDenied
	}
	return output.ErrCodeInternal
}

func writeBatchTable(w io.Writer, rec batchregistry.BatchRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	_, _ = fmt.Fprintln(tw, "JOB\tPRINTER\tSTATE\tSPOOL ID\tPAGES\tERROR")
	for _, j := range rec.Jobs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			j.Name, dash(j.Printer), j.State, dash(j.SpoolID), j.PagesPrinted, dash(j.UserError))
	}
	completed, failed := rec.Counts()
	_, _ = fmt.Fprintf(tw, "\nbatch %s: %s (%d completed, %d failed)\n", rec.BatchID, rec.State, completed, failed)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
