package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gospool/internal/config"
	apperrors "github.com/3leaps/gospool/internal/errors"
	"github.com/3leaps/gospool/internal/observability"
)

var doctorS3 bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the spooler setup and suggest fixes for common issues.

Examples:
  gospool doctor        # Spooler, catalog and store checks
  gospool doctor --s3   # Also check AWS credentials for s3:// sources`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorS3, "s3", false, "Check AWS credentials for s3:// sources")
}

// doctorCheck logs one numbered check line.
type doctorCheck struct {
	num, total int
	ok         bool
}

func (d *doctorCheck) pass(label, detail string, fields ...zap.Field) {
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] %s... ✅ %s", d.num, d.total, label, detail), fields...)
	d.num++
}

func (d *doctorCheck) warn(label, detail string, fields ...zap.Field) {
	observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] %s... ⚠️  %s", d.num, d.total, label, detail), fields...)
	d.ok = false
	d.num++
}

func (d *doctorCheck) fail(label, detail string, fields ...zap.Field) {
	observability.CLILogger.Error(fmt.Sprintf("[%d/%d] %s... ❌ %s", d.num, d.total, label, detail), fields...)
	d.ok = false
	d.num++
}

func runDoctor(cmd *cobra.Command, _ []string) {
	ctx := commandContext(cmd)
	log := observability.CLILogger
	cfg := appConfig

	log.Info("=== gospool doctor ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	total := 7
	if doctorS3 {
		total += 2
	}
	d := &doctorCheck{num: 1, total: total, ok: true}

	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		d.pass("Checking Go version", goVersion, zap.String("go_version", goVersion))
	} else {
		d.warn("Checking Go version", goVersion+" (recommended: go1.23+)", zap.String("go_version", goVersion))
	}

	version := crucible.GetVersion()
	if version.Gofulmen != "" {
		d.pass("Checking Gofulmen access", "v"+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
	} else {
		d.fail("Checking Gofulmen access", "Cannot access Gofulmen")
	}

	// #nosec G301 -- data dir holds the job store and batch records
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		d.fail("Checking data directory", "Cannot create "+cfg.DataDir, zap.Error(err))
		ExitWithCode(log, foundry.ExitFileWriteError, "Cannot create data directory",
			apperrors.WrapInternal(ctx, err, "Cannot create data directory"))
	}
	d.pass("Checking data directory", cfg.DataDir, zap.String("data_dir", cfg.DataDir))

	for _, bin := range spoolBinaries(cfg) {
		path, err := exec.LookPath(bin)
		if err != nil {
			d.fail("Checking spooler command "+bin, "not found on PATH", zap.Error(err))
			continue
		}
		d.pass("Checking spooler command "+bin, path)
	}
	if cfg.Spool.Strategy == config.StrategyLog {
		if err := (pageLogHealthChecker{path: cfg.Spool.LogPath}).CheckHealth(ctx); err != nil {
			d.fail("Checking page log", cfg.Spool.LogPath, zap.Error(err))
		} else {
			d.pass("Checking page log", cfg.Spool.LogPath)
		}
	}

	eng := newEngine(cfg, log)
	defer func() { _ = eng.Close() }()
	if err := eng.loadPrinters(); err != nil {
		d.fail("Checking printer catalog", cfg.Printers.Catalog, zap.Error(err))
	} else if p, ok, _ := eng.printers.FindDefault(ctx); ok {
		d.pass("Checking printer catalog", "default printer "+p.Name)
	} else {
		d.warn("Checking printer catalog", "no active printer")
	}

	if err := eng.openJobs(ctx); err != nil {
		d.fail("Checking job store", "Cannot open store", zap.Error(err))
	} else {
		d.pass("Checking job store", cfg.Store.Path)
	}

	if doctorS3 {
		d.ok = runS3Checks(ctx, d) && d.ok
	}

	log.Info("")
	if d.ok {
		log.Info("✅ All checks passed! Your gospool installation is healthy.")
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")
}

// spoolBinaries lists the commands the configured strategy runs.
func spoolBinaries(cfg *config.Config) []string {
	if cfg.Spool.Strategy == config.StrategyPoll {
		return []string{cfg.Spool.Binary, cfg.Spool.StatusBinary}
	}
	return []string{cfg.Spool.Binary}
}

// runS3Checks checks that AWS credentials resolve.
func runS3Checks(ctx context.Context, d *doctorCheck) bool {
	log := observability.CLILogger
	log.Info("")
	log.Info("S3 Source Checks:")

	var opts []func(*awsconfig.LoadOptions) error
	if p := appConfig.Source.S3.Profile; p != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(p))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		d.fail("Checking AWS credentials", "Cannot load AWS config", zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		d.fail("Checking AWS credentials", "Cannot retrieve credentials", zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}
	d.pass("Checking AWS credentials", "Found credentials",
		zap.String("access_key", maskAccessKey(creds.AccessKeyID)),
		zap.String("source", creds.Source))

	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	d.pass("Checking credential source", source, zap.String("credential_source", source))
	return true
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func printAWSCredentialsHelp() {
	log := observability.CLILogger
	log.Info("")
	log.Info("To configure AWS credentials for s3:// sources:")
	log.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, or")
	log.Info("  2. Set source.s3.profile (GOSPOOL_S3_PROFILE) to a shared config profile, or")
	log.Info("  3. Use an IAM role when running on AWS infrastructure")
	log.Info("")
	log.Info("For S3-compatible storage (MinIO, Wasabi, etc.), also set:")
	log.Info("  - source.s3.endpoint and source.s3.force_path_style")
	log.Info("")
}
