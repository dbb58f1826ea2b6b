// Package cmd implements the gospool command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/gospool/internal/config"
	"github.com/3leaps/gospool/internal/observability"
)

// AppIdentity names the binary, its env prefix and its config directory.
type AppIdentity struct {
	BinaryName string
	EnvPrefix  string
	ConfigName string
}

var appIdentity = &AppIdentity{
	BinaryName: "gospool",
	EnvPrefix:  "GOSPOOL",
	ConfigName: "gospool",
}

// GetAppIdentity returns the application identity, or nil when unset.
func GetAppIdentity() *AppIdentity {
	return appIdentity
}

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "none",
	BuildDate: "unknown",
}

// SetVersionInfo is called from main with linker-provided values.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	verbose    bool
	configPath string
	logLevel   string

	// appConfig is populated by the root PersistentPreRunE.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gospool",
	Short: "Submit documents to the print spooler and track them to completion",
	Long: `gospool submits documents to the system print spooler, follows each job
until the printer reports it finished, and keeps a per-owner record of
printed pages and cost.

Sources may be local paths, doublestar globs, or s3:// objects. Several
documents can be printed together from a batch manifest.

Examples:
  gospool print report.pdf --owner alice
  gospool print --manifest batch.yaml --json
  gospool totals --format csv
  gospool serve --port 8080`,
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./gospool.yaml or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	setDefaults()
}

// setDefaults seeds the global viper instance used for flag binding.
func setDefaults() {
	config.SetDefaults(viper.GetViper(), config.DefaultDataDir())
}

func initRuntime(cmd *cobra.Command, _ []string) error {
	id := GetAppIdentity()
	if id == nil {
		return fmt.Errorf("application identity not initialised")
	}
	logger := observability.InitCLILogger(id.BinaryName, verbose)

	if configPath != "" {
		if err := os.Setenv(id.EnvPrefix+"_CONFIG", configPath); err != nil {
			return err
		}
	}
	config.SetIdentity(config.Identity{Name: id.ConfigName, EnvPrefix: id.EnvPrefix})

	cfg, err := config.Load(commandContext(cmd), overridesFromFlags())
	if err != nil {
		return err
	}
	appConfig = cfg

	if !verbose {
		level := cfg.Logging.Level
		if strings.TrimSpace(logLevel) != "" {
			level = logLevel
		}
		if err := observability.SetLevel(level); err != nil {
			return err
		}
	}
	logger.Debug("Configuration loaded",
		zap.String("data_dir", cfg.DataDir),
		zap.String("strategy", cfg.Spool.Strategy),
		zap.String("store", cfg.Store.Path))
	return nil
}

// flagOverrides collects command flags that map onto config keys. Commands
// register entries in their init.
var flagOverrides = map[string]func() (any, bool){}

func overridesFromFlags() map[string]any {
	out := map[string]any{}
	for key, get := range flagOverrides {
		if v, ok := get(); ok {
			out[key] = v
		}
	}
	return out
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
