package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gospool/internal/config"
	"github.com/3leaps/gospool/internal/observability"
	"github.com/3leaps/gospool/internal/server"
	"github.com/3leaps/gospool/internal/server/handlers"
	"github.com/3leaps/gospool/pkg/printer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only HTTP API",
	Long: `Serve printers, recorded jobs and per-owner totals over HTTP.

Endpoints:
  GET    /health, /health/live, /health/ready, /health/startup
  GET    /version
  GET    /printers
  GET    /printers/default
  GET    /printers/{id}/jobs?page=&size=
  GET    /jobs?owner=
  DELETE /jobs?owner=
  GET    /totals

Examples:
  gospool serve
  gospool serve --host 0.0.0.0 --port 9080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (default from server.host)")
	serveCmd.Flags().Int("port", 0, "Listen port (default from server.port)")

	flagOverrides["server.host"] = func() (any, bool) {
		v, _ := serveCmd.Flags().GetString("host")
		return v, serveCmd.Flags().Changed("host")
	}
	flagOverrides["server.port"] = func() (any, bool) {
		v, _ := serveCmd.Flags().GetInt("port")
		return v, serveCmd.Flags().Changed("port")
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := observability.CLILogger
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := newEngine(appConfig, log)
	defer func() { _ = eng.Close() }()
	if err := eng.loadPrinters(); err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot load printers", err)
	}
	if err := eng.openJobs(ctx); err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot open job store", err)
	}

	health := handlers.InitHealthManager(versionInfo.Version)
	id := GetAppIdentity()
	health.RegisterChecker("identity", identityHealthChecker{
		binaryName: id.BinaryName,
		envPrefix:  id.EnvPrefix,
		configName: id.ConfigName,
	})
	if db, ok := eng.jobs.(interface{ DB() *sql.DB }); ok {
		health.RegisterChecker("store", storeHealthChecker{db: db.DB()})
	}
	health.RegisterChecker("catalog", catalogHealthChecker{printers: eng.printers})
	if appConfig.Spool.Strategy == config.StrategyLog {
		health.RegisterChecker("page_log", pageLogHealthChecker{path: appConfig.Spool.LogPath})
	}

	srv := server.New(appConfig.Server.Host, appConfig.Server.Port,
		server.WithAPI(&handlers.API{Printers: eng.printers, Jobs: eng.jobs}),
		server.WithLogger(log),
		server.WithVersion(handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		}),
	)
	if err := srv.Start(ctx); err != nil {
		log.Error("Server failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}

type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case c.binaryName == "":
		return errors.New("missing binary name")
	case c.envPrefix == "":
		return errors.New("missing env prefix")
	case c.configName == "":
		return errors.New("missing config name")
	}
	return nil
}

type storeHealthChecker struct {
	db *sql.DB
}

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	if c.db == nil {
		return errors.New("job store not open")
	}
	return c.db.PingContext(ctx)
}

type catalogHealthChecker struct {
	printers printer.Repository
}

func (c catalogHealthChecker) CheckHealth(ctx context.Context) error {
	if c.printers == nil {
		return errors.New("printer catalog not loaded")
	}
	_, ok, err := c.printers.FindDefault(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no active printer")
	}
	return nil
}

type pageLogHealthChecker struct {
	path string
}

func (c pageLogHealthChecker) CheckHealth(ctx context.Context) error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("page log: %w", err)
	}
	return f.Close()
}
