package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/3leaps/gospool/internal/config"
	"github.com/3leaps/gospool/pkg/batchregistry"
	"github.com/3leaps/gospool/pkg/document"
	"github.com/3leaps/gospool/pkg/jobrecord"
	"github.com/3leaps/gospool/pkg/printer"
	"github.com/3leaps/gospool/pkg/source"
	"github.com/3leaps/gospool/pkg/spool"
)

// engine holds the collaborators shared by the commands.
type engine struct {
	cfg      *config.Config
	log      *zap.Logger
	printers *printer.MemoryRepository
	jobs     jobrecord.Repository
	resolver *source.Resolver
	counter  document.PageCounter
	conv     document.Converter
	runner   spool.Runner

	closers []func() error
}

// openJobs opens the job record store.
func (e *engine) openJobs(ctx context.Context) error {
	if e.jobs != nil {
		return nil
	}
	store, err := jobrecord.OpenStore(ctx, e.cfg.Store.JobRecord())
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	e.jobs = store
	e.closers = append(e.closers, store.Close)
	return nil
}

// loadPrinters reads the printer catalog.
func (e *engine) loadPrinters() error {
	if e.printers != nil {
		return nil
	}
	catalog, err := printer.LoadCatalog(e.cfg.Printers.Catalog)
	if err != nil {
		return fmt.Errorf("load printer catalog: %w", err)
	}
	e.printers = catalog.Repository()
	return nil
}

func newEngine(cfg *config.Config, logger *zap.Logger) *engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &engine{
		cfg:      cfg,
		log:      logger,
		resolver: source.NewResolver(filepath.Join(cfg.Source.WorkDir, "sources"), cfg.Source.S3, logger),
		counter:  document.PDFPageCounter{},
		conv:     document.ExtensionConverter{OutDir: filepath.Join(cfg.Source.WorkDir, "converted")},
		runner:   spool.ExecRunner{},
	}
}

func (e *engine) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}

func (e *engine) specDeps() spool.SpecDeps {
	deps := spool.SpecDeps{
		Counter:   e.counter,
		Converter: e.conv,
		Logger:    e.log,
	}
	if e.printers != nil {
		deps.Printers = e.printers
	}
	return deps
}

// tracker builds the completion tracker selected by spool.strategy.
func (e *engine) tracker() spool.Tracker {
	rec := spool.RepositoryRecorder{Repo: e.jobs}
	sc := e.cfg.Spool
	if sc.Strategy == config.StrategyPoll {
		return &spool.PollTracker{
			Runner:   e.runner,
			Binary:   sc.StatusBinary,
			Interval: sc.PollInterval,
			Attempts: sc.PollAttempts,
			Recorder: rec,
			Logger:   e.log,
		}
	}
	return &spool.LogTracker{
		Source:       spool.FileLogSource{Path: sc.LogPath},
		WatchTimeout: sc.WatchTimeout,
		Recorder:     rec,
		Logger:       e.log,
	}
}

func (e *engine) pool() *spool.Pool {
	invoker := spool.NewInvoker(e.runner, spool.InvokerConfig{
		Binary:     e.cfg.Spool.Binary,
		SubmitRate: e.cfg.Spool.SubmitRate,
	}, e.log)
	return spool.NewPool(spool.PoolConfig{
		MinWorkers: e.cfg.Pool.MinWorkers,
		MaxWorkers: e.cfg.Pool.MaxWorkers,
		JobTimeout: e.cfg.Pool.JobTimeout,
		KeepAlive:  e.cfg.Pool.KeepAlive,
	}, invoker, e.tracker(), e.log)
}

func (e *engine) batches() *batchregistry.Store {
	return batchregistry.NewStore(e.cfg.Batches.Root)
}
