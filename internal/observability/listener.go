package observability

import (
	"go.uber.org/zap"

	"github.com/3leaps/gospool/pkg/spool"
)

// LoggingListener logs job lifecycle events.
type LoggingListener struct {
	Logger *zap.Logger
}

// NewLoggingListener returns a listener writing to logger, or CLILogger when
// logger is nil.
func NewLoggingListener(logger *zap.Logger) *LoggingListener {
	if logger == nil {
		logger = CLILogger
	}
	return &LoggingListener{Logger: logger}
}

func (l *LoggingListener) jobLogger(job *spool.JobSpec) *zap.Logger {
	if job == nil {
		return l.Logger
	}
	fields := []zap.Field{zap.String("job", job.Name())}
	if owner := job.Owner(); owner != "" {
		fields = append(fields, zap.String("owner", owner))
	}
	if p, ok := job.Printer(); ok {
		fields = append(fields, zap.String("printer", p.Name))
	}
	return l.Logger.With(fields...)
}

func (l *LoggingListener) OnSubmitted(job *spool.JobSpec) {
	log := l.jobLogger(job)
	if n := job.PrintedPages(); n.Known {
		log = log.With(zap.Int("pages", n.N))
	}
	log.Info("Job submitted")
}

func (l *LoggingListener) OnProgress(job *spool.JobSpec, pagesPrinted int) {
	l.jobLogger(job).Debug("Job progress", zap.Int("pages_printed", pagesPrinted))
}

func (l *LoggingListener) OnCompleted(job *spool.JobSpec, result *spool.Result) {
	fields := []zap.Field{
		zap.String("spool_id", result.SpoolID()),
		zap.Int("pages_printed", result.PagesPrinted()),
	}
	if cost, ok := job.Cost(); ok {
		fields = append(fields, zap.Float64("cost", cost))
	}
	l.jobLogger(job).Info("Job completed", fields...)
}

func (l *LoggingListener) OnError(result *spool.Result) {
	fields := []zap.Field{
		zap.String("error_type", result.ErrorType().String()),
		zap.String("user_error", result.ErrorType().UserMessage()),
	}
	if id := result.SpoolID(); id != "" {
		fields = append(fields, zap.String("spool_id", id))
	}
	if err := result.Err(); err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.jobLogger(result.Spec()).Warn("Job failed", fields...)
}
