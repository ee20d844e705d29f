package tsnego

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/tsnego/affinity"
	"github.com/hupe1980/tsnego/optimizer"
)

// DefaultProgressInterval is the minimum time between two progress lines.
const DefaultProgressInterval = time.Second

// Logger wraps slog.Logger with tsnego-specific fields and operations.
// Iteration progress is throttled; the first and last iteration of a run
// are always logged.
type Logger struct {
	*slog.Logger
	progress *rate.Limiter
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger:   slog.New(handler),
		progress: rate.NewLimiter(rate.Every(DefaultProgressInterval), 1),
	}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// SetProgressInterval changes the minimum time between progress lines.
// Zero logs every iteration.
func (l *Logger) SetProgressInterval(d time.Duration) {
	if d <= 0 {
		l.progress.SetLimit(rate.Inf)
		return
	}
	l.progress.SetLimit(rate.Every(d))
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), progress: l.progress}
}

// WithJob tags all records with a job ID.
func (l *Logger) WithJob(id string) *Logger {
	return l.with("job", id)
}

// WithSize adds the number of items.
func (l *Logger) WithSize(n int) *Logger {
	return l.with("size", n)
}

// WithDimension adds the output dimensionality.
func (l *Logger) WithDimension(dim int) *Logger {
	return l.with("dimensions", dim)
}

// LogAffinity logs a finished affinity build.
func (l *Logger) LogAffinity(ctx context.Context, stats affinity.Stats, d time.Duration) {
	l.InfoContext(ctx, "affinities built",
		"rows", stats.Rows,
		"nnz", stats.NNZ,
		"converged", stats.Converged,
		"degenerate", stats.Degenerate,
		"asymmetric", stats.Asymmetric,
		"duration", d,
	)
}

// LogIteration logs optimizer progress, at most once per progress
// interval.
func (l *Logger) LogIteration(ctx context.Context, p optimizer.Progress) {
	if p.Iteration != 0 && !p.Done() && !l.progress.Allow() {
		return
	}
	l.InfoContext(ctx, "iteration",
		"iteration", p.Iteration+1,
		"of", p.Iterations,
		"z", p.Z,
		"gradient_norm", p.GradientNorm,
		"momentum", p.Momentum,
		"exaggerated", p.Exaggerated,
	)
}

// LogEmbed logs the outcome of an embedding run. interactions is the total
// number of repulsive interactions evaluated, if known.
func (l *Logger) LogEmbed(ctx context.Context, n int, interactions int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "embedding failed",
			"size", n,
			"duration", d,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "embedding completed",
		"size", n,
		"interactions", interactions,
		"duration", d,
	)
}
