package tsnego

import (
	"log/slog"

	"github.com/hupe1980/tsnego/affinity"
	"github.com/hupe1980/tsnego/knn"
	"github.com/hupe1980/tsnego/optimizer"
	"github.com/hupe1980/tsnego/resource"
)

type options struct {
	cfg              Config
	builder          affinity.Builder
	transform        affinity.DistanceTransform
	searcher         knn.Searcher
	observers        optimizer.Observers
	logger           *Logger
	metricsCollector MetricsCollector
	resource         *resource.Controller
}

// Option configures an Embedder.
type Option func(*options)

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithPerplexity sets the target effective number of neighbors.
func WithPerplexity(perplexity float64) Option {
	return func(o *options) {
		o.cfg.Perplexity = perplexity
	}
}

// WithDimensions sets the output dimensionality.
func WithDimensions(dim int) Option {
	return func(o *options) {
		o.cfg.Dimensions = dim
	}
}

// WithLearningRate sets the gradient step size.
func WithLearningRate(lr float64) Option {
	return func(o *options) {
		o.cfg.LearningRate = lr
	}
}

// WithStepLimit bounds the learning rate by limit / max p_ij. 0 disables
// the bound.
func WithStepLimit(limit float64) Option {
	return func(o *options) {
		o.cfg.StepLimit = limit
	}
}

// WithFinalMomentum sets the momentum used after the first quarter of the
// iterations. The initial momentum is 0.5, or half the final momentum if
// that is below 0.6.
func WithFinalMomentum(m float64) Option {
	return func(o *options) {
		o.cfg.FinalMomentum = m
	}
}

// WithIterations sets the fixed iteration budget.
func WithIterations(n int) Option {
	return func(o *options) {
		o.cfg.Iterations = n
	}
}

// WithSeed seeds the random initial embedding.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.cfg.Seed = seed
	}
}

// WithTheta sets the Barnes-Hut opening angle. θ = 0 evaluates every pair
// through the tree and matches the exact result.
func WithTheta(theta float64) Option {
	return func(o *options) {
		o.cfg.Theta = theta
	}
}

// WithLeafCapacity sets the maximum number of points per tree leaf.
func WithLeafCapacity(capacity int) Option {
	return func(o *options) {
		o.cfg.LeafCapacity = capacity
	}
}

// WithKeepOriginal attaches the input relation to the result. By default
// relations implementing model.Releaser are released after the run.
func WithKeepOriginal(keep bool) Option {
	return func(o *options) {
		o.cfg.KeepOriginal = keep
	}
}

// WithEarlyExaggeration sets the exaggeration constant and the iteration
// after which it is removed.
func WithEarlyExaggeration(factor float64, iterations int) Option {
	return func(o *options) {
		o.cfg.EarlyExaggeration = factor
		o.cfg.ExaggerationIterations = iterations
	}
}

// WithMethod selects Barnes-Hut or exact evaluation.
func WithMethod(m Method) Option {
	return func(o *options) {
		o.cfg.Method = m
	}
}

// WithWorkers bounds the goroutines used for affinity rows, neighbor
// search and force evaluation. Results do not depend on it.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.cfg.Workers = n
	}
}

// WithAffinityBuilder replaces the method's default affinity builder.
// The builder must scale its output to the configured early exaggeration.
func WithAffinityBuilder(b affinity.Builder) Option {
	return func(o *options) {
		o.builder = b
	}
}

// WithDistanceTransform rescales each row's distances before the
// bandwidth search of the default builders, e.g.
// affinity.IntrinsicDimensionality{}.
func WithDistanceTransform(t affinity.DistanceTransform) Option {
	return func(o *options) {
		o.transform = t
	}
}

// WithSearcher sets the nearest-neighbor searcher used by the Barnes-Hut
// method. The searcher must cover the relation passed to Embed. By default
// an exact brute-force search over the distance query is used.
func WithSearcher(s knn.Searcher) Option {
	return func(o *options) {
		o.searcher = s
	}
}

// WithObserver registers an observer that is notified after every
// iteration. It may be given more than once.
func WithObserver(obs optimizer.Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs)
	}
}

// WithLogger sets the logger.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel logs human-readable text to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector.
//
// If nil is passed, metrics are not collected.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceController shares a resource controller between embedders.
// Runs reserve their working memory and a job slot from it.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithMemoryLimit caps the working memory of concurrent runs of this
// embedder. It is ignored when a resource controller is configured.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.cfg.MemoryLimitBytes = bytes
	}
}
