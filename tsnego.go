package tsnego

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/tsnego/affinity"
	"github.com/hupe1980/tsnego/distance"
	"github.com/hupe1980/tsnego/gradient"
	"github.com/hupe1980/tsnego/model"
	"github.com/hupe1980/tsnego/optimizer"
	"github.com/hupe1980/tsnego/resource"
)

// Embedder runs t-SNE embeddings with a fixed configuration.
//
// An Embedder is safe for concurrent use as long as a configured affinity
// builder and searcher are; every Embed call owns its optimizer state.
type Embedder struct {
	opts options
}

// New creates an Embedder from DefaultConfig and the given options.
func New(optFns ...Option) (*Embedder, error) {
	opts := options{
		cfg:              DefaultConfig(),
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.cfg.Validate(); err != nil {
		return nil, err
	}

	if opts.resource == nil && opts.cfg.MemoryLimitBytes > 0 {
		opts.resource = resource.NewController(resource.Config{
			MemoryLimitBytes:  opts.cfg.MemoryLimitBytes,
			MaxConcurrentJobs: math.MaxInt32,
		})
	}

	return &Embedder{opts: opts}, nil
}

// Config returns the validated configuration.
func (e *Embedder) Config() Config { return e.opts.cfg }

// EmbedVectors embeds vectors under the given metric. Item IDs are the
// vector indices.
func (e *Embedder) EmbedVectors(ctx context.Context, vectors [][]float64, metric distance.Metric) (*model.Embedding, error) {
	c, err := model.FromVectors(vectors)
	if err != nil {
		return nil, structuralError(err)
	}
	q, err := distance.NewVectorQuery(c, metric)
	if err != nil {
		return nil, &ConfigError{Field: "Metric", Value: metric, cause: err}
	}
	return e.Embed(ctx, c, q)
}

// Embed embeds the items of rel using the pairwise distances of q, which
// must be defined over the offsets of rel. A nil q selects squared
// Euclidean distances over the vectors of a model.VectorRelation.
//
// Embed returns a *ConfigError for parameters or sizes that cannot be
// served, a *StructuralError for relations without a stable contiguous
// index, and the context error if ctx is cancelled.
func (e *Embedder) Embed(ctx context.Context, rel model.Relation, q distance.Query) (emb *model.Embedding, err error) {
	start := time.Now()
	cfg := e.opts.cfg
	log := e.opts.logger.WithJob(uuid.NewString())

	var (
		n            int
		interactions int64
	)
	defer func() {
		d := time.Since(start)
		e.opts.metricsCollector.RecordEmbed(n, d, err)
		log.LogEmbed(ctx, n, interactions, d, err)
	}()

	if err := model.ValidateRelation(rel); err != nil {
		return nil, structuralError(err)
	}
	n = rel.Len()
	log = log.WithSize(n).WithDimension(cfg.Dimensions)

	if q == nil {
		vr, ok := rel.(model.VectorRelation)
		if !ok {
			return nil, &ConfigError{Field: "Query", Value: nil, cause: errors.New("a distance query is required for relations without vectors")}
		}
		if q, err = distance.NewVectorQuery(vr, distance.MetricSquaredEuclidean); err != nil {
			return nil, &ConfigError{Field: "Query", Value: nil, cause: err}
		}
	}

	bytes, err := WorkingMemory(n, cfg)
	if err != nil {
		return nil, err
	}

	rc := e.opts.resource
	if err := rc.AcquireJob(ctx); err != nil {
		return nil, err
	}
	defer rc.ReleaseJob()

	if err := rc.AcquireMemory(ctx, bytes); err != nil {
		if errors.Is(err, resource.ErrMemoryLimit) {
			return nil, &ConfigError{Field: "MemoryLimitBytes", Value: rc.Config().MemoryLimitBytes, cause: err}
		}
		return nil, err
	}
	defer rc.ReleaseMemory(bytes)

	builder, err := e.affinityBuilder(log)
	if err != nil {
		return nil, err
	}

	affStart := time.Now()
	p, stats, err := builder.Build(ctx, n, q)
	if err != nil {
		if errors.Is(err, affinity.ErrInvalidPerplexity) {
			return nil, &ConfigError{Field: "Perplexity", Value: cfg.Perplexity, cause: err}
		}
		return nil, fmt.Errorf("affinity: %w", err)
	}
	affDur := time.Since(affStart)
	e.opts.metricsCollector.RecordAffinity(n, stats.NNZ, stats.Degenerate, affDur)
	log.LogAffinity(ctx, stats, affDur)

	var (
		computer gradient.Computer
		bh       *gradient.BarnesHut
	)
	switch cfg.Method {
	case MethodExact:
		computer = gradient.NewExact(cfg.workers())
	default:
		bh = gradient.NewBarnesHut(cfg.Theta, cfg.LeafCapacity, cfg.workers())
		computer = bh
	}

	progress := optimizer.ObserverFunc(func(pr optimizer.Progress) {
		if bh != nil {
			interactions += bh.Stats().Interactions
		}
		e.opts.metricsCollector.RecordIteration(pr.Iteration, pr.Z, pr.Duration)
		log.LogIteration(ctx, pr)
	})

	opt, err := optimizer.New(func(o *optimizer.Options) {
		o.Dimensions = cfg.Dimensions
		o.Iterations = cfg.Iterations
		o.LearningRate = cfg.LearningRate
		o.StepLimit = cfg.StepLimit
		o.FinalMomentum = cfg.FinalMomentum
		o.Exaggeration = cfg.EarlyExaggeration
		o.ExaggerationIterations = cfg.ExaggerationIterations
		o.Computer = computer
		o.Observer = append(optimizer.Observers{progress}, e.opts.observers...)
		o.Logger = log.Logger
	})
	if err != nil {
		return nil, &ConfigError{Field: "Optimizer", Value: cfg, cause: err}
	}

	if err := opt.SetAffinity(p); err != nil {
		if errors.Is(err, optimizer.ErrWorkingMemory) {
			return nil, &ConfigError{Field: "Dimensions", Value: cfg.Dimensions, cause: err}
		}
		return nil, err
	}
	if err := opt.Initialize(rand.New(rand.NewSource(cfg.Seed))); err != nil {
		return nil, err
	}
	if err := opt.Run(ctx); err != nil {
		return nil, err
	}

	ids := make([]model.ID, n)
	for i := range ids {
		ids[i] = rel.ID(i)
	}
	emb, err = model.NewEmbedding(ids, cfg.Dimensions, opt.Solution())
	if err != nil {
		return nil, err
	}

	if cfg.KeepOriginal {
		emb.SetOriginal(rel)
	} else if r, ok := rel.(model.Releaser); ok {
		r.Release()
	}

	return emb, nil
}

func (e *Embedder) affinityBuilder(log *Logger) (affinity.Builder, error) {
	if e.opts.builder != nil {
		return e.opts.builder, nil
	}

	cfg := e.opts.cfg
	configure := func(o *affinity.Options) {
		o.Perplexity = cfg.Perplexity
		o.Exaggeration = cfg.EarlyExaggeration
		o.Workers = cfg.workers()
		o.Transform = e.opts.transform
		o.Logger = log.Logger
	}

	var (
		b   affinity.Builder
		err error
	)
	if cfg.Method == MethodExact {
		b, err = affinity.NewPerplexityBuilder(configure)
	} else {
		b, err = affinity.NewNeighborBuilder(e.opts.searcher, configure)
	}
	if err != nil {
		return nil, &ConfigError{Field: "Perplexity", Value: cfg.Perplexity, cause: err}
	}
	return b, nil
}

// WorkingMemory estimates the bytes an Embed call with cfg needs for n
// items: the optimizer state, the solution and the affinity matrix. It
// returns a *ConfigError if the state cannot be addressed.
func WorkingMemory(n int, cfg Config) (int64, error) {
	slots, err := optimizer.WorkingMemory(n, cfg.Dimensions)
	if err != nil {
		return 0, &ConfigError{Field: "Dimensions", Value: cfg.Dimensions, cause: err}
	}

	const word = 8
	total := float64(slots+n*cfg.Dimensions) * word

	switch cfg.Method {
	case MethodExact:
		// Conditional probabilities, dense affinities and the pairwise
		// similarity buffer.
		total += 3 * float64(n) * float64(n) * word
	default:
		// Neighbor lists before and after symmetrization, column and value.
		k := math.Min(math.Ceil(3*cfg.Perplexity), float64(max(n-1, 0)))
		total += 4 * float64(n) * k * (word + word)
	}

	if total > math.MaxInt64/2 {
		return 0, &ConfigError{Field: "Size", Value: n, cause: optimizer.ErrWorkingMemory}
	}
	return int64(total), nil
}
