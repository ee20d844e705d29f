package tsnego

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/tsnego/affinity"
	"github.com/hupe1980/tsnego/gradient"
	"github.com/hupe1980/tsnego/optimizer"
	"github.com/hupe1980/tsnego/quadtree"
)

// Method selects how affinities and gradients are computed.
type Method int

const (
	// MethodBarnesHut uses sparse kNN affinities and tree-approximated
	// repulsion.
	MethodBarnesHut Method = iota
	// MethodExact uses dense affinities and evaluates all pairs.
	MethodExact
)

func (m Method) String() string {
	switch m {
	case MethodBarnesHut:
		return "barnes-hut"
	case MethodExact:
		return "exact"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses "barnes-hut" (or "bh") and "exact".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "barnes-hut", "barneshut", "bh":
		return MethodBarnesHut, nil
	case "exact":
		return MethodExact, nil
	default:
		return 0, fmt.Errorf("unknown method %q", s)
	}
}

// Config holds the numeric parameters of an embedding run.
type Config struct {
	// Perplexity is the target effective number of neighbors per item.
	Perplexity float64
	// Dimensions is the output dimensionality.
	Dimensions int
	// LearningRate scales every gradient step.
	LearningRate float64
	// StepLimit lowers LearningRate to StepLimit / max p_ij when their
	// product exceeds it. Small inputs have large affinities and would
	// otherwise overshoot. 0 disables the limit.
	StepLimit float64
	// FinalMomentum is the momentum after the first quarter of the run.
	// The initial momentum is derived from it.
	FinalMomentum float64
	// Iterations is the fixed number of gradient steps.
	Iterations int
	// Seed seeds the random initial embedding.
	Seed int64
	// Theta is the Barnes-Hut opening angle. 0 disables the approximation.
	Theta float64
	// LeafCapacity is the maximum number of points in a tree leaf.
	LeafCapacity int
	// KeepOriginal attaches the input relation to the result instead of
	// releasing it.
	KeepOriginal bool
	// EarlyExaggeration is the value the affinities sum to during the
	// first ExaggerationIterations iterations.
	EarlyExaggeration float64
	// ExaggerationIterations is the iteration after which exaggeration
	// is removed.
	ExaggerationIterations int
	// Method selects Barnes-Hut or exact evaluation.
	Method Method
	// Workers bounds the goroutines used per run. 0 means 1.
	Workers int
	// MemoryLimitBytes caps the working memory of concurrent runs when no
	// resource controller is configured. 0 means unbounded.
	MemoryLimitBytes int64
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{
		Perplexity:             40,
		Dimensions:             2,
		LearningRate:           200,
		StepLimit:              optimizer.DefaultStepLimit,
		FinalMomentum:          0.8,
		Iterations:             1000,
		Seed:                   0,
		Theta:                  gradient.DefaultTheta,
		LeafCapacity:           quadtree.DefaultLeafCapacity,
		EarlyExaggeration:      affinity.DefaultExaggeration,
		ExaggerationIterations: 100,
		Method:                 MethodBarnesHut,
		Workers:                1,
	}
}

// Validate checks every parameter and returns a *ConfigError for the
// first invalid one.
func (c Config) Validate() error {
	switch {
	case !(c.Perplexity > 0) || math.IsInf(c.Perplexity, 1):
		return configError("Perplexity", c.Perplexity, "must be a positive number")
	case c.Dimensions < 1:
		return configError("Dimensions", c.Dimensions, "must be at least 1")
	case !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 1):
		return configError("LearningRate", c.LearningRate, "must be a positive number")
	case !(c.StepLimit >= 0) || math.IsInf(c.StepLimit, 1):
		return configError("StepLimit", c.StepLimit, "must be a non-negative number")
	case !(c.FinalMomentum > 0 && c.FinalMomentum <= 1):
		return configError("FinalMomentum", c.FinalMomentum, "must be in (0, 1]")
	case c.Iterations < 0:
		return configError("Iterations", c.Iterations, "must not be negative")
	case !(c.Theta >= 0 && c.Theta <= 1):
		return configError("Theta", c.Theta, "must be in [0, 1]")
	case c.LeafCapacity < 1:
		return configError("LeafCapacity", c.LeafCapacity, "must be at least 1")
	case !(c.EarlyExaggeration > 0) || math.IsInf(c.EarlyExaggeration, 1):
		return configError("EarlyExaggeration", c.EarlyExaggeration, "must be a positive number")
	case c.ExaggerationIterations < 0:
		return configError("ExaggerationIterations", c.ExaggerationIterations, "must not be negative")
	case c.Method != MethodBarnesHut && c.Method != MethodExact:
		return configError("Method", c.Method, "unknown method")
	case c.Workers < 0:
		return configError("Workers", c.Workers, "must not be negative")
	case c.MemoryLimitBytes < 0:
		return configError("MemoryLimitBytes", c.MemoryLimitBytes, "must not be negative")
	}
	return nil
}

func (c Config) workers() int {
	return max(c.Workers, 1)
}
