// Package optimizer runs the t-SNE gradient descent: momentum, per-parameter
// adaptive gains and the early exaggeration phase.
//
// An Optimizer moves through the states
//
//	Uninitialized → AffinityReady → EmbeddingInitialized → Iterating → Done
//
// via SetAffinity, Initialize (or InitializeWith) and Run. Run performs a
// fixed number of iterations; there is no convergence test.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/hupe1980/tsnego/affinity"
	"github.com/hupe1980/tsnego/gradient"
)

const (
	// MinGain is the floor of the adaptive gains.
	MinGain = 0.01

	// DefaultInitialScale is the standard deviation of the random initial embedding.
	DefaultInitialScale = 1e-4

	// DefaultStepLimit bounds LearningRate times the largest affinity.
	DefaultStepLimit = 0.25

	// AutoMomentumSwitch selects Iterations/4 as the momentum switch.
	AutoMomentumSwitch = -1

	// stateSlots is the number of values kept per item and dimension:
	// gradient, velocity and gain.
	stateSlots = 3
)

var (
	// ErrInvalidState is returned when a method is called in the wrong state.
	ErrInvalidState = errors.New("optimizer: invalid state")

	// ErrWorkingMemory is returned when the optimizer state would not fit
	// into a single addressable slice.
	ErrWorkingMemory = errors.New("optimizer: working memory exceeds the addressable limit")

	// ErrInvalidOptions is returned by New for invalid options.
	ErrInvalidOptions = errors.New("optimizer: invalid options")
)

// State is the lifecycle state of an Optimizer.
type State int

const (
	Uninitialized State = iota
	AffinityReady
	EmbeddingInitialized
	Iterating
	Done
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case AffinityReady:
		return "AffinityReady"
	case EmbeddingInitialized:
		return "EmbeddingInitialized"
	case Iterating:
		return "Iterating"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Options contains configuration options for the optimizer.
type Options struct {
	// Dimensions is the output dimensionality.
	Dimensions int

	// Iterations is the fixed number of gradient steps.
	Iterations int

	// LearningRate scales every step.
	LearningRate float64

	// StepLimit caps the learning rate at StepLimit / max p_ij, so the
	// strongest attraction cannot throw a pair past each other. Small inputs
	// have large affinities and need the cap. 0 disables it.
	StepLimit float64

	// FinalMomentum is the momentum used from MomentumSwitch on.
	FinalMomentum float64

	// InitialMomentum is used before MomentumSwitch. Zero derives it from
	// FinalMomentum: 0.5 if FinalMomentum >= 0.6, else FinalMomentum/2.
	InitialMomentum float64

	// MomentumSwitch is the first iteration using FinalMomentum.
	// AutoMomentumSwitch selects Iterations/4.
	MomentumSwitch int

	// Exaggeration is the factor the affinities were scaled with.
	Exaggeration float64

	// ExaggerationIterations is the iteration after whose update the
	// affinities are divided by Exaggeration.
	ExaggerationIterations int

	// InitialScale is the standard deviation of the random initial embedding.
	InitialScale float64

	// Computer evaluates the gradient. Nil selects Barnes-Hut with θ = 0.5.
	Computer gradient.Computer

	// Observer is notified after every iteration. May be nil.
	Observer Observer

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions contains the default optimizer configuration.
var DefaultOptions = Options{
	Dimensions:             2,
	Iterations:             1000,
	LearningRate:           200,
	StepLimit:              DefaultStepLimit,
	FinalMomentum:          0.8,
	MomentumSwitch:         AutoMomentumSwitch,
	Exaggeration:           affinity.DefaultExaggeration,
	ExaggerationIterations: 100,
	InitialScale:           DefaultInitialScale,
}

func (o *Options) validate() error {
	switch {
	case o.Dimensions < 1:
		return fmt.Errorf("%w: dimensions %d", ErrInvalidOptions, o.Dimensions)
	case o.Iterations < 0:
		return fmt.Errorf("%w: iterations %d", ErrInvalidOptions, o.Iterations)
	case !(o.LearningRate > 0):
		return fmt.Errorf("%w: learning rate %v", ErrInvalidOptions, o.LearningRate)
	case !(o.StepLimit >= 0):
		return fmt.Errorf("%w: step limit %v", ErrInvalidOptions, o.StepLimit)
	case !(o.FinalMomentum > 0 && o.FinalMomentum <= 1):
		return fmt.Errorf("%w: final momentum %v", ErrInvalidOptions, o.FinalMomentum)
	case o.InitialMomentum < 0 || o.InitialMomentum > 1:
		return fmt.Errorf("%w: initial momentum %v", ErrInvalidOptions, o.InitialMomentum)
	case !(o.Exaggeration > 0):
		return fmt.Errorf("%w: exaggeration %v", ErrInvalidOptions, o.Exaggeration)
	case o.InitialScale < 0:
		return fmt.Errorf("%w: initial scale %v", ErrInvalidOptions, o.InitialScale)
	}
	if o.InitialMomentum == 0 {
		if o.FinalMomentum >= 0.6 {
			o.InitialMomentum = 0.5
		} else {
			o.InitialMomentum = 0.5 * o.FinalMomentum
		}
	}
	if o.MomentumSwitch < 0 {
		o.MomentumSwitch = o.Iterations / 4
	}
	if o.Computer == nil {
		o.Computer = gradient.NewBarnesHut(gradient.DefaultTheta, 0, 1)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Optimizer is a single t-SNE optimization run. It is not safe for
// concurrent use.
type Optimizer struct {
	opts  Options
	state State

	p           affinity.Matrix
	exaggerated bool
	lr          float64

	sol  [][]float64
	meta []float64 // per item: [gradient | velocity | gain], each Dimensions long
	grad [][]float64

	iteration int
}

// New creates an optimizer starting from DefaultOptions.
func New(optFns ...func(o *Options)) (*Optimizer, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Optimizer{opts: opts}, nil
}

// State returns the current lifecycle state.
func (o *Optimizer) State() State { return o.state }

// Iteration returns the number of completed iterations.
func (o *Optimizer) Iteration() int { return o.iteration }

// Options returns the effective options.
func (o *Optimizer) Options() Options { return o.opts }

// Affinity returns the affinity matrix being optimized towards.
func (o *Optimizer) Affinity() affinity.Matrix { return o.p }

// LearningRate returns the learning rate in effect after SetAffinity
// applied Options.StepLimit.
func (o *Optimizer) LearningRate() float64 { return o.lr }

// Exaggerated reports whether the affinities are still exaggerated.
func (o *Optimizer) Exaggerated() bool { return o.exaggerated }

// SetAffinity attaches the affinities produced by an affinity builder,
// still scaled by Options.Exaggeration, and fixes the effective learning
// rate. It fails with ErrWorkingMemory if the optimizer state for p.Size()
// items cannot be allocated.
func (o *Optimizer) SetAffinity(p affinity.Matrix) error {
	if o.state != Uninitialized {
		return fmt.Errorf("%w: SetAffinity in state %v", ErrInvalidState, o.state)
	}
	if _, err := WorkingMemory(p.Size(), o.opts.Dimensions); err != nil {
		return err
	}
	o.p = p
	o.exaggerated = true
	o.lr = o.stepLimited(p)
	o.state = AffinityReady
	return nil
}

// Initialize draws the initial embedding from a Gaussian with standard
// deviation Options.InitialScale.
func (o *Optimizer) Initialize(rng *rand.Rand) error {
	if o.state != AffinityReady {
		return fmt.Errorf("%w: Initialize in state %v", ErrInvalidState, o.state)
	}
	n, dim := o.p.Size(), o.opts.Dimensions
	flat := make([]float64, n*dim)
	for i := range flat {
		flat[i] = rng.NormFloat64() * o.opts.InitialScale
	}
	o.sol = make([][]float64, n)
	for i := range o.sol {
		o.sol[i] = flat[i*dim : (i+1)*dim : (i+1)*dim]
	}
	o.allocate()
	return nil
}

// InitializeWith starts from a copy of the given embedding.
func (o *Optimizer) InitializeWith(sol [][]float64) error {
	if o.state != AffinityReady {
		return fmt.Errorf("%w: InitializeWith in state %v", ErrInvalidState, o.state)
	}
	n, dim := o.p.Size(), o.opts.Dimensions
	if len(sol) != n {
		return fmt.Errorf("optimizer: initial embedding has %d rows, expected %d", len(sol), n)
	}
	flat := make([]float64, n*dim)
	o.sol = make([][]float64, n)
	for i, row := range sol {
		if len(row) != dim {
			return fmt.Errorf("optimizer: initial embedding row %d has dimension %d, expected %d", i, len(row), dim)
		}
		o.sol[i] = flat[i*dim : (i+1)*dim : (i+1)*dim]
		copy(o.sol[i], row)
	}
	o.allocate()
	return nil
}

func (o *Optimizer) allocate() {
	n, dim := len(o.sol), o.opts.Dimensions
	stride := stateSlots * dim
	o.meta = make([]float64, n*stride)
	o.grad = make([][]float64, n)
	for i := 0; i < n; i++ {
		off := i * stride
		o.grad[i] = o.meta[off : off+dim : off+dim]
		gains := o.meta[off+2*dim : off+stride]
		for k := range gains {
			gains[k] = 1
		}
	}
	o.state = EmbeddingInitialized
}

// Solution returns the current embedding, one row per item. The rows alias
// the optimizer's storage.
func (o *Optimizer) Solution() [][]float64 { return o.sol }

// Run performs the remaining iterations. The context is checked before
// every iteration; a cancelled run cannot be resumed.
func (o *Optimizer) Run(ctx context.Context) error {
	if o.state != EmbeddingInitialized {
		return fmt.Errorf("%w: Run in state %v", ErrInvalidState, o.state)
	}
	o.state = Iterating
	o.opts.Logger.DebugContext(ctx, "optimization started",
		"size", len(o.sol),
		"dimensions", o.opts.Dimensions,
		"iterations", o.opts.Iterations,
	)

	for o.iteration < o.opts.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := o.iteration
		start := time.Now()

		z, err := o.opts.Computer.Compute(ctx, o.p, o.sol, o.grad)
		if err != nil {
			return fmt.Errorf("optimizer: iteration %d: %w", it, err)
		}
		mom := o.momentum(it)
		norm := o.update(mom)

		if it == o.opts.ExaggerationIterations && o.exaggerated {
			o.p.Divide(o.opts.Exaggeration)
			o.exaggerated = false
			o.opts.Logger.DebugContext(ctx, "early exaggeration removed", "iteration", it)
		}

		o.iteration++
		if o.opts.Observer != nil {
			o.opts.Observer.Observe(Progress{
				Iteration:    it,
				Iterations:   o.opts.Iterations,
				Momentum:     mom,
				Z:            z,
				GradientNorm: norm,
				Exaggerated:  o.exaggerated,
				Duration:     time.Since(start),
			})
		}
	}

	o.state = Done
	return nil
}

func (o *Optimizer) stepLimited(p affinity.Matrix) float64 {
	lr := o.opts.LearningRate
	if o.opts.StepLimit == 0 || math.IsInf(o.opts.StepLimit, 1) {
		return lr
	}
	var pmax float64
	for i := range p.Size() {
		for _, v := range p.Row(i) {
			pmax = max(pmax, v)
		}
	}
	if pmax > 0 && lr*pmax > o.opts.StepLimit {
		lr = o.opts.StepLimit / pmax
		o.opts.Logger.Debug("learning rate limited",
			"requested", o.opts.LearningRate,
			"effective", lr,
			"max_affinity", pmax,
		)
	}
	return lr
}

func (o *Optimizer) momentum(it int) float64 {
	if it < o.opts.MomentumSwitch && o.opts.InitialMomentum < o.opts.FinalMomentum {
		return o.opts.InitialMomentum
	}
	return o.opts.FinalMomentum
}

// update applies one momentum step with adaptive gains and returns the
// Euclidean norm of the gradient.
func (o *Optimizer) update(mom float64) float64 {
	dim := o.opts.Dimensions
	stride := stateSlots * dim
	lr := o.lr
	var norm float64
	for i, y := range o.sol {
		m := o.meta[i*stride : (i+1)*stride : (i+1)*stride]
		for k := 0; k < dim; k++ {
			g, v, gk := k, k+dim, k+2*dim
			if (m[g] > 0) != (m[v] > 0) {
				m[gk] += 0.2
			} else {
				m[gk] *= 0.8
			}
			m[gk] = max(m[gk], MinGain)
			m[v] = m[v]*mom - lr*m[g]*m[gk]
			y[k] += m[v]
			norm += m[g] * m[g]
		}
	}
	return math.Sqrt(norm)
}

// WorkingMemory returns the number of float64 state slots (gradient,
// velocity, gain) needed for n items of dimension dim. It returns
// ErrWorkingMemory if the count overflows the largest addressable slice.
func WorkingMemory(n, dim int) (int, error) {
	if n < 0 || dim < 0 {
		return 0, fmt.Errorf("optimizer: negative size %d×%d", n, dim)
	}
	if n == 0 || dim == 0 {
		return 0, nil
	}
	const maxSlots = math.MaxInt / 8
	if dim > maxSlots/stateSlots || n > maxSlots/(stateSlots*dim) {
		return 0, fmt.Errorf("%w: %d items × %d dimensions × %d slots", ErrWorkingMemory, n, dim, stateSlots)
	}
	return n * stateSlots * dim, nil
}
