package optimizer

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tsnego/affinity"
)

// constantGradient writes the same gradient for every item.
type constantGradient struct {
	g     []float64
	calls int
}

func (c *constantGradient) Compute(_ context.Context, _ affinity.Matrix, _, grad [][]float64) (float64, error) {
	c.calls++
	for _, row := range grad {
		copy(row, c.g)
	}
	return 1, nil
}

func pairAffinity() *affinity.Dense {
	m := affinity.NewDense(4)
	m.Set(0, 1, 1)
	m.Set(2, 3, 1)
	m.Set(0, 2, 0.25)
	m.Set(1, 3, 0.5)
	m.Scale(affinity.DefaultExaggeration / m.Sum())
	return m
}

func TestStateMachine(t *testing.T) {
	o, err := New(func(o *Options) { o.Iterations = 2 })
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, o.State())

	assert.ErrorIs(t, o.Initialize(rand.New(rand.NewSource(1))), ErrInvalidState)
	assert.ErrorIs(t, o.Run(context.Background()), ErrInvalidState)

	require.NoError(t, o.SetAffinity(pairAffinity()))
	assert.Equal(t, AffinityReady, o.State())
	assert.ErrorIs(t, o.SetAffinity(pairAffinity()), ErrInvalidState)

	require.NoError(t, o.Initialize(rand.New(rand.NewSource(1))))
	assert.Equal(t, EmbeddingInitialized, o.State())
	assert.ErrorIs(t, o.InitializeWith(nil), ErrInvalidState)

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, Done, o.State())
	assert.Equal(t, 2, o.Iteration())
	assert.ErrorIs(t, o.Run(context.Background()), ErrInvalidState)
	assert.Equal(t, "Iterating", Iterating.String())
}

func TestUpdateRule(t *testing.T) {
	grad := &constantGradient{g: []float64{1, -2}}
	var progress []Progress
	o, err := New(func(o *Options) {
		o.Iterations = 3
		o.LearningRate = 10
		o.StepLimit = 0
		o.FinalMomentum = 0.8
		o.MomentumSwitch = 1
		o.Computer = grad
		o.Observer = ObserverFunc(func(p Progress) { progress = append(progress, p) })
	})
	require.NoError(t, err)
	require.NoError(t, o.SetAffinity(pairAffinity()))
	require.NoError(t, o.InitializeWith([][]float64{{0, 0}, {1, 1}, {2, 2}, {3, 3}}))
	require.NoError(t, o.Run(context.Background()))
	require.Len(t, progress, 3)
	assert.Equal(t, 3, grad.calls)

	// Replay the update for one coordinate per axis.
	y := []float64{0, 0}
	vel := []float64{0, 0}
	gain := []float64{1, 1}
	g := []float64{1, -2}
	for it, mom := range []float64{0.5, 0.8, 0.8} {
		assert.Equal(t, mom, progress[it].Momentum)
		for k := range y {
			if (g[k] > 0) != (vel[k] > 0) {
				gain[k] += 0.2
			} else {
				gain[k] *= 0.8
			}
			gain[k] = math.Max(gain[k], MinGain)
			vel[k] = vel[k]*mom - 10*g[k]*gain[k]
			y[k] += vel[k]
		}
	}
	assert.Equal(t, y, o.Solution()[0])
	assert.InDelta(t, math.Sqrt(4*5), progress[0].GradientNorm, 1e-12)
	assert.True(t, progress[2].Done())
}

func TestStepLimit(t *testing.T) {
	tests := []struct {
		name  string
		lr    float64
		limit float64
		want  float64
	}{
		// pairAffinity peaks at 4/5.5 on the (0,1) and (2,3) pairs.
		{"Capped", 200, DefaultStepLimit, DefaultStepLimit * 5.5 / 4},
		{"BelowLimit", 0.1, DefaultStepLimit, 0.1},
		{"Disabled", 200, 0, 200},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o, err := New(func(o *Options) {
				o.LearningRate = tc.lr
				o.StepLimit = tc.limit
			})
			require.NoError(t, err)
			require.NoError(t, o.SetAffinity(pairAffinity()))
			assert.InDelta(t, tc.want, o.LearningRate(), 1e-12)
		})
	}
}

func TestStepLimitAppliesToUpdate(t *testing.T) {
	o, err := New(func(o *Options) {
		o.Iterations = 1
		o.LearningRate = 200
		o.Computer = &constantGradient{g: []float64{1, 0}}
	})
	require.NoError(t, err)
	require.NoError(t, o.SetAffinity(pairAffinity()))
	require.NoError(t, o.InitializeWith([][]float64{{0, 0}, {1, 1}, {2, 2}, {3, 3}}))
	require.NoError(t, o.Run(context.Background()))

	// First step from zero velocity: gain 1.2, so y moves by -lr·1.2.
	assert.InDelta(t, -o.LearningRate()*1.2, o.Solution()[0][0], 1e-12)
	assert.Less(t, o.LearningRate(), 1.0)
}

func TestGains(t *testing.T) {
	gains := func(g []float64) []float64 {
		o, err := New(func(o *Options) {
			o.Iterations = 60
			o.Computer = &constantGradient{g: g}
		})
		require.NoError(t, err)
		require.NoError(t, o.SetAffinity(pairAffinity()))
		require.NoError(t, o.Initialize(rand.New(rand.NewSource(2))))
		require.NoError(t, o.Run(context.Background()))
		dim := o.Options().Dimensions
		return o.meta[2*dim : 3*dim]
	}

	// Without a gradient the gain decays to its floor.
	for _, g := range gains([]float64{0, 0}) {
		assert.Equal(t, MinGain, g)
	}
	// A gradient pointing against the velocity grows the gain by 0.2 per step
	// after the first iteration, which starts from zero velocity.
	for _, g := range gains([]float64{-1, -1}) {
		assert.InDelta(t, 0.8+59*0.2, g, 1e-9)
	}
}

func TestExaggerationRemovedExactlyOnce(t *testing.T) {
	p := pairAffinity()
	before := make(map[[2]int]float64)
	for i := 0; i < 4; i++ {
		for j, v := range p.Row(i) {
			before[[2]int{i, j}] = v
		}
	}

	var flags []bool
	o, err := New(func(o *Options) {
		o.Iterations = 12
		o.ExaggerationIterations = 5
		o.Computer = &constantGradient{g: []float64{0, 0}}
		o.Observer = ObserverFunc(func(p Progress) { flags = append(flags, p.Exaggerated) })
	})
	require.NoError(t, err)
	require.NoError(t, o.SetAffinity(p))
	assert.True(t, o.Exaggerated())
	require.NoError(t, o.Initialize(rand.New(rand.NewSource(3))))
	require.NoError(t, o.Run(context.Background()))

	assert.False(t, o.Exaggerated())
	for it, ex := range flags {
		assert.Equal(t, it < 5, ex, "iteration %d", it)
	}
	for k, v := range before {
		assert.Equal(t, v/affinity.DefaultExaggeration, p.Get(k[0], k[1]))
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o, err := New(func(o *Options) {
		o.Iterations = 100
		o.Computer = &constantGradient{g: []float64{0, 0}}
		o.Observer = ObserverFunc(func(p Progress) {
			if p.Iteration == 4 {
				cancel()
			}
		})
	})
	require.NoError(t, err)
	require.NoError(t, o.SetAffinity(pairAffinity()))
	require.NoError(t, o.Initialize(rand.New(rand.NewSource(4))))

	assert.ErrorIs(t, o.Run(ctx), context.Canceled)
	assert.Equal(t, 5, o.Iteration())
	assert.Equal(t, Iterating, o.State())
}

func TestDeterminism(t *testing.T) {
	run := func() [][]float64 {
		o, err := New(func(o *Options) { o.Iterations = 50 })
		require.NoError(t, err)
		require.NoError(t, o.SetAffinity(pairAffinity()))
		require.NoError(t, o.Initialize(rand.New(rand.NewSource(42))))
		require.NoError(t, o.Run(context.Background()))
		return o.Solution()
	}
	assert.Equal(t, run(), run())
}

func TestZeroIterations(t *testing.T) {
	o, err := New(func(o *Options) { o.Iterations = 0 })
	require.NoError(t, err)
	require.NoError(t, o.SetAffinity(pairAffinity()))
	require.NoError(t, o.InitializeWith([][]float64{{1, 0}, {0, 1}, {1, 1}, {0, 0}}))
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, Done, o.State())
	assert.Equal(t, []float64{1, 0}, o.Solution()[0])
	assert.True(t, o.Exaggerated())
}

func TestInitializeWithErrors(t *testing.T) {
	o, err := New()
	require.NoError(t, err)
	require.NoError(t, o.SetAffinity(pairAffinity()))
	assert.Error(t, o.InitializeWith([][]float64{{0, 0}}))
	assert.Error(t, o.InitializeWith([][]float64{{0}, {0}, {0}, {0}}))
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func(o *Options)
	}{
		{"dimensions", func(o *Options) { o.Dimensions = 0 }},
		{"iterations", func(o *Options) { o.Iterations = -1 }},
		{"learning rate", func(o *Options) { o.LearningRate = 0 }},
		{"final momentum", func(o *Options) { o.FinalMomentum = 1.5 }},
		{"nan momentum", func(o *Options) { o.FinalMomentum = math.NaN() }},
		{"exaggeration", func(o *Options) { o.Exaggeration = 0 }},
		{"step limit", func(o *Options) { o.StepLimit = -1 }},
		{"nan step limit", func(o *Options) { o.StepLimit = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fn)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestDerivedMomentum(t *testing.T) {
	o, err := New(func(o *Options) { o.FinalMomentum = 0.4; o.Iterations = 400 })
	require.NoError(t, err)
	assert.InDelta(t, 0.2, o.Options().InitialMomentum, 1e-15)
	assert.Equal(t, 100, o.Options().MomentumSwitch)

	o, err = New()
	require.NoError(t, err)
	assert.Equal(t, 0.5, o.Options().InitialMomentum)
}

func TestWorkingMemory(t *testing.T) {
	slots, err := WorkingMemory(1000, 2)
	require.NoError(t, err)
	assert.Equal(t, 6000, slots)

	_, err = WorkingMemory(math.MaxInt/4, 2)
	assert.ErrorIs(t, err, ErrWorkingMemory)
	_, err = WorkingMemory(2, math.MaxInt)
	assert.ErrorIs(t, err, ErrWorkingMemory)
	_, err = WorkingMemory(-1, 2)
	assert.Error(t, err)
}

func TestSetAffinityRejectsOversizedState(t *testing.T) {
	o, err := New(func(o *Options) { o.Dimensions = math.MaxInt / 16 })
	require.NoError(t, err)
	assert.ErrorIs(t, o.SetAffinity(pairAffinity()), ErrWorkingMemory)
	assert.Equal(t, Uninitialized, o.State())
}
