package optimizer

import "time"

// Progress describes one finished iteration.
type Progress struct {
	// Iteration is the zero-based index of the finished iteration.
	Iteration int
	// Iterations is the total iteration budget.
	Iterations int
	// Momentum is the momentum that was applied.
	Momentum float64
	// Z is the normalizer of the low-dimensional similarities.
	Z float64
	// GradientNorm is the Euclidean norm of the full gradient.
	GradientNorm float64
	// Exaggerated reports whether exaggeration is still in effect.
	Exaggerated bool
	// Duration is the wall time of the iteration.
	Duration time.Duration
}

// Done reports whether this was the last iteration.
func (p Progress) Done() bool { return p.Iteration+1 >= p.Iterations }

// Observer is notified once per iteration.
type Observer interface {
	Observe(Progress)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Progress)

// Observe implements Observer.
func (f ObserverFunc) Observe(p Progress) { f(p) }

// Observers fans out to several observers in order.
type Observers []Observer

// Observe implements Observer.
func (obs Observers) Observe(p Progress) {
	for _, o := range obs {
		if o != nil {
			o.Observe(p)
		}
	}
}
