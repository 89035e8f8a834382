package system

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner struct {
	systems []System
	sorted  bool
	log     *zap.Logger
	slow    time.Duration
}

// NewRunner creates a runner. Systems whose Update takes longer than slow
// are logged at warn level; slow <= 0 disables the check.
func NewRunner(log *zap.Logger, slow time.Duration) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		systems: make([]System, 0, 16),
		log:     log,
		slow:    slow,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		r.run(s, dt)
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			r.run(s, dt)
		}
	}
}

func (r *Runner) run(s System, dt time.Duration) {
	if r.slow <= 0 {
		s.Update(dt)
		return
	}
	start := time.Now()
	s.Update(dt)
	if el := time.Since(start); el > r.slow {
		r.log.Warn("slow system",
			zap.String("system", fmt.Sprintf("%T", s)),
			zap.Stringer("phase", s.Phase()),
			zap.Duration("elapsed", el),
		)
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
