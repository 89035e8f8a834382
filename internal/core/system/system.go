package system

import (
	"fmt"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: apply queued registrations and notifications
	PhaseRefresh              // 1: recompute dirty awareness sets
	PhaseOutput               // 2: deliver enter/leave events to the sink
	PhaseCleanup              // 3: settle per-object state for the next tick
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseRefresh:
		return "refresh"
	case PhaseOutput:
		return "output"
	case PhaseCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
