package awareness

import (
	"fmt"

	"github.com/swgo/server/internal/object"
)

// EventKind is the direction of an awareness transition.
type EventKind uint8

const (
	Enter EventKind = iota + 1
	Leave
)

func (k EventKind) String() string {
	switch k {
	case Enter:
		return "enter"
	case Leave:
		return "leave"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one transition: Observer started or stopped being aware of
// Target during the given tick.
type Event struct {
	Kind     EventKind
	Observer object.ID
	Target   object.ID
	Tick     uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%d,%d)@%d", e.Kind, e.Observer, e.Target, e.Tick)
}

// Pair is an ordered (observer, target) pair.
type Pair struct {
	Observer object.ID
	Target   object.ID
}
