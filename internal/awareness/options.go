package awareness

import (
	"time"

	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/world"
)

// Options tune an Engine. The server fills them from the [awareness]
// config section and the planet table.
type Options struct {
	ChunkSide    float64       // chunk side length in meters
	MaxLoadRange float64       // hard cap on any effective load range
	TickRate     time.Duration // scheduler period used by Run
	HighWater    int           // event backlog that forces a mid-tick flush

	// ParallelReaders > 0 computes candidate sets on that many goroutines.
	// Zero keeps every refresh on the scheduler goroutine.
	ParallelReaders int
	// RefreshBatch is the number of dirty observers whose candidate sets are
	// computed together.
	RefreshBatch int

	DefaultBounds world.Bounds
	Planets       map[object.Planet]world.Bounds

	// SlowPhase logs any tick phase running longer than this. Zero disables.
	SlowPhase time.Duration
}

// DefaultOptions mirror the shipped server.toml.
func DefaultOptions() Options {
	return Options{
		ChunkSide:     512,
		MaxLoadRange:  400,
		TickRate:      50 * time.Millisecond,
		HighWater:     65536,
		RefreshBatch:  256,
		DefaultBounds: world.DefaultBounds,
	}
}

// LoadRangeLimit is the cap actually applied: the configured maximum, never
// larger than a chunk.
func (o Options) LoadRangeLimit() float64 {
	if o.MaxLoadRange <= 0 || o.MaxLoadRange > o.ChunkSide {
		return o.ChunkSide
	}
	return o.MaxLoadRange
}
