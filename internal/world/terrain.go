package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/sasha-s/go-deadlock"
	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/rule"
)

// ErrOffWorld is returned when placing an object that is on no planet.
var ErrOffWorld = errors.New("object is not on a planet")

// Bounds is the planet-local rectangle covered by a planet's chunk grid.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// DefaultBounds covers the 16km square every ground terrain uses.
var DefaultBounds = Bounds{MinX: -8192, MaxX: 8192, MinY: -8192, MaxY: 8192}

// ChunkIndex addresses one chunk of one planet's grid.
type ChunkIndex struct {
	Planet object.Planet
	X, Y   int32
}

func (i ChunkIndex) String() string {
	return fmt.Sprintf("%s[%d,%d]", i.Planet, i.X, i.Y)
}

// grid is the chunk table of a single planet. Chunks are allocated on
// first use, so memory follows the populated area rather than the bounds.
type grid struct {
	planet object.Planet
	bounds Bounds
	cols   int32
	rows   int32
	chunks map[int64]*Chunk // key = y*cols + x
}

// maxGridSpan caps the columns and rows of a grid. Coordinates past the
// last column or row fall into it.
const maxGridSpan = 1 << 20

func newGrid(planet object.Planet, b Bounds, side float64) *grid {
	return &grid{
		planet: planet,
		bounds: b,
		cols:   gridSpan(b.MaxX-b.MinX, side),
		rows:   gridSpan(b.MaxY-b.MinY, side),
		chunks: make(map[int64]*Chunk),
	}
}

func gridSpan(extent, side float64) int32 {
	n := math.Ceil(extent / side)
	switch {
	case !(n >= 1):
		return 1
	case n > maxGridSpan:
		return maxGridSpan
	}
	return int32(n)
}

func toChunkCoord(v, min, side float64, n int32) int32 {
	if math.IsNaN(v) {
		v = 0
	}
	c := math.Floor((v - min) / side)
	if c < 0 {
		return 0
	}
	if c > float64(n-1) {
		return n - 1
	}
	return int32(c)
}

func (g *grid) index(p object.Position, side float64) ChunkIndex {
	return ChunkIndex{
		Planet: g.planet,
		X:      toChunkCoord(p.X, g.bounds.MinX, side, g.cols),
		Y:      toChunkCoord(p.Y, g.bounds.MinY, side, g.rows),
	}
}

func (g *grid) at(x, y int32) *Chunk {
	if x < 0 || y < 0 || x >= g.cols || y >= g.rows {
		return nil
	}
	return g.chunks[g.key(x, y)]
}

func (g *grid) ensure(x, y int32) *Chunk {
	k := g.key(x, y)
	c := g.chunks[k]
	if c == nil {
		c = NewChunk()
		g.chunks[k] = c
	}
	return c
}

func (g *grid) key(x, y int32) int64 {
	return int64(y)*int64(g.cols) + int64(x)
}

// TerrainMap routes objects to the chunk grid of their planet. Mutations
// take the map's write lock; queries hold the read lock for the whole 3x3
// neighbourhood, so a query never sees an object mid-transfer between two
// chunks.
type TerrainMap struct {
	side     float64
	defaults Bounds
	bounds   map[object.Planet]Bounds

	mu      deadlock.RWMutex
	grids   map[object.Planet]*grid
	located map[object.ID]ChunkIndex
}

// NewTerrainMap creates a map with chunks of side meters. Planets missing
// from bounds use DefaultBounds.
func NewTerrainMap(side float64, bounds map[object.Planet]Bounds) *TerrainMap {
	if side <= 0 {
		panic(fmt.Sprintf("world: chunk side must be positive, got %v", side))
	}
	b := make(map[object.Planet]Bounds, len(bounds))
	for k, v := range bounds {
		b[k] = v
	}
	return &TerrainMap{
		side:     side,
		defaults: DefaultBounds,
		bounds:   b,
		grids:    make(map[object.Planet]*grid),
		located:  make(map[object.ID]ChunkIndex),
	}
}

// SetDefaultBounds replaces the bounds used for planets without an explicit
// entry. Grids already allocated keep their bounds.
func (m *TerrainMap) SetDefaultBounds(b Bounds) {
	m.mu.Lock()
	m.defaults = b
	m.mu.Unlock()
}

// BoundsOf returns the bounds of a planet's grid.
func (m *TerrainMap) BoundsOf(p object.Planet) Bounds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.bounds[p]; ok {
		return b
	}
	return m.defaults
}

// ChunkSide returns the chunk side length in meters.
func (m *TerrainMap) ChunkSide() float64 { return m.side }

func (m *TerrainMap) gridFor(p object.Planet) *grid {
	g := m.grids[p]
	if g == nil {
		b, ok := m.bounds[p]
		if !ok {
			b = m.defaults
		}
		g = newGrid(p, b, m.side)
		m.grids[p] = g
	}
	return g
}

// IndexOf computes the chunk an object would be bucketed into.
func (m *TerrainMap) IndexOf(s *rule.Subject) ChunkIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gridFor(s.Planet).index(s.Anchor, m.side)
}

// Place adds an object to the chunk containing its anchor.
func (m *TerrainMap) Place(s *rule.Subject) error {
	if s.Planet == object.PlanetNone {
		return fmt.Errorf("place %d: %w", s.ID, ErrOffWorld)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.located[s.ID]; ok {
		return fmt.Errorf("place %d already in %s: %w", s.ID, idx, ErrDuplicateMember)
	}
	return m.placeLocked(s)
}

func (m *TerrainMap) placeLocked(s *rule.Subject) error {
	g := m.gridFor(s.Planet)
	idx := g.index(s.Anchor, m.side)
	if err := g.ensure(idx.X, idx.Y).Add(s); err != nil {
		return err
	}
	m.located[s.ID] = idx
	return nil
}

// Move re-buckets an object after its anchor or planet changed. If the
// chunk is unchanged only the snapshot is replaced. Moving an object that
// was never placed places it. It reports whether the chunk changed.
func (m *TerrainMap) Move(s *rule.Subject) (bool, error) {
	if s.Planet == object.PlanetNone {
		m.Remove(s.ID)
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.located[s.ID]
	if !ok {
		return true, m.placeLocked(s)
	}
	idx := m.gridFor(s.Planet).index(s.Anchor, m.side)
	if idx == old {
		m.chunkLocked(old).Replace(s)
		return false, nil
	}
	m.chunkLocked(old).Remove(s.ID)
	delete(m.located, s.ID)
	return true, m.placeLocked(s)
}

// Remove takes an object out of its chunk. No-op if it is not placed.
func (m *TerrainMap) Remove(id object.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.located[id]
	if !ok {
		return
	}
	if c := m.chunkLocked(idx); c != nil {
		c.Remove(id)
	}
	delete(m.located, id)
}

func (m *TerrainMap) chunkLocked(idx ChunkIndex) *Chunk {
	g := m.grids[idx.Planet]
	if g == nil {
		return nil
	}
	return g.at(idx.X, idx.Y)
}

// Locate returns the chunk currently holding an object.
func (m *TerrainMap) Locate(id object.ID) (ChunkIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.located[id]
	return idx, ok
}

// Chunk returns the chunk at idx, or nil if it was never allocated.
func (m *TerrainMap) Chunk(idx ChunkIndex) *Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunkLocked(idx)
}

// Candidates returns the members of the observer's chunk and its eight
// neighbours, excluding the observer. Neighbours outside the grid are
// skipped. The result is unordered and unfiltered.
func (m *TerrainMap) Candidates(observer *rule.Subject) []*rule.Subject {
	var out []*rule.Subject
	m.neighbourhood(observer, func(c *Chunk) {
		out = c.appendMembers(out, observer)
	})
	return out
}

// WithinAwareness returns every object in the observer's neighbourhood the
// observer is aware of.
func (m *TerrainMap) WithinAwareness(observer *rule.Subject) []*rule.Subject {
	var out []*rule.Subject
	m.neighbourhood(observer, func(c *Chunk) {
		out = c.appendAware(out, observer)
	})
	return out
}

func (m *TerrainMap) neighbourhood(observer *rule.Subject, fn func(*Chunk)) {
	if observer.Planet == object.PlanetNone {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g := m.grids[observer.Planet]
	if g == nil {
		return
	}
	center := g.index(observer.Anchor, m.side)
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			if c := g.at(center.X+dx, center.Y+dy); c != nil {
				fn(c)
			}
		}
	}
}

// EachChunk calls fn for every allocated chunk.
func (m *TerrainMap) EachChunk(fn func(ChunkIndex, *Chunk)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for p, g := range m.grids {
		for k, c := range g.chunks {
			fn(ChunkIndex{Planet: p, X: int32(k % int64(g.cols)), Y: int32(k / int64(g.cols))}, c)
		}
	}
}

// Len returns the number of placed objects.
func (m *TerrainMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.located)
}
