package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/swgo/server/internal/object"
	"github.com/swgo/server/internal/world"
)

// PlanetInfo holds the terrain extent of a single planet, loaded from
// planets.yaml.
type PlanetInfo struct {
	Name        string  `yaml:"name"`
	DisplayName string  `yaml:"display_name"`
	MinX        float64 `yaml:"min_x"`
	MaxX        float64 `yaml:"max_x"`
	MinY        float64 `yaml:"min_y"`
	MaxY        float64 `yaml:"max_y"`
}

func (p PlanetInfo) Bounds() world.Bounds {
	return world.Bounds{MinX: p.MinX, MaxX: p.MaxX, MinY: p.MinY, MaxY: p.MaxY}
}

// PlanetTable provides planet lookups by name.
type PlanetTable struct {
	planets map[object.Planet]*PlanetInfo
}

type planetListFile struct {
	Planets []PlanetInfo `yaml:"planets"`
}

// LoadPlanetTable loads planet extents from YAML. Entries with an empty
// extent are skipped; a planet listed twice is an error.
func LoadPlanetTable(path string) (*PlanetTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read planet list %s: %w", path, err)
	}
	var file planetListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse planet list: %w", err)
	}

	table := &PlanetTable{
		planets: make(map[object.Planet]*PlanetInfo, len(file.Planets)),
	}
	for i := range file.Planets {
		info := file.Planets[i]
		if info.Name == "" {
			return nil, fmt.Errorf("planet list entry %d has no name", i)
		}
		if info.MaxX <= info.MinX || info.MaxY <= info.MinY {
			continue
		}
		name := object.Planet(info.Name)
		if _, dup := table.planets[name]; dup {
			return nil, fmt.Errorf("planet %q listed twice", info.Name)
		}
		table.planets[name] = &info
	}
	return table, nil
}

// Count returns the number of planets loaded.
func (t *PlanetTable) Count() int {
	return len(t.planets)
}

// Get returns a planet's info, or nil if it is not in the table.
func (t *PlanetTable) Get(name object.Planet) *PlanetInfo {
	return t.planets[name]
}

// Names returns the planet names in alphabetical order.
func (t *PlanetTable) Names() []object.Planet {
	out := make([]object.Planet, 0, len(t.planets))
	for name := range t.planets {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Bounds returns the per-planet grid bounds for the terrain map.
func (t *PlanetTable) Bounds() map[object.Planet]world.Bounds {
	out := make(map[object.Planet]world.Bounds, len(t.planets))
	for name, info := range t.planets {
		out[name] = info.Bounds()
	}
	return out
}
