package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/swgo/server/internal/object"
)

// SeedObject is one hand-placed world object from a seed file. Contents
// nest under their container and take its planet and instance unless they
// name their own.
type SeedObject struct {
	ID        uint64        `yaml:"id"`
	Kind      string        `yaml:"kind"`
	Template  string        `yaml:"template"`
	Planet    string        `yaml:"planet"`
	X         float64       `yaml:"x"`
	Y         float64       `yaml:"y"`
	Z         float64       `yaml:"z"`
	Instance  *SeedInstance `yaml:"instance"`
	LoadRange *float64      `yaml:"load_range"` // omitted: scripts decide at startup
	Awareness *bool         `yaml:"awareness"`  // omitted: enabled
	Contents  []SeedObject  `yaml:"contents"`
}

type SeedInstance struct {
	Kind   string `yaml:"kind"` // world, buildout, player_city, dungeon
	Number int32  `yaml:"number"`
}

// SeedEntry is a flattened seed object with its container resolved.
type SeedEntry struct {
	ID        object.ID
	Kind      object.Kind
	Template  string
	Planet    object.Planet
	Position  object.Position
	Instance  object.Instance
	Parent    object.ID
	HasParent bool
	LoadRange *float64
	Awareness bool
}

type seedFile struct {
	Objects []SeedObject `yaml:"objects"`
}

// LoadWorldSeed reads a seed file and flattens it, containers first.
func LoadWorldSeed(path string) ([]SeedEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world seed %s: %w", path, err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse world seed: %w", err)
	}

	var out []SeedEntry
	seen := make(map[object.ID]bool)
	var walk func(objs []SeedObject, parent *SeedEntry) error
	walk = func(objs []SeedObject, parent *SeedEntry) error {
		for _, so := range objs {
			e, err := flattenSeed(so, parent)
			if err != nil {
				return err
			}
			if seen[e.ID] {
				return fmt.Errorf("seed object %d listed twice", e.ID)
			}
			seen[e.ID] = true
			out = append(out, e)
			if err := walk(so.Contents, &e); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(file.Objects, nil); err != nil {
		return nil, err
	}
	// Stable on depth keeps containers ahead of their contents.
	depth := make(map[object.ID]int, len(out))
	for _, e := range out {
		if e.HasParent {
			depth[e.ID] = depth[e.Parent] + 1
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return depth[out[i].ID] < depth[out[j].ID] })
	return out, nil
}

func flattenSeed(so SeedObject, parent *SeedEntry) (SeedEntry, error) {
	if so.ID == 0 {
		return SeedEntry{}, fmt.Errorf("seed object has no id")
	}
	kind, err := object.ParseKind(so.Kind)
	if err != nil {
		return SeedEntry{}, fmt.Errorf("seed object %d: %w", so.ID, err)
	}
	e := SeedEntry{
		ID:        object.ID(so.ID),
		Kind:      kind,
		Template:  so.Template,
		Planet:    object.Planet(so.Planet),
		Position:  object.Position{X: so.X, Y: so.Y, Z: so.Z},
		LoadRange: so.LoadRange,
		Awareness: so.Awareness == nil || *so.Awareness,
	}
	if so.Instance != nil {
		ik, err := parseInstanceKind(so.Instance.Kind)
		if err != nil {
			return SeedEntry{}, fmt.Errorf("seed object %d: %w", so.ID, err)
		}
		e.Instance = object.Instance{Kind: ik, Number: so.Instance.Number}
	}
	if parent != nil {
		e.Parent, e.HasParent = parent.ID, true
		if e.Planet == object.PlanetNone {
			e.Planet = parent.Planet
		}
		if so.Instance == nil {
			e.Instance = parent.Instance
		}
	}
	return e, nil
}

func parseInstanceKind(s string) (object.InstanceKind, error) {
	switch s {
	case "", "world":
		return object.InstanceNone, nil
	case "buildout":
		return object.InstanceBuildout, nil
	case "player_city":
		return object.InstancePlayerCity, nil
	case "dungeon":
		return object.InstanceDungeon, nil
	}
	return 0, fmt.Errorf("unknown instance kind %q", s)
}
