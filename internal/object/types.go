package object

import (
	"fmt"
	"math"
)

// ID is the 64-bit object identifier shared by every service in the galaxy.
type ID uint64

// Kind tags the variant of an object. Kind-specific behaviour in the
// awareness engine (range inheritance) is keyed on this tag.
type Kind uint8

const (
	KindCreature Kind = iota
	KindCell
	KindBuilding
	KindStatic
	KindEphemeral // loot, projectile effects
)

func (k Kind) String() string {
	switch k {
	case KindCreature:
		return "creature"
	case KindCell:
		return "cell"
	case KindBuilding:
		return "building"
	case KindStatic:
		return "static"
	case KindEphemeral:
		return "ephemeral"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsContainer reports whether objects of this kind inherit the load range of
// their direct children.
func (k Kind) IsContainer() bool {
	return k == KindCell || k == KindBuilding
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "creature":
		return KindCreature, nil
	case "cell":
		return KindCell, nil
	case "building":
		return KindBuilding, nil
	case "static":
		return KindStatic, nil
	case "ephemeral":
		return KindEphemeral, nil
	}
	return 0, fmt.Errorf("unknown object kind %q", s)
}

// Planet names a planetary surface. The zero value means the object is not
// placed on any planet (off-world or not yet spawned).
type Planet string

const (
	PlanetNone      Planet = ""
	PlanetTatooine  Planet = "tatooine"
	PlanetNaboo     Planet = "naboo"
	PlanetCorellia  Planet = "corellia"
	PlanetTalus     Planet = "talus"
	PlanetRori      Planet = "rori"
	PlanetDantooine Planet = "dantooine"
	PlanetLok       Planet = "lok"
	PlanetDathomir  Planet = "dathomir"
	PlanetEndor     Planet = "endor"
	PlanetYavin4    Planet = "yavin4"
)

// InstanceKind is the partition family of an instance.
type InstanceKind uint8

const (
	InstanceNone InstanceKind = iota // the shared world
	InstanceBuildout
	InstancePlayerCity
	InstanceDungeon
)

// Instance identifies a logical partition of a planet. Objects in different
// instances never see each other.
type Instance struct {
	Kind   InstanceKind
	Number int32
}

// WorldInstance is the default, shared instance.
var WorldInstance = Instance{Kind: InstanceNone}

func (i Instance) IsWorld() bool { return i == WorldInstance }

func (i Instance) String() string {
	return fmt.Sprintf("%d:%d", i.Kind, i.Number)
}

// Position is a planet-local coordinate. Objects inside cells still carry
// planet-local coordinates.
type Position struct {
	X, Y, Z float64
}

func (p Position) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", p.X, p.Y, p.Z)
}

// DistanceTo returns the straight-line 3D distance between two positions.
func (p Position) DistanceTo(o Position) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	dz := p.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Finite reports whether every coordinate is a finite number.
func (p Position) Finite() bool {
	return finite(p.X) && finite(p.Y) && finite(p.Z)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
