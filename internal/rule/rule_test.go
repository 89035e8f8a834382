package rule

import (
	"math"
	"testing"

	"github.com/swgo/server/internal/object"
)

func subject(id object.ID, x float64, lr float64) *Subject {
	p := object.Position{X: x}
	return &Subject{
		ID:        id,
		Kind:      object.KindCreature,
		Planet:    object.PlanetTatooine,
		Position:  p,
		Anchor:    p,
		LoadRange: lr,
		Enabled:   true,
	}
}

func TestAwareLoadRanges(t *testing.T) {
	tests := []struct {
		name   string
		lrA    float64
		lrB    float64
		expect bool
	}{
		{"both in range", 100, 50, true},
		{"only A range covers", 100, 25, true},
		{"only B range covers", 25, 50, true},
		{"neither covers", 25, 25, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := subject(1, 0, tt.lrA)
			b := subject(2, 50, tt.lrB)
			if got := Aware(a, b); got != tt.expect {
				t.Fatalf("Aware(a,b) = %v, want %v", got, tt.expect)
			}
			if got := Aware(b, a); got != tt.expect {
				t.Fatalf("Aware(b,a) = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestAwareBoundaryIsInclusive(t *testing.T) {
	a := subject(1, 0, 50)
	b := subject(2, 50, 0)
	if !Aware(a, b) {
		t.Fatalf("distance equal to load range must be aware")
	}
}

func TestAwareFilters(t *testing.T) {
	a := subject(1, 0, 100)
	if Aware(a, a) {
		t.Fatalf("object aware of itself")
	}

	b := subject(2, 10, 100)
	b.Enabled = false
	if Aware(a, b) || Aware(b, a) {
		t.Fatalf("disabled object participates")
	}

	c := subject(3, 10, 100)
	c.Planet = object.PlanetNaboo
	if Aware(a, c) {
		t.Fatalf("different planets aware")
	}

	d := subject(4, 10, 100)
	d.Instance = object.Instance{Kind: object.InstanceNone, Number: 1}
	if Aware(a, d) {
		t.Fatalf("different instances aware")
	}
	a.Instance = d.Instance
	if !Aware(a, d) {
		t.Fatalf("matching instances should be aware")
	}

	e := subject(5, 0, 100)
	f := subject(6, 0, 100)
	e.Planet, f.Planet = object.PlanetNone, object.PlanetNone
	if Aware(e, f) {
		t.Fatalf("off-world objects aware of each other")
	}
}

func TestDistanceUsesAnchorAcrossContainers(t *testing.T) {
	cellPos := object.Position{X: 0}
	inside := &Subject{
		ID: 1, Planet: object.PlanetTatooine, Enabled: true,
		Position: object.Position{X: 30}, Anchor: cellPos,
		Parent: 9, HasParent: true, LoadRange: 100,
	}
	outside := subject(2, 50, 50)
	if d := Distance(inside, outside); d != 50 {
		t.Fatalf("distance = %v, want 50 (anchor based)", d)
	}

	sibling := &Subject{
		ID: 3, Planet: object.PlanetTatooine, Enabled: true,
		Position: object.Position{X: 34}, Anchor: cellPos,
		Parent: 9, HasParent: true,
	}
	if d := Distance(inside, sibling); d != 4 {
		t.Fatalf("distance = %v, want 4 (own positions)", d)
	}
}

func TestEffectiveLoadRange(t *testing.T) {
	if r := EffectiveLoadRange(object.KindCell, 0, 100, 400); r != 100 {
		t.Fatalf("cell inherits child range: got %v", r)
	}
	if r := EffectiveLoadRange(object.KindCreature, 10, 100, 400); r != 10 {
		t.Fatalf("creature must not inherit: got %v", r)
	}
	if r := EffectiveLoadRange(object.KindBuilding, 50, 900, 400); r != 400 {
		t.Fatalf("clamp to limit: got %v", r)
	}
	if r := Clamp(math.NaN(), 10); r != 0 {
		t.Fatalf("NaN clamps to 0: got %v", r)
	}
	if r := Clamp(-1, 10); r != 0 {
		t.Fatalf("negative clamps to 0: got %v", r)
	}
}
