package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/swgo/server/internal/object"
)

func writeScript(t *testing.T, dir, sub, name, body string) {
	t.Helper()
	p := filepath.Join(dir, sub)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestShippedLoadRangeScript(t *testing.T) {
	e, err := NewEngine(filepath.Join("..", "..", "scripts"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()

	tests := []struct {
		name string
		ctx  LoadRangeContext
		want float64
	}{
		{"creature", LoadRangeContext{ID: 1, Kind: object.KindCreature}, 200},
		{"cell", LoadRangeContext{ID: 2, Kind: object.KindCell}, 0},
		{"template override", LoadRangeContext{ID: 3, Kind: object.KindEphemeral, Template: "object/tangible/loot/shared_loot_crate.iff"}, 32},
		{"dungeon halves", LoadRangeContext{ID: 4, Kind: object.KindCreature, Instance: object.Instance{Kind: object.InstanceDungeon, Number: 2}}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.DefaultLoadRange(tt.ctx); got != tt.want {
				t.Fatalf("DefaultLoadRange = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultLoadRangeFallbacks(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if got := e.DefaultLoadRange(LoadRangeContext{Kind: object.KindStatic}); got != FallbackLoadRange(object.KindStatic) {
		t.Fatalf("missing function: got %v", got)
	}
	e.Close()

	writeScript(t, dir, "core", "bad.lua", `
function default_load_range(obj)
    if obj.kind == "creature" then
        error("boom")
    end
    if obj.kind == "static" then
        return "far"
    end
    return -5
end
`)
	e, err = NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()
	for _, kind := range []object.Kind{object.KindCreature, object.KindStatic, object.KindBuilding} {
		if got := e.DefaultLoadRange(LoadRangeContext{Kind: kind}); got != FallbackLoadRange(kind) {
			t.Fatalf("%s: got %v, want fallback %v", kind, got, FallbackLoadRange(kind))
		}
	}
}

func TestWorldScriptsOverrideCore(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "core", "a.lua", `function default_load_range(obj) return 10 end`)
	writeScript(t, dir, "world", "b.lua", `function default_load_range(obj) return 20 end`)
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()
	if got := e.DefaultLoadRange(LoadRangeContext{Kind: object.KindCreature}); got != 20 {
		t.Fatalf("got %v, want 20", got)
	}
}

func TestBrokenScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "core", "broken.lua", `function (`)
	if _, err := NewEngine(dir, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("syntax error accepted")
	}
}
