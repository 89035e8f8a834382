package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/swgo/server/internal/object"
)

// Engine wraps a single gopher-lua VM for server-side tuning scripts.
// Single-goroutine access only.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Core scripts first, then optional overrides
	for _, sub := range []string{"core", "world"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadRangeContext describes an object whose stored load range is missing.
type LoadRangeContext struct {
	ID       object.ID
	Kind     object.Kind
	Template string
	Planet   object.Planet
	Instance object.Instance
}

// FallbackLoadRange is used when no script provides default_load_range or
// the script fails.
func FallbackLoadRange(kind object.Kind) float64 {
	switch kind {
	case object.KindCreature:
		return 200
	case object.KindBuilding:
		return 400
	case object.KindStatic:
		return 150
	case object.KindEphemeral:
		return 50
	default: // cells inherit from their occupants
		return 0
	}
}

// DefaultLoadRange calls the Lua default_load_range function.
func (e *Engine) DefaultLoadRange(ctx LoadRangeContext) float64 {
	fallback := FallbackLoadRange(ctx.Kind)
	fn := e.vm.GetGlobal("default_load_range")
	if fn == lua.LNil {
		return fallback
	}

	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(ctx.ID))
	t.RawSetString("kind", lua.LString(ctx.Kind.String()))
	t.RawSetString("template", lua.LString(ctx.Template))
	t.RawSetString("planet", lua.LString(ctx.Planet))
	t.RawSetString("instance_kind", lua.LNumber(ctx.Instance.Kind))
	t.RawSetString("instance_number", lua.LNumber(ctx.Instance.Number))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua default_load_range error", zap.Uint64("id", uint64(ctx.ID)), zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok || n < 0 {
		e.log.Error("lua default_load_range returned a bad value",
			zap.Uint64("id", uint64(ctx.ID)),
			zap.String("value", result.String()),
		)
		return fallback
	}
	return float64(n)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
