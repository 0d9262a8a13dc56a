package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/l1jgo/workbench/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// APIVersion is exposed to scripts as API_VERSION.
const APIVersion = 1

type luaSystem struct {
	name string
	fn   *lua.LFunction
}

// vm is one loaded Lua state and the systems its scripts declared.
type vm struct {
	L       *lua.LState
	systems []luaSystem
	files   int
}

// Engine wraps a gopher-lua VM running simulation scripts. Scripts declare
// systems with system(name, fn); fn receives dt in seconds and reaches the
// world through the global `world` table.
// Single-goroutine access only (editor loop).
type Engine struct {
	dir   string
	cur   *vm
	log   *zap.Logger
	world *ecs.World // set only while systems run
}

// NewEngine creates a Lua engine and loads every .lua file in scriptsDir.
// An empty or missing directory yields an engine with no systems.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{dir: scriptsDir, log: log}
	v, err := e.load()
	if err != nil {
		return nil, err
	}
	e.cur = v
	return e, nil
}

func (e *Engine) load() (*vm, error) {
	v := e.newVM()
	if err := e.loadDir(v, e.dir); err != nil {
		v.L.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return v, nil
}

func (e *Engine) newVM() *vm {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	v := &vm{L: L}
	L.SetGlobal("API_VERSION", lua.LNumber(APIVersion))
	L.SetGlobal("system", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		v.systems = append(v.systems, luaSystem{name: name, fn: fn})
		return 0
	}))
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		e.log.Info("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetGlobal("world", e.worldAPI(L))
	return v
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(v *vm, dir string) error {
	if dir == "" {
		return nil
	}
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
		if err := v.L.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		v.files++
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk in the current VM, typically to declare systems.
func (e *Engine) LoadString(name, src string) error {
	if err := e.cur.L.DoString(src); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

// Reload replaces the VM with a fresh one loaded from the scripts directory.
// On failure the previous VM stays active.
func (e *Engine) Reload() (files int, took time.Duration, err error) {
	start := time.Now()
	v, err := e.load()
	if err != nil {
		return 0, 0, err
	}
	old := e.cur
	e.cur = v
	old.L.Close()
	return v.files, time.Since(start), nil
}

// Systems lists declared system names in declaration order.
func (e *Engine) Systems() []string {
	out := make([]string, len(e.cur.systems))
	for i, s := range e.cur.systems {
		out[i] = s.name
	}
	return out
}

// Run calls every declared system once with dt. Script errors are logged and
// do not stop the remaining systems.
func (e *Engine) Run(w *ecs.World, dt time.Duration) {
	e.world = w
	defer func() { e.world = nil }()
	sec := lua.LNumber(dt.Seconds())
	for _, s := range e.cur.systems {
		if err := e.cur.L.CallByParam(lua.P{
			Fn:      s.fn,
			NRet:    0,
			Protect: true,
		}, sec); err != nil {
			e.log.Error("lua system error", zap.String("system", s.name), zap.Error(err))
		}
	}
}

func (e *Engine) Close() {
	e.cur.L.Close()
}
