package scripting

import (
	"fmt"
	"math"

	"github.com/l1jgo/workbench/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
)

// worldAPI builds the `world` table. Entities cross into Lua as their
// string form ("3v1"); components as tables keyed by field name.
func (e *Engine) worldAPI(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetFuncs(t, map[string]lua.LGFunction{
		"entities": e.luaEntities,
		"exists":   e.luaExists,
		"spawn":    e.luaSpawn,
		"destroy":  e.luaDestroy,
		"get":      e.luaGet,
		"set":      e.luaSet,
		"remove":   e.luaRemove,
		"each":     e.luaEach,
	})
	return t
}

func (e *Engine) live(L *lua.LState) *ecs.World {
	if e.world == nil {
		L.RaiseError("world is only reachable from inside a system")
	}
	return e.world
}

func checkEntity(L *lua.LState, n int) ecs.EntityID {
	id, err := ecs.ParseEntityID(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return id
}

func checkType(L *lua.LState, w *ecs.World, n int) *ecs.ComponentType {
	name := L.CheckString(n)
	ct, ok := w.Registry().Lookup(name)
	if !ok {
		L.ArgError(n, fmt.Sprintf("unknown component %q", name))
	}
	return ct
}

// world.entities() -> {id, ...}
func (e *Engine) luaEntities(L *lua.LState) int {
	w := e.live(L)
	t := L.NewTable()
	for _, id := range w.Entities() {
		t.Append(lua.LString(id.String()))
	}
	L.Push(t)
	return 1
}

// world.exists(id) -> bool
func (e *Engine) luaExists(L *lua.LState) int {
	w := e.live(L)
	L.Push(lua.LBool(w.Exists(checkEntity(L, 1))))
	return 1
}

// world.spawn([{Name = {field = value}}]) -> id
func (e *Engine) luaSpawn(L *lua.LState) int {
	w := e.live(L)
	comps := L.OptTable(1, nil)
	id := w.CreateEntity()
	if comps != nil {
		var failure error
		comps.ForEach(func(k, v lua.LValue) {
			if failure != nil {
				return
			}
			ct, ok := w.Registry().Lookup(k.String())
			if !ok {
				failure = fmt.Errorf("unknown component %q", k.String())
				return
			}
			tbl, ok := v.(*lua.LTable)
			if !ok {
				failure = fmt.Errorf("component %s: want table, got %s", ct.Name, v.Type())
				return
			}
			rec, err := tableToRecord(tbl, zeroRecord(ct.Shape))
			if err != nil {
				failure = fmt.Errorf("component %s: %w", ct.Name, err)
				return
			}
			failure = w.Insert(id, ct.ID, rec)
		})
		if failure != nil {
			w.DestroyEntity(id)
			L.RaiseError("spawn: %s", failure.Error())
		}
	}
	L.Push(lua.LString(id.String()))
	return 1
}

// world.destroy(id) queues the entity for end-of-tick cleanup.
func (e *Engine) luaDestroy(L *lua.LState) int {
	w := e.live(L)
	w.MarkForDestruction(checkEntity(L, 1))
	return 0
}

// world.get(id, "Type") -> table or nil
func (e *Engine) luaGet(L *lua.LState) int {
	w := e.live(L)
	id := checkEntity(L, 1)
	ct := checkType(L, w, 2)
	rec, err := w.Read(id, ct.ID)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(recordToTable(L, rec))
	return 1
}

// world.set(id, "Type", {field = value}) -> true | false, message
// Fields left out keep their current value; a missing component is inserted.
func (e *Engine) luaSet(L *lua.LState) int {
	w := e.live(L)
	id := checkEntity(L, 1)
	ct := checkType(L, w, 2)
	tbl := L.CheckTable(3)

	base := zeroRecord(ct.Shape)
	has := w.Has(id, ct.ID)
	if has {
		cur, err := w.Read(id, ct.ID)
		if err == nil {
			base = cur
		}
	}
	rec, err := tableToRecord(tbl, base)
	if err == nil {
		if has {
			err = w.Write(id, ct.ID, rec)
		} else {
			err = w.Insert(id, ct.ID, rec)
		}
	}
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// world.remove(id, "Type")
func (e *Engine) luaRemove(L *lua.LState) int {
	w := e.live(L)
	id := checkEntity(L, 1)
	ct := checkType(L, w, 2)
	if err := w.Remove(id, ct.ID); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// world.each("Type", fn(id, table)) visits entities holding the component in
// id order. Changes to the table are not written back; use world.set.
func (e *Engine) luaEach(L *lua.LState) int {
	w := e.live(L)
	ct := checkType(L, w, 1)
	fn := L.CheckFunction(2)
	for _, id := range w.Entities() {
		rec, err := w.Read(id, ct.ID)
		if err != nil {
			continue
		}
		L.Push(fn)
		L.Push(lua.LString(id.String()))
		L.Push(recordToTable(L, rec))
		L.Call(2, 0)
	}
	return 0
}

func zeroRecord(shape []ecs.FieldDesc) ecs.Record {
	rec := make(ecs.Record, len(shape))
	for i, d := range shape {
		rec[i] = ecs.Field{Name: d.Name, Value: ecs.Value{Kind: d.Kind}}
	}
	return rec
}

func recordToTable(L *lua.LState, rec ecs.Record) *lua.LTable {
	t := L.NewTable()
	for _, f := range rec {
		t.RawSetString(f.Name, toLua(f.Value))
	}
	return t
}

func toLua(v ecs.Value) lua.LValue {
	switch v.Kind {
	case ecs.KindBool:
		return lua.LBool(v.Bool)
	case ecs.KindInt:
		return lua.LNumber(v.Int)
	case ecs.KindFloat:
		return lua.LNumber(v.Float)
	case ecs.KindString:
		return lua.LString(v.Str)
	}
	return lua.LNil
}

// tableToRecord overlays the fields present in tbl onto base. Unknown keys
// and wrongly typed values are errors.
func tableToRecord(tbl *lua.LTable, base ecs.Record) (ecs.Record, error) {
	out := base.Clone()
	var failure error
	tbl.ForEach(func(k, lv lua.LValue) {
		if failure != nil {
			return
		}
		name := k.String()
		for i := range out {
			if out[i].Name != name {
				continue
			}
			v, err := fromLua(lv, out[i].Value.Kind)
			if err != nil {
				failure = fmt.Errorf("field %s: %w", name, err)
				return
			}
			out[i].Value = v
			return
		}
		failure = fmt.Errorf("unknown field %q", name)
	})
	return out, failure
}

func fromLua(lv lua.LValue, kind ecs.Kind) (ecs.Value, error) {
	switch kind {
	case ecs.KindBool:
		if b, ok := lv.(lua.LBool); ok {
			return ecs.BoolValue(bool(b)), nil
		}
	case ecs.KindInt:
		if n, ok := lv.(lua.LNumber); ok {
			f := float64(n)
			if f != math.Trunc(f) {
				return ecs.Value{}, fmt.Errorf("want integer, got %v", f)
			}
			// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
			if f >= math.MaxInt64 || f < math.MinInt64 {
				return ecs.Value{}, fmt.Errorf("integer %v out of range", f)
			}
			return ecs.IntValue(int64(f)), nil
		}
	case ecs.KindFloat:
		if n, ok := lv.(lua.LNumber); ok {
			return ecs.FloatValue(float64(n)), nil
		}
	case ecs.KindString:
		if s, ok := lv.(lua.LString); ok {
			return ecs.StringValue(string(s)), nil
		}
	}
	return ecs.Value{}, fmt.Errorf("want %s, got %s: %w", kind, lv.Type(), ecs.ErrTypeMismatch)
}
