package scripting

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/l1jgo/tickcore/internal/core/ecs"
	"github.com/l1jgo/tickcore/internal/core/job"
	"github.com/l1jgo/tickcore/internal/core/message"
	"github.com/l1jgo/tickcore/internal/world"
)

// openSim registers the entity metatable and the sim table.
func (e *Engine) openSim(vm *lua.LState) {
	mt := vm.NewTypeMetatable(entityTypeName)
	vm.SetField(mt, "__tostring", vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkEntity(L, 1).String()))
		return 1
	}))
	vm.SetField(mt, "__eq", vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(checkEntity(L, 1) == checkEntity(L, 2)))
		return 1
	}))

	sim := vm.SetFuncs(vm.NewTable(), map[string]lua.LGFunction{
		"create":          e.luaCreate,
		"destroy":         e.luaDestroy,
		"alive":           e.luaAlive,
		"index":           luaIndex,
		"tick":            e.luaTick,
		"lane":            e.luaLane,
		"count":           e.luaCount,
		"entities":        e.luaEntities,
		"emit_job":        e.luaEmitJob,
		"emit_global_job": e.luaEmitGlobalJob,
		"assign":          e.luaAssign,
		"complete":        e.luaComplete,
		"send_local":      e.luaSendLocal,
		"recv_local":      e.luaRecvLocal,
		"broadcast":       e.luaBroadcast,
		"globals":         e.luaGlobals,
	})
	vm.SetGlobal("sim", sim)
}

func checkEntity(L *lua.LState, n int) ecs.EntityID {
	ud := L.CheckUserData(n)
	id, ok := ud.Value.(ecs.EntityID)
	if !ok {
		L.ArgError(n, "entity expected")
	}
	return id
}

func optEntity(v lua.LValue) ecs.EntityID {
	if ud, ok := v.(*lua.LUserData); ok {
		if id, ok := ud.Value.(ecs.EntityID); ok {
			return id
		}
	}
	return 0
}

func entityValue(L *lua.LState, id ecs.EntityID) lua.LValue {
	ud := L.NewUserData()
	ud.Value = id
	L.SetMetatable(ud, L.GetTypeMetatable(entityTypeName))
	return ud
}

// pushResult follows the Lua convention: true on success, nil plus a
// message on failure.
func pushResult(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(errName(err)))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func errName(err error) string {
	switch {
	case errors.Is(err, ecs.ErrInvalidArg):
		return "invalid_arg"
	case errors.Is(err, ecs.ErrBounds):
		return "bounds"
	case errors.Is(err, ecs.ErrNotFound):
		return "not_found"
	case errors.Is(err, ecs.ErrOverflow):
		return "overflow"
	case errors.Is(err, ecs.ErrOutOfMemory):
		return "out_of_memory"
	}
	return err.Error()
}

func (e *Engine) luaCreate(L *lua.LState) int {
	id, err := e.w(L).CreateEntity()
	if err != nil {
		return pushResult(L, err)
	}
	L.Push(entityValue(L, id))
	return 1
}

func (e *Engine) luaDestroy(L *lua.LState) int {
	return pushResult(L, e.w(L).DestroyEntity(checkEntity(L, 1)))
}

func (e *Engine) luaAlive(L *lua.LState) int {
	L.Push(lua.LBool(e.w(L).IsAlive(checkEntity(L, 1))))
	return 1
}

func luaIndex(L *lua.LState) int {
	L.Push(lua.LNumber(checkEntity(L, 1).Index()))
	return 1
}

func (e *Engine) luaTick(L *lua.LState) int {
	L.Push(lua.LNumber(e.w(L).CurrentTick()))
	return 1
}

func (e *Engine) luaLane(L *lua.LState) int {
	L.Push(lua.LNumber(e.w(L).LaneFor(checkEntity(L, 1))))
	return 1
}

func (e *Engine) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.w(L).ActiveCount()))
	return 1
}

// luaEntities returns the live entities in ascending index order.
func (e *Engine) luaEntities(L *lua.LState) int {
	w := e.w(L)
	t := L.CreateTable(w.ActiveCount(), 0)
	for i := 0; i < w.ActiveCount(); i++ {
		id, _ := w.ActiveAt(i)
		t.Append(entityValue(L, id))
	}
	L.Push(t)
	return 1
}

func (e *Engine) jobFromTable(L *lua.LState, t *lua.LTable) job.Job {
	return job.Job{
		Type:        uint32(lInt(t, "type")),
		Priority:    int32(lInt(t, "priority")),
		Requester:   optEntity(t.RawGetString("requester")),
		Assignee:    optEntity(t.RawGetString("assignee")),
		Target:      optEntity(t.RawGetString("target")),
		TickCreated: e.w(L).CurrentTick(),
		EstTicks:    uint32(lInt(t, "est")),
	}
}

func jobToTable(L *lua.LState, j job.Job) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("type", lua.LNumber(j.Type))
	t.RawSetString("priority", lua.LNumber(j.Priority))
	t.RawSetString("requester", entityValue(L, j.Requester))
	t.RawSetString("assignee", entityValue(L, j.Assignee))
	t.RawSetString("target", entityValue(L, j.Target))
	t.RawSetString("tick", lua.LNumber(j.TickCreated))
	t.RawSetString("est", lua.LNumber(j.EstTicks))
	return t
}

func (e *Engine) luaEmitJob(L *lua.LState) int {
	id := checkEntity(L, 1)
	j := e.jobFromTable(L, L.CheckTable(2))
	return pushResult(L, e.w(L).EmitLocal(id, j))
}

func (e *Engine) luaEmitGlobalJob(L *lua.LState) int {
	j := e.jobFromTable(L, L.CheckTable(1))
	return pushResult(L, e.w(L).EmitGlobalJob(j))
}

func (e *Engine) luaAssign(L *lua.LState) int {
	j, err := e.w(L).AssignToWorker(checkEntity(L, 1))
	if err != nil {
		return pushResult(L, err)
	}
	L.Push(jobToTable(L, j))
	return 1
}

func (e *Engine) luaComplete(L *lua.LState) int {
	t := L.CheckTable(1)
	j := e.jobFromTable(L, t)
	j.TickCreated = uint64(lInt(t, "tick"))
	e.w(L).Complete(j, L.OptBool(2, true))
	return 0
}

func (e *Engine) luaSendLocal(L *lua.LState) int {
	to := checkEntity(L, 1)
	m := &message.Message{
		Type:        uint32(L.CheckInt(2)),
		Sender:      optEntity(L.Get(3)),
		Receiver:    to,
		TickCreated: e.w(L).CurrentTick(),
	}
	return pushResult(L, e.w(L).SendLocal(m))
}

func (e *Engine) luaRecvLocal(L *lua.LState) int {
	m, err := e.w(L).ReceiveLocal(checkEntity(L, 1))
	if err != nil {
		return pushResult(L, err)
	}
	L.Push(messageToTable(L, m))
	return 1
}

func (e *Engine) luaBroadcast(L *lua.LState) int {
	m := &message.Message{
		Type:        uint32(L.CheckInt(1)),
		Sender:      optEntity(L.Get(2)),
		TickCreated: e.w(L).CurrentTick(),
	}
	return pushResult(L, e.w(L).Broadcast(m))
}

func (e *Engine) luaGlobals(L *lua.LState) int {
	t := L.NewTable()
	for _, m := range e.w(L).Globals() {
		t.Append(messageToTable(L, m))
	}
	L.Push(t)
	return 1
}

func messageToTable(L *lua.LState, m message.Message) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("type", lua.LNumber(m.Type))
	t.RawSetString("sender", entityValue(L, m.Sender))
	t.RawSetString("receiver", entityValue(L, m.Receiver))
	t.RawSetString("tick", lua.LNumber(m.TickCreated))
	return t
}

func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// w returns the bound World or raises a Lua error.
func (e *Engine) w(L *lua.LState) *world.World {
	if e.world == nil {
		L.RaiseError("sim: engine is not bound to a world")
	}
	return e.world
}
