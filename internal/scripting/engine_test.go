package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/tickcore/internal/config"
	"github.com/l1jgo/tickcore/internal/world"
)

const crewScript = `
crew = {}
assigned = {}
lanes = {}
errs = {}

function on_input(tick)
  if tick ~= 0 then return end
  for i = 1, 3 do crew[#crew + 1] = sim.create() end
  sim.emit_job(crew[1], { type = 1, priority = 5 })
  sim.emit_job(crew[1], { type = 1, priority = 3 })
  sim.send_local(crew[2], 4, crew[1])
end

function on_simulation_lane(tick, lane)
  if tick == 0 then lanes[#lanes + 1] = lane end
end

function on_post_process(tick)
  local job = sim.assign(crew[1])
  if job then
    assigned[#assigned + 1] = job.priority
    sim.complete(job, true)
  end
end

function first_assigned() return assigned[1] end
function second_assigned() return assigned[2] end
function lane_calls() return #lanes end

function inbox_type()
  local m = sim.recv_local(crew[2])
  if m and sim.index(m.sender) == sim.index(crew[1]) then return m.type end
  return 0
end

function destroy_twice()
  sim.destroy(crew[3])
  local ok, err = sim.destroy(crew[3])
  return err
end
`

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func newBoundEngine(t *testing.T, dir string) (*Engine, *world.World) {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := config.Defaults()
	cfg.Simulation.MaxEntities = 32
	cfg.Simulation.Lanes = 2
	w, err := world.New(cfg, log)
	require.NoError(t, err)

	e, err := NewEngine(dir, log)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	require.NoError(t, e.Bind(w))
	return e, w
}

func callInt(t *testing.T, e *Engine, name string) int {
	t.Helper()
	v, err := e.Call(name)
	require.NoError(t, err)
	return int(lua.LVAsNumber(v))
}

func TestEngineDrivesWorld(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "crew.lua", crewScript)
	e, w := newBoundEngine(t, dir)

	require.NoError(t, w.Step())
	assert.Equal(t, 3, w.ActiveCount())
	assert.Equal(t, 3, callInt(t, e, "first_assigned"))
	assert.Equal(t, 2, callInt(t, e, "lane_calls"))
	assert.Equal(t, 4, callInt(t, e, "inbox_type"), "local message readable after PreState")

	require.NoError(t, w.Step())
	assert.Equal(t, 5, callInt(t, e, "second_assigned"))
	assert.Equal(t, uint64(1), w.Jobs().Stats().Completed, "second completion flushes next PostProcess")

	v, err := e.Call("destroy_twice")
	require.NoError(t, err)
	assert.Equal(t, "not_found", v.String())
	assert.Equal(t, 2, w.ActiveCount())
}

func TestEngineMissingDir(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "nope"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()
	_, err = e.Call("on_input")
	assert.Error(t, err)
}

func TestEngineUnbound(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "count.lua", `function count() return sim.count() end`)
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Call("count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bound")
}

func TestEngineBadScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken.lua", `function oops(`)
	_, err := NewEngine(dir, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestEngineHookErrorDoesNotAbortTick(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "err.lua", `
ran = 0
function on_input(tick) error("boom") end
function on_finalize(tick) ran = ran + 1 end
function finalize_runs() return ran end
`)
	e, w := newBoundEngine(t, dir)
	require.NoError(t, w.Step())
	assert.Equal(t, 1, callInt(t, e, "finalize_runs"))
	assert.Equal(t, uint64(1), w.CurrentTick())
}

func TestEngineReload(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "v.lua", `
hits = 0
function on_input(tick) hits = hits + 1 end
function version() return 1 end
`)
	e, w := newBoundEngine(t, dir)
	require.NoError(t, w.Step())
	assert.Equal(t, 1, callInt(t, e, "version"))

	writeScript(t, dir, "v.lua", `
function on_finalize(tick) sim.create() end
function version() return 2 end
`)
	require.NoError(t, e.Reload())
	assert.Equal(t, 2, callInt(t, e, "version"))
	require.NoError(t, w.Step())
	assert.Equal(t, 1, w.ActiveCount(), "new hooks are bound")

	t.Run("failed reload keeps the running scripts", func(t *testing.T) {
		writeScript(t, dir, "v.lua", `function version( return 3 end`)
		assert.Error(t, e.Reload())
		assert.Equal(t, 2, callInt(t, e, "version"))
		require.NoError(t, w.Step())
		assert.Equal(t, 2, w.ActiveCount())
	})
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer w.Close()

	writeScript(t, dir, "notes.txt", "ignored")
	writeScript(t, dir, "rules.lua", "x = 1")

	select {
	case name := <-w.Events:
		assert.Equal(t, "rules.lua", filepath.Base(name))
	case <-time.After(5 * time.Second):
		t.Fatal("no event for the changed script")
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestIsScriptFile(t *testing.T) {
	assert.True(t, isScriptFile("a/b/rules.lua"))
	assert.True(t, isScriptFile("RULES.LUA"))
	assert.False(t, isScriptFile("rules.lua.swp"))
}
