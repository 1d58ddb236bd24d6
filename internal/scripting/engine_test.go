package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cerea1/lifetime/internal/core/event"
	"github.com/cerea1/lifetime/internal/core/lifetime"
	"github.com/cerea1/lifetime/internal/data"
	"github.com/cerea1/lifetime/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap/zaptest"
)

const kinds = `
kinds:
  - name: monster
  - name: goblin
    extends: monster
    pool: true
  - name: scout
    observes: [monster]
`

func newArena(t *testing.T) *world.State {
	t.Helper()
	tbl, err := data.ParseKindTable([]byte(kinds))
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	b := lifetime.NewBuilder(log)
	tbl.Declare(b)
	reg, err := b.Build()
	require.NoError(t, err)
	s, err := world.NewState(reg, tbl, event.NewBus(), 0, log)
	require.NoError(t, err)
	return s
}

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestEngine_DrivesArena(t *testing.T) {
	arena := newArena(t)
	path := writeScript(t, t.TempDir(), "arena.lua", `
function on_tick(t)
  local id = spawn("goblin")
  if t == 2 then
    despawn(id)
  end
  if t == 3 then
    scout = spawn("scout")
    watch(scout, first)
    watched = tracked(scout)
  end
  if t == 1 then first = id end
  bad, bad_err = spawn("dragon")
  n = count("monster")
end

seen = {}
function on_transition(kind, id, transition)
  table.insert(seen, kind .. ":" .. transition)
end
`)
	e, err := NewEngine(path, arena, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	e.OnTick(arena.Advance())
	e.OnTick(arena.Advance())
	assert.Equal(t, lua.LNumber(1), e.Global("n"))
	assert.Equal(t, lua.LNil, e.Global("bad"))
	assert.Contains(t, e.Global("bad_err").String(), "unknown kind")

	e.OnTick(arena.Advance())
	assert.Equal(t, lua.LNumber(1), e.Global("watched"))
	assert.Equal(t, 2, arena.Count("monster"))

	e.OnTransition(event.Transitioned{Entity: 1, Kind: "goblin", Transition: lifetime.Destroyed})
	seen, ok := e.Global("seen").(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, "goblin:destroyed", seen.RawGetInt(1).String())
	assert.Zero(t, e.Errors())
}

func TestEngine_HookErrorsAreContained(t *testing.T) {
	arena := newArena(t)
	path := writeScript(t, t.TempDir(), "broken.lua", `
function on_tick(t) error("boom") end
`)
	e, err := NewEngine(path, arena, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	e.OnTick(1)
	e.OnTick(2)
	assert.Equal(t, 2, e.Errors())

	// missing hooks are skipped
	e.OnTransition(event.Transitioned{})
	assert.Equal(t, 2, e.Errors())
}

func TestEngine_LoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.lua", `a = 1`)
	writeScript(t, dir, "b.lua", `b = a + 1`)
	writeScript(t, dir, "notes.txt", `not lua`)

	e, err := NewEngine(dir, newArena(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, lua.LNumber(2), e.Global("b"))
}

func TestNewEngine_Rejects(t *testing.T) {
	arena := newArena(t)
	_, err := NewEngine(filepath.Join(t.TempDir(), "missing.lua"), arena, zaptest.NewLogger(t))
	assert.Error(t, err)

	path := writeScript(t, t.TempDir(), "syntax.lua", `function (`)
	_, err = NewEngine(path, arena, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "load scripts")
}

func TestEngine_ShippedScenario(t *testing.T) {
	root := filepath.Join("..", "..")
	kindsPath := filepath.Join(root, "data", "kinds.yaml")
	scriptPath := filepath.Join(root, "scripts", "arena.lua")
	if _, err := os.Stat(scriptPath); err != nil {
		t.Skip("arena.lua not found")
	}
	tbl, err := data.LoadKindTable(kindsPath)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	b := lifetime.NewBuilder(log).Strict(true)
	tbl.Declare(b)
	reg, err := b.Build()
	require.NoError(t, err)
	arena, err := world.NewState(reg, tbl, event.NewBus(), 2, log)
	require.NoError(t, err)

	e, err := NewEngine(scriptPath, arena, log)
	require.NoError(t, err)
	defer e.Close()

	for range 30 {
		e.OnTick(arena.Advance())
		arena.Cleanup()
	}
	assert.Zero(t, e.Errors())
	assert.Positive(t, arena.Count("goblin"))
	assert.Equal(t, 1, arena.Count("tower"))
}
