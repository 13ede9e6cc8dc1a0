package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/scripting"
)

func TestConditionSeesWorld(t *testing.T) {
	e := scripting.NewEngine(zaptest.NewLogger(t))
	defer e.Close()
	require.NoError(t, e.LoadString(`
function crowded(w)
  return w.entities >= 3
end
function every_other(w)
  return frame % 2 == 0
end
`))

	w := ecs.NewWorld(zaptest.NewLogger(t))
	crowded, err := e.Condition("crowded")
	require.NoError(t, err)
	assert.False(t, crowded(w))
	for i := 0; i < 3; i++ {
		_, err := w.Spawn()
		require.NoError(t, err)
	}
	assert.True(t, crowded(w))

	every, err := e.Condition("every_other")
	require.NoError(t, err)
	e.SetNumber("frame", 4)
	assert.True(t, every(w))
	e.SetNumber("frame", 5)
	assert.False(t, every(w))
}

func TestConditionErrorsCountAsFalse(t *testing.T) {
	e := scripting.NewEngine(zaptest.NewLogger(t))
	defer e.Close()
	require.NoError(t, e.LoadString(`
function broken(w) error("boom") end
function chatty(w) return "yes" end
not_a_function = 3
`))
	w := ecs.NewWorld(nil)

	broken, err := e.Condition("broken")
	require.NoError(t, err)
	assert.False(t, broken(w))

	chatty, err := e.Condition("chatty")
	require.NoError(t, err)
	assert.False(t, chatty(w))

	_, err = e.Condition("not_a_function")
	assert.Error(t, err)
	_, err = e.Condition("missing")
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte("function always() return true end"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua"), 0o644))

	e := scripting.NewEngine(zaptest.NewLogger(t))
	defer e.Close()
	require.NoError(t, e.LoadDir(dir))
	require.NoError(t, e.LoadDir(filepath.Join(dir, "missing")))

	always, err := e.Condition("always")
	require.NoError(t, err)
	assert.True(t, always(ecs.NewWorld(nil)))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644))
	assert.Error(t, e.LoadDir(dir))
}
