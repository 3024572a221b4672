package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

const chainDoc = `
name = "chain"
version = ">=0.1.0"

[tasks.a]
command = "echo a"

[tasks.b]
command = "echo b"
dependencies = ["a"]
`

func TestParse(t *testing.T) {
	t.Run("Should parse a minimal two-task chain document", func(t *testing.T) {
		w, err := Parse([]byte(chainDoc))
		require.NoError(t, err)
		assert.Equal(t, "chain", w.Name)
		require.Contains(t, w.Tasks, "a")
		require.Contains(t, w.Tasks, "b")
		b := w.Tasks["b"]
		require.Len(t, b.Dependencies, 1)
		assert.Equal(t, "a", b.Dependencies[0].Name)
	})

	t.Run("Should error on malformed TOML", func(t *testing.T) {
		_, err := Parse([]byte("this is not [ valid toml"))
		assert.Error(t, err)
	})
}

func TestTaskKind(t *testing.T) {
	t.Run("Should classify a command task", func(t *testing.T) {
		task := Task{Command: strPtr("echo hi")}
		assert.Equal(t, TaskKindCommand, task.Kind())
	})

	t.Run("Should classify a template task", func(t *testing.T) {
		task := Task{Template: strPtr("build")}
		assert.Equal(t, TaskKindTemplate, task.Kind())
	})

	t.Run("Should classify a plugin task", func(t *testing.T) {
		task := Task{Plugin: strPtr("notify")}
		assert.Equal(t, TaskKindPlugin, task.Kind())
	})

	t.Run("Should report ill-formed when none are set", func(t *testing.T) {
		task := Task{}
		assert.Equal(t, TaskKindIllFormed, task.Kind())
	})

	t.Run("Should report ill-formed when more than one is set", func(t *testing.T) {
		task := Task{Command: strPtr("echo hi"), Template: strPtr("build")}
		assert.Equal(t, TaskKindIllFormed, task.Kind())
	})
}

func TestTaskIsRunnable(t *testing.T) {
	t.Run("Should default to runnable when run is unset", func(t *testing.T) {
		task := Task{}
		assert.True(t, task.IsRunnable())
	})

	t.Run("Should honor an explicit false", func(t *testing.T) {
		f := false
		task := Task{Run: &f}
		assert.False(t, task.IsRunnable())
	})
}

func TestWorkflowFindTemplate(t *testing.T) {
	t.Run("Should fail fast when no templates section exists", func(t *testing.T) {
		w := &Workflow{Name: "w"}
		_, err := w.FindTemplate("anything")
		assert.Error(t, err)
	})

	t.Run("Should find a declared template by name", func(t *testing.T) {
		w := &Workflow{Templates: []Template{{Name: "build"}}}
		tpl, err := w.FindTemplate("build")
		require.NoError(t, err)
		assert.Equal(t, "build", tpl.Name)
	})

	t.Run("Should error when the template name is absent", func(t *testing.T) {
		w := &Workflow{Templates: []Template{{Name: "build"}}}
		_, err := w.FindTemplate("missing")
		assert.Error(t, err)
	})
}

func TestWorkflowCheckEngineVersion(t *testing.T) {
	t.Run("Should pass when the engine version satisfies the constraint", func(t *testing.T) {
		w := &Workflow{Version: ">=0.1.0"}
		assert.NoError(t, w.CheckEngineVersion("0.2.0"))
	})

	t.Run("Should fail when the engine version does not satisfy the constraint", func(t *testing.T) {
		w := &Workflow{Version: ">=1.0.0"}
		assert.Error(t, w.CheckEngineVersion("0.2.0"))
	})

	t.Run("Should error on an invalid constraint string", func(t *testing.T) {
		w := &Workflow{Version: "not a constraint"}
		assert.Error(t, w.CheckEngineVersion("0.2.0"))
	})
}

func TestWorkflowFindPluginRef(t *testing.T) {
	t.Run("Should find a declared plugin reference by name", func(t *testing.T) {
		w := &Workflow{Plugins: []PluginRef{{Name: "notify", Source: "github.com/org/notify"}}}
		ref, err := w.FindPluginRef("notify")
		require.NoError(t, err)
		assert.Equal(t, "github.com/org/notify", ref.Source)
	})

	t.Run("Should error when the plugin name is not referenced", func(t *testing.T) {
		w := &Workflow{}
		_, err := w.FindPluginRef("missing")
		assert.Error(t, err)
	})
}
