package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyPal/XTomate/engine/graph"
	"github.com/vyPal/XTomate/engine/plugin"
	"github.com/vyPal/XTomate/engine/workflow"
	"github.com/vyPal/XTomate/pkg/config"
	"github.com/vyPal/XTomate/pkg/logger"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// newTestRunner builds a Runner directly from an in-memory workflow,
// bypassing Load's file/version/plugin-resolution steps so tests can
// focus purely on dependency resolution, retry and hook dispatch.
func newTestRunner(t *testing.T, w *workflow.Workflow) *Runner {
	t.Helper()
	stages, err := graph.Plan(w)
	require.NoError(t, err)

	cells := make(map[string]*statusCell, len(w.Tasks))
	once := make(map[string]*sync.Once, len(w.Tasks))
	for name := range w.Tasks {
		cells[name] = &statusCell{}
		once[name] = &sync.Once{}
	}
	return &Runner{
		workflow:    w,
		cfg:         config.Default(),
		log:         logger.NewLogger(logger.TestConfig()),
		pluginHosts: map[string]*plugin.Host{},
		stages:      stages,
		cells:       cells,
		once:        once,
		results:     &resultSet{},
	}
}

func TestRunAllTwoTaskChain(t *testing.T) {
	t.Run("Should run a dependent task only after its dependency", func(t *testing.T) {
		dir := t.TempDir()
		marker := filepath.Join(dir, "order.txt")
		w := &workflow.Workflow{
			Name: "chain",
			Tasks: map[string]workflow.Task{
				"a": {Command: strPtr("echo a >> " + marker)},
				"b": {
					Command:      strPtr("echo b >> " + marker),
					Dependencies: []workflow.Dependency{{Kind: workflow.KindTask, Name: "a", Status: workflow.StatusSuccess}},
				},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Success())

		data, err := os.ReadFile(marker)
		require.NoError(t, err)
		assert.Equal(t, "a\nb\n", string(data))
	})
}

func TestRunAllDiamondDependency(t *testing.T) {
	t.Run("Should run both middle tasks before the join task", func(t *testing.T) {
		w := &workflow.Workflow{
			Name: "diamond",
			Tasks: map[string]workflow.Task{
				"a": {Command: strPtr("true")},
				"b": {Command: strPtr("true"), Dependencies: []workflow.Dependency{{Kind: workflow.KindTask, Name: "a", Status: workflow.StatusSuccess}}},
				"c": {Command: strPtr("true"), Dependencies: []workflow.Dependency{{Kind: workflow.KindTask, Name: "a", Status: workflow.StatusSuccess}}},
				"d": {Command: strPtr("true"), Dependencies: []workflow.Dependency{
					{Kind: workflow.KindTask, Name: "b", Status: workflow.StatusSuccess},
					{Kind: workflow.KindTask, Name: "c", Status: workflow.StatusSuccess},
				}},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Success())
		assert.Len(t, summary.Results, 4)
	})
}

func TestRunAllDependencyOnFailure(t *testing.T) {
	t.Run("Should run the dependent task when it explicitly requires failure", func(t *testing.T) {
		w := &workflow.Workflow{
			Name: "on-failure",
			Tasks: map[string]workflow.Task{
				"a": {Command: strPtr("false")},
				"b": {Command: strPtr("true"), Dependencies: []workflow.Dependency{{Kind: workflow.KindTask, Name: "a", Status: workflow.StatusFailure}}},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Success())
	})

	t.Run("Should fail the dependent task when the dependency succeeds but failure was required", func(t *testing.T) {
		w := &workflow.Workflow{
			Name: "on-failure-mismatch",
			Tasks: map[string]workflow.Task{
				"a": {Command: strPtr("true")},
				"b": {Command: strPtr("true"), Dependencies: []workflow.Dependency{{Kind: workflow.KindTask, Name: "a", Status: workflow.StatusFailure}}},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.False(t, summary.Success())

		var bResult *Result
		for i := range summary.Results {
			if summary.Results[i].Name == "b" {
				bResult = &summary.Results[i]
			}
		}
		require.NotNil(t, bResult)
		assert.False(t, bResult.Success)
	})

	t.Run("Should fail the dependent task when a required success dependency fails", func(t *testing.T) {
		w := &workflow.Workflow{
			Name: "dependency-not-satisfied",
			Tasks: map[string]workflow.Task{
				"a": {Command: strPtr("false")},
				"b": {Command: strPtr("true"), Dependencies: []workflow.Dependency{{Kind: workflow.KindTask, Name: "a", Status: workflow.StatusSuccess}}},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.False(t, summary.Success())
	})
}

func TestRunAllRetryUntilSuccess(t *testing.T) {
	t.Run("Should succeed once a flaky command starts passing within its retry budget", func(t *testing.T) {
		dir := t.TempDir()
		counter := filepath.Join(dir, "count")
		require.NoError(t, os.WriteFile(counter, []byte("0"), 0o644))

		script := filepath.Join(dir, "flaky.sh")
		scriptBody := `#!/bin/sh
n=$(cat "` + counter + `")
n=$((n + 1))
echo "$n" > "` + counter + `"
if [ "$n" -lt 3 ]; then
  exit 1
fi
exit 0
`
		require.NoError(t, os.WriteFile(script, []byte(scriptBody), 0o755))

		retry := 5
		w := &workflow.Workflow{
			Name: "retry",
			Tasks: map[string]workflow.Task{
				"flaky": {Command: strPtr(script), Retry: &retry},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Success())
		require.Len(t, summary.Results, 1)
		assert.Equal(t, 3, summary.Results[0].Attempts)
	})

	t.Run("Should fail after exhausting the retry budget", func(t *testing.T) {
		zero := 1
		w := &workflow.Workflow{
			Name: "always-fails",
			Tasks: map[string]workflow.Task{
				"broken": {Command: strPtr("false"), Retry: &zero},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.False(t, summary.Success())
		assert.Equal(t, 2, summary.Results[0].Attempts)
	})
}

func TestRunAllPlaceholderSubstitutionInTemplates(t *testing.T) {
	t.Run("Should resolve env placeholders in a template's command", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "out.txt")
		w := &workflow.Workflow{
			Name: "placeholders",
			Templates: []workflow.Template{
				{
					Name:    "greet",
					Command: strPtr("echo {{greeting}} {{who}} >> " + out),
					Env:     map[string]string{"greeting": "hello"},
				},
			},
			Tasks: map[string]workflow.Task{
				"greet-world": {
					Template: strPtr("greet"),
					Env:      map[string]string{"who": "world"},
				},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Success())

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "hello world\n", string(data))
	})
}

func TestRunAllPlaceholderSubstitutionFromConfig(t *testing.T) {
	t.Run("Should resolve an env value's placeholder against the task's own config", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "out.txt")
		w := &workflow.Workflow{
			Name: "placeholders-config",
			Templates: []workflow.Template{
				{
					Name:    "greet",
					Command: strPtr("echo $GREET >> " + out),
				},
			},
			Tasks: map[string]workflow.Task{
				"greet-world": {
					Template: strPtr("greet"),
					Env:      map[string]string{"GREET": "hello {{who}}"},
					Config:   map[string]any{"who": "world"},
				},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.Success())

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "hello world\n", string(data))
	})
}

func TestRunAllOnFinishRunsRegardlessOfOutcome(t *testing.T) {
	t.Run("Should run on_finish even when the task body failed", func(t *testing.T) {
		dir := t.TempDir()
		marker := filepath.Join(dir, "finish.txt")
		w := &workflow.Workflow{
			Name: "on-finish-always",
			Tasks: map[string]workflow.Task{
				"broken": {
					Command:  strPtr("false"),
					OnFinish: []workflow.Dependency{{Kind: workflow.KindTask, Name: "mark-finish", Status: workflow.StatusAny}},
				},
				"mark-finish": {Command: strPtr("echo done >> " + marker), Run: boolPtr(false)},
			},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.False(t, summary.Success())

		data, err := os.ReadFile(marker)
		require.NoError(t, err)
		assert.Equal(t, "done\n", string(data))
	})
}

func TestRunAllTaskIllFormed(t *testing.T) {
	t.Run("Should fail a task with neither command, template nor plugin set", func(t *testing.T) {
		w := &workflow.Workflow{
			Name:  "ill-formed",
			Tasks: map[string]workflow.Task{"empty": {}},
		}
		r := newTestRunner(t, w)
		summary, err := r.RunAll(context.Background())
		require.NoError(t, err)
		assert.False(t, summary.Success())
	})
}

func TestDispatchHooksUnknownKind(t *testing.T) {
	t.Run("Should abort on a hook with an unrecognized kind prefix", func(t *testing.T) {
		w := &workflow.Workflow{Name: "bad-hooks", Tasks: map[string]workflow.Task{}}
		r := newTestRunner(t, w)
		err := r.dispatchHooks(context.Background(), []workflow.Dependency{{Kind: "bogus", Name: "x"}})
		assert.Error(t, err)
	})
}
