// Package runner implements the Runner: it loads a workflow, verifies
// engine-version compatibility, resolves and initializes its plugins,
// plans execution stages, and drives concurrent stage-by-stage execution
// with lazy, memoized dependency resolution and per-task retry (spec.md
// §4.6). Grounded on compozy-compozy/engine/domain/workflow/executor's
// prepare/execute/result split (executor.go), generalized from that
// teacher's sequential OnSuccess/OnError transition walk to true
// concurrent DAG-stage fan-out, since spec.md §4.3/§4.6 requires tasks
// within a stage to run concurrently rather than one at a time.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dario.cat/mergo"

	"github.com/vyPal/XTomate/engine/core"
	"github.com/vyPal/XTomate/engine/graph"
	"github.com/vyPal/XTomate/engine/placeholder"
	"github.com/vyPal/XTomate/engine/plugin"
	"github.com/vyPal/XTomate/engine/workflow"
	"github.com/vyPal/XTomate/pkg/config"
	"github.com/vyPal/XTomate/pkg/logger"
)

// Runner drives one workflow's execution from load through teardown.
type Runner struct {
	workflow *workflow.Workflow
	cfg      *config.EngineConfig
	log      logger.Logger

	pluginMgr   *plugin.Manager
	pluginHosts map[string]*plugin.Host

	stages  [][]string
	cells   map[string]*statusCell
	once    map[string]*sync.Once
	onceMu  sync.Mutex
	results *resultSet
}

// Load parses the workflow at path, checks it against the running
// engine's version, resolves its plugins, and plans its execution
// stages. The returned Runner is ready for RunAll.
func Load(ctx context.Context, path string, cfg *config.EngineConfig, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.FromContext(nil)
	}

	w, err := workflow.Load(path)
	if err != nil {
		return nil, err
	}
	if err := w.CheckEngineVersion(cfg.EngineVersion); err != nil {
		return nil, core.NewError(core.CodeVersionMismatch, err)
	}

	pluginMgr, err := plugin.NewManager(cfg.PluginDir)
	if err != nil {
		return nil, err
	}
	hosts := make(map[string]*plugin.Host, len(w.Plugins))
	for _, ref := range w.Plugins {
		host, err := pluginMgr.Resolve(ctx, ref, cfg.EngineVersion)
		if err != nil {
			return nil, err
		}
		hosts[ref.Name] = host
	}

	stages, err := graph.Plan(w)
	if err != nil {
		return nil, err
	}

	cells := make(map[string]*statusCell, len(w.Tasks))
	once := make(map[string]*sync.Once, len(w.Tasks))
	for name := range w.Tasks {
		cells[name] = &statusCell{}
		once[name] = &sync.Once{}
	}

	return &Runner{
		workflow:    w,
		cfg:         cfg,
		log:         log,
		pluginMgr:   pluginMgr,
		pluginHosts: hosts,
		stages:      stages,
		cells:       cells,
		once:        once,
		results:     &resultSet{},
	}, nil
}

// RunAll dispatches the workflow's on_start hooks, executes every planned
// stage in order (fanning each stage's tasks out across goroutines),
// dispatches on_finish hooks, tears every plugin down, and returns the
// aggregated run summary (spec.md §4.6).
func (r *Runner) RunAll(ctx context.Context) (*Summary, error) {
	defer r.teardownPlugins()

	if err := r.dispatchHooks(ctx, r.workflow.OnStart); err != nil {
		return nil, err
	}

	for _, stage := range r.stages {
		var wg sync.WaitGroup
		for _, name := range stage {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				_ = r.ensureRun(ctx, name)
			}(name)
		}
		wg.Wait()
	}

	if err := r.dispatchHooks(ctx, r.workflow.OnFinish); err != nil {
		return r.results.summary(), err
	}
	return r.results.summary(), nil
}

func (r *Runner) teardownPlugins() {
	for name, host := range r.pluginHosts {
		if err := host.Teardown(); err != nil {
			r.log.Warn("plugin teardown failed", "plugin", name, "error", err)
		}
	}
}

// ensureRun guarantees name's task has executed exactly once (if it names
// a real task at all). The execution's error is returned only to the call
// that performed it; a call that finds the task already executed gets nil
// and must read the outcome from the task's status cell. Concurrent
// callers racing to resolve the same dependency block on the same
// sync.Once rather than duplicating work.
func (r *Runner) ensureRun(ctx context.Context, name string) error {
	task, ok := r.workflow.Tasks[name]
	if !ok {
		// Unknown name: the Graph Planner already treats this as an
		// always-satisfied pseudo-node (engine/graph.Plan); the Runner
		// mirrors that here by no-opping rather than failing the
		// dependent task.
		return nil
	}

	once := r.getOnce(name)
	var runErr error
	once.Do(func() {
		runErr = r.executeTask(ctx, name, task)
	})
	return runErr
}

func (r *Runner) getOnce(name string) *sync.Once {
	r.onceMu.Lock()
	defer r.onceMu.Unlock()
	o, ok := r.once[name]
	if !ok {
		o = &sync.Once{}
		r.once[name] = o
	}
	return o
}

// executeTask resolves name's dependencies (recursively and lazily
// triggering their own execution), checks each dependency's committed
// status against what this task requires, and — if satisfied — dispatches
// its on_start hooks, runs the task body with retry, dispatches on_error
// if the body failed, commits its status cell, and finally dispatches
// on_finish (spec.md §4.6.2-§4.6.4). Hook errors are logged as warnings
// and never change the committed outcome.
func (r *Runner) executeTask(ctx context.Context, name string, task workflow.Task) error {
	id := core.NewID()
	taskLog := r.log.With("task", name, "run_id", id)
	start := time.Now()

	if task.Kind() == workflow.TaskKindIllFormed {
		err := core.NewErrorf(core.CodeTaskIllFormed, "task %q must set exactly one of command/template/plugin", name)
		r.commit(name, id, false, 0, start, err)
		return err
	}

	if err := r.checkDependencies(ctx, name, task.Dependencies); err != nil {
		r.commit(name, id, false, 0, start, err)
		return err
	}

	if err := r.dispatchHooks(ctx, task.OnStart); err != nil {
		taskLog.Warn("on_start hook failed", "error", err)
	}

	success, attempts, execErr := r.runWithRetry(ctx, name, task, taskLog)

	if !success {
		if err := r.dispatchHooks(ctx, task.OnError); err != nil {
			taskLog.Warn("on_error hook failed", "error", err)
		}
	}

	// Commit before on_finish (spec.md §4.6.4): on_finish runs
	// unconditionally, after the status cell is already set, and its own
	// failure never flips the task's recorded outcome.
	r.commit(name, id, success, attempts, start, execErr)

	if err := r.dispatchHooks(ctx, task.OnFinish); err != nil {
		taskLog.Warn("on_finish hook failed", "error", err)
	}

	return execErr
}

func (r *Runner) commit(name string, id core.ID, success bool, attempts int, start time.Time, err error) {
	r.cells[name].Set(success)
	r.results.add(Result{
		Name:     name,
		ID:       id,
		Success:  success,
		Attempts: attempts,
		Duration: time.Since(start),
		Err:      err,
	})
}

// checkDependencies ensures every dependency has run and that its
// committed status matches what the caller's task requires, returning
// DependencyNotSatisfied on the first mismatch (spec.md §4.6.3).
func (r *Runner) checkDependencies(ctx context.Context, name string, deps []workflow.Dependency) error {
	for _, dep := range deps {
		// The dependency's own execution error (if any) is captured in its
		// status cell, not propagated here: a failed dependency is a
		// perfectly normal thing for a Status("failure") edge to require.
		_ = r.ensureRun(ctx, dep.Name)
		if !r.dependencySatisfied(dep) {
			return core.NewErrorf(core.CodeDependencyNotSatisfied,
				"task %q requires %q to reach status %q", name, dep.Name, dep.Status)
		}
	}
	return nil
}

func (r *Runner) dependencySatisfied(dep workflow.Dependency) bool {
	cell, ok := r.cells[dep.Name]
	if !ok {
		// Unknown dependency name: always-satisfied pseudo-node, mirroring
		// ensureRun's no-op (see engine/graph.Plan doc comment).
		return true
	}
	success, done := cell.Get()
	if !done {
		// The named task exists but never executed (e.g. it is itself
		// unreachable); treat as not satisfied rather than panicking.
		return dep.Status == workflow.StatusAny
	}
	switch dep.Status {
	case workflow.StatusSuccess:
		return success
	case workflow.StatusFailure:
		return !success
	case workflow.StatusAny:
		return true
	default:
		return false
	}
}

// runWithRetry executes the task's command/template/plugin body, retrying
// up to the applicable retry count additional times with its retry delay
// between attempts, stopping at the first success (spec.md §4.6.2, §8
// "retry-until-success"). A Template task's retry policy comes from the
// template itself (spec.md §4.6.4 "execute_template... apply
// template.retry with template.retry_delay"); Command and Plugin tasks use
// their own retry/retry_delay.
func (r *Runner) runWithRetry(ctx context.Context, name string, task workflow.Task, taskLog logger.Logger) (bool, int, error) {
	retryCount, retryDelaySet, retryDelaySeconds := task.RetryCount(), task.RetryDelay != nil, task.RetryDelaySeconds()
	if task.Kind() == workflow.TaskKindTemplate {
		if tpl, err := r.workflow.FindTemplate(*task.Template); err == nil {
			retryCount = tpl.RetryCount()
			retryDelaySet = tpl.RetryDelay != nil
			retryDelaySeconds = tpl.RetryDelaySeconds()
		}
	}

	maxAttempts := retryCount + 1
	delay := time.Duration(retryDelaySeconds) * time.Second
	if !retryDelaySet && r.cfg != nil {
		delay = r.cfg.DefaultRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		taskLog.Info("running task", "attempt", attempt, "max_attempts", maxAttempts)
		err := r.runTaskBody(ctx, name, task, taskLog)
		if err == nil {
			return true, attempt, nil
		}
		lastErr = err
		taskLog.Warn("task attempt failed", "attempt", attempt, "error", err)
		if attempt < maxAttempts && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false, attempt, ctx.Err()
			}
		}
	}
	return false, maxAttempts, lastErr
}

func (r *Runner) runTaskBody(ctx context.Context, name string, task workflow.Task, taskLog logger.Logger) error {
	switch task.Kind() {
	case workflow.TaskKindCommand:
		pctx := buildPlaceholderContext(task.Config, task.Env)
		return r.runCommand(ctx, *task.Command, pctx, task.Env, false, taskLog)
	case workflow.TaskKindTemplate:
		tpl, err := r.workflow.FindTemplate(*task.Template)
		if err != nil {
			return core.NewError(core.CodeTaskIllFormed, err)
		}
		if tpl.Command == nil {
			return core.NewErrorf(core.CodeTaskIllFormed, "template %q has no command", *task.Template)
		}
		env := mergeEnv(tpl.Env, task.Env)
		pctx := buildPlaceholderContext(task.Config, env)
		return r.runCommand(ctx, *tpl.Command, pctx, env, true, taskLog)
	case workflow.TaskKindPlugin:
		pctx := buildPlaceholderContext(task.Config, task.Env)
		return r.runPlugin(*task.Plugin, task.Config, pctx)
	default:
		return fmt.Errorf("unreachable: task %q has no recognized kind", name)
	}
}

// mergeEnv layers override on top of base using dario.cat/mergo, the same
// env-merge tool the teacher's engine/core/env.go wraps for its own
// EnvMerger type — used here for a task's own env table overriding its
// template's (spec.md §3).
func mergeEnv(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
		for k, v := range override {
			out[k] = v
		}
	}
	return out
}

// buildPlaceholderContext seeds a Placeholder Context from env (the task
// or merged template/task env, pre-resolution) plus every string-valued
// entry of config (spec.md §4.1, §4.6.4: "seed it with every entry of the
// task's config (string values only)"). Config entries are set last, so a
// config key shadows a same-named env key for the purposes of resolving
// other values against this context.
func buildPlaceholderContext(config map[string]any, env map[string]string) placeholder.Context {
	ctx := placeholder.New(nil)
	for k, v := range env {
		ctx.Set(k, v)
	}
	for k, v := range config {
		if s, ok := v.(string); ok {
			ctx.Set(k, s)
		}
	}
	return ctx
}
