package runner

import (
	"context"

	"github.com/vyPal/XTomate/engine/core"
	"github.com/vyPal/XTomate/engine/workflow"
)

// dispatchHooks runs each hook entry in order, routing by its kind prefix
// (spec.md §4.6.5): task: triggers (and waits on) the named task's lazy,
// memoized execution; template: runs the named template's command
// directly, once per dispatch, independent of any task; plugin: invokes
// the named plugin's Execute entry point directly. Any other kind stops
// dispatch with an UnknownHookKind error rather than being silently
// skipped — a hook is something the workflow author explicitly asked to
// run, so a name the Runner cannot route is a configuration bug, not a
// no-op. RunAll returns that error for workflow-level hooks (an on_start
// failure ends the run before any stage); for a task's own hooks,
// executeTask logs it as a warning and the run continues.
//
// A hook list item previously triggered by ensureRun's memoization
// (e.g. a task: hook naming a task some other task already depends on)
// does not re-run: that task's sync.Once already fired, so this is a
// deliberate, conservative resolution of an otherwise-unspecified
// double-dispatch case (SPEC_FULL.md §10, decision 4) — it can only
// suppress a duplicate, never cause a task to run an extra time.
func (r *Runner) dispatchHooks(ctx context.Context, hooks []workflow.Dependency) error {
	for _, hook := range hooks {
		switch hook.Kind {
		case workflow.KindTask, "":
			if err := r.ensureRun(ctx, hook.Name); err != nil {
				return err
			}
		case workflow.KindTemplate:
			if err := r.runTemplateHook(ctx, hook.Name); err != nil {
				return err
			}
		case workflow.KindPlugin:
			pctx := buildPlaceholderContext(hook.Config, nil)
			if err := r.runPlugin(hook.Name, hook.Config, pctx); err != nil {
				return err
			}
		default:
			return core.NewErrorf(core.CodeUnknownHookKind, "hook %q has unrecognized kind %q", hook.Name, hook.Kind)
		}
	}
	return nil
}

func (r *Runner) runTemplateHook(ctx context.Context, name string) error {
	tpl, err := r.workflow.FindTemplate(name)
	if err != nil {
		return core.NewError(core.CodeUnknownHookKind, err)
	}
	if tpl.Command == nil {
		return core.NewErrorf(core.CodeTaskIllFormed, "template %q has no command", name)
	}
	pctx := buildPlaceholderContext(nil, tpl.Env)
	return r.runCommand(ctx, *tpl.Command, pctx, tpl.Env, true, r.log.With("hook_template", name))
}
