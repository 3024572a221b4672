package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/vyPal/XTomate/engine/core"
	"github.com/vyPal/XTomate/engine/placeholder"
	"github.com/vyPal/XTomate/pkg/logger"
)

// runCommand resolves env values against pctx (and, when resolveCommand is
// set, resolves command itself too — the Template path per spec.md §4.6.4;
// a plain Command task's command string runs verbatim, only its env values
// are substituted), then runs the result through "sh -c" with env layered
// over the current process environment, capturing and logging
// stdout/stderr (spec.md §4.1, §4.6.2). A non-zero exit is reported as
// SubprocessFailed.
func (r *Runner) runCommand(ctx context.Context, command string, pctx placeholder.Context, env map[string]string, resolveCommand bool, taskLog logger.Logger) error {
	resolvedEnv := make(map[string]string, len(env))
	for k, v := range env {
		resolvedEnv[k] = pctx.Resolve(v)
	}
	cmdToRun := command
	if resolveCommand {
		cmdToRun = pctx.Resolve(command)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdToRun)
	cmd.Env = append(os.Environ(), envSlice(resolvedEnv)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if stdout.Len() > 0 {
		taskLog.Debug("stdout", "output", stdout.String())
	}
	if stderr.Len() > 0 {
		taskLog.Debug("stderr", "output", stderr.String())
	}
	if err != nil {
		return core.NewErrorf(core.CodeSubprocessFailed, "command %q failed: %s", cmdToRun, err)
	}
	return nil
}

// runPlugin looks up the workflow-level plugin by name and invokes its
// Execute entry point with the task's JSON-encoded config, with
// placeholders resolved against pctx in the serialized JSON string itself
// (spec.md §4.5, §4.6.4: "serialize config as JSON, resolve placeholders
// in the resulting string"). Execute's return code is discarded: a plugin
// invocation always reports success once called (spec.md §4.6.4, §9 Open
// Question #1).
func (r *Runner) runPlugin(name string, taskConfig map[string]any, pctx placeholder.Context) error {
	host, ok := r.pluginHosts[name]
	if !ok {
		return core.NewErrorf(core.CodePluginLoadFailed, "task references plugin %q which is not declared in the workflow's [[plugins]]", name)
	}
	payload, err := marshalTaskConfig(taskConfig)
	if err != nil {
		return core.NewErrorf(core.CodePluginLoadFailed, "failed to encode config for plugin %q: %s", name, err)
	}
	resolved := pctx.Resolve(payload)
	host.Execute(resolved)
	return nil
}

func marshalTaskConfig(taskConfig map[string]any) (string, error) {
	if taskConfig == nil {
		taskConfig = map[string]any{}
	}
	data, err := json.Marshal(taskConfig)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
