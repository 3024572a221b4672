// Package workflow holds the in-memory Workflow Model: the immutable,
// parsed representation of a workflow document, its tasks, templates and
// plugin references (spec.md §3, §4.2). Grounded on
// compozy-compozy/engine/domain/workflow/config.go's Load/Validate shape,
// adapted from YAML+mergo-based file refs to the flat single-document TOML
// format spec.md §6 mandates.
package workflow

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// Task is one node of the workflow graph: a shell command, a named
// template invocation, or a plugin invocation (exactly one of Command/
// Template/Plugin), plus retry policy, runnability, config/env trees,
// dependencies and lifecycle hooks (spec.md §3).
type Task struct {
	Command     *string        `toml:"command"`
	Template    *string        `toml:"template"`
	Plugin      *string        `toml:"plugin"`
	Retry       *int           `toml:"retry"`
	RetryDelay  *int           `toml:"retry_delay"`
	Run         *bool          `toml:"run"`
	Config      map[string]any `toml:"config"`
	Env         map[string]string `toml:"env"`
	Dependencies []Dependency  `toml:"dependencies"`
	OnStart     []Dependency   `toml:"on_start"`
	OnFinish    []Dependency   `toml:"on_finish"`
	OnError     []Dependency   `toml:"on_error"`
}

// TaskKind identifies which of the three execution bodies a task has.
type TaskKind int

const (
	TaskKindIllFormed TaskKind = iota
	TaskKindCommand
	TaskKindTemplate
	TaskKindPlugin
)

// Kind reports which execution body the task carries. Exactly one of
// Command/Template/Plugin being set is required; zero or more than one is
// ill-formed (spec.md §3, §4.6.4).
func (t *Task) Kind() TaskKind {
	n := 0
	if t.Command != nil {
		n++
	}
	if t.Template != nil {
		n++
	}
	if t.Plugin != nil {
		n++
	}
	if n != 1 {
		return TaskKindIllFormed
	}
	switch {
	case t.Command != nil:
		return TaskKindCommand
	case t.Template != nil:
		return TaskKindTemplate
	default:
		return TaskKindPlugin
	}
}

// IsRunnable reports the task's `run` flag (default true). Non-runnable
// tasks are skipped from auto-dispatched stages but remain invokable as a
// named dependency (spec.md §3, §4.3).
func (t *Task) IsRunnable() bool {
	return t.Run == nil || *t.Run
}

// RetryCount returns the configured retry count, defaulting to 0.
func (t *Task) RetryCount() int {
	if t.Retry == nil {
		return 0
	}
	return *t.Retry
}

// RetryDelaySeconds returns the configured retry delay in seconds,
// defaulting to 0.
func (t *Task) RetryDelaySeconds() int {
	if t.RetryDelay == nil {
		return 0
	}
	return *t.RetryDelay
}

// Template is a reusable command carrier invoked by name from a Task
// (spec.md §3).
type Template struct {
	Name         string            `toml:"name"`
	Command      *string           `toml:"command"`
	Retry        *int              `toml:"retry"`
	RetryDelay   *int              `toml:"retry_delay"`
	Env          map[string]string `toml:"env"`
	Dependencies []Dependency      `toml:"dependencies"`
}

// RetryCount returns the configured retry count, defaulting to 0.
func (t *Template) RetryCount() int {
	if t.Retry == nil {
		return 0
	}
	return *t.Retry
}

// RetryDelaySeconds returns the configured retry delay in seconds.
func (t *Template) RetryDelaySeconds() int {
	if t.RetryDelay == nil {
		return 0
	}
	return *t.RetryDelay
}

// PluginRef is a workflow-level reference to a plugin: where to fetch it
// from, which version is required, and the invocation's own config tree
// (spec.md §3).
type PluginRef struct {
	Name    string         `toml:"name"`
	Source  string         `toml:"source"`
	Version string         `toml:"version"`
	Config  map[string]any `toml:"config"`
}

// Workflow is the immutable, parsed representation of a workflow document
// (spec.md §3, §4.2).
type Workflow struct {
	Name        string         `toml:"name"`
	Version     string         `toml:"version"`
	Description string         `toml:"description"`
	Tasks       map[string]Task `toml:"tasks"`
	Plugins     []PluginRef    `toml:"plugins"`
	Templates   []Template     `toml:"templates"`
	OnStart     []Dependency   `toml:"on_start"`
	OnFinish    []Dependency   `toml:"on_finish"`
}

// Load parses a workflow document from path.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a workflow document from raw TOML bytes.
func Parse(data []byte) (*Workflow, error) {
	var w Workflow
	if _, err := toml.Decode(string(data), &w); err != nil {
		return nil, fmt.Errorf("failed to parse workflow document: %w", err)
	}
	return &w, nil
}

// GetTask looks up a task by name.
func (w *Workflow) GetTask(name string) (*Task, bool) {
	t, ok := w.Tasks[name]
	if !ok {
		return nil, false
	}
	return &t, true
}

// AllTasks returns every task in the workflow, keyed by name.
func (w *Workflow) AllTasks() map[string]Task {
	return w.Tasks
}

// FindTemplate looks up a template by name. Per spec.md §4.2 this fails
// fast when the workflow has no templates section at all, rather than
// reporting a generic "not found" in that case.
func (w *Workflow) FindTemplate(name string) (*Template, error) {
	if len(w.Templates) == 0 {
		return nil, fmt.Errorf("workflow %q has no templates section", w.Name)
	}
	for i := range w.Templates {
		if w.Templates[i].Name == name {
			return &w.Templates[i], nil
		}
	}
	return nil, fmt.Errorf("template %q not found", name)
}

// FindPluginRef looks up a workflow-level plugin reference by name.
func (w *Workflow) FindPluginRef(name string) (*PluginRef, error) {
	for i := range w.Plugins {
		if w.Plugins[i].Name == name {
			return &w.Plugins[i], nil
		}
	}
	return nil, fmt.Errorf("plugin %q not referenced by workflow %q", name, w.Name)
}

// CheckEngineVersion validates the workflow's `version` semver constraint
// against the running engine's concrete version (spec.md §4.6.1).
func (w *Workflow) CheckEngineVersion(engineVersion string) error {
	constraint, err := semver.NewConstraint(w.Version)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", w.Version, err)
	}
	version, err := semver.NewVersion(engineVersion)
	if err != nil {
		return fmt.Errorf("invalid engine version %q: %w", engineVersion, err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("engine version %s does not satisfy workflow constraint %q", engineVersion, w.Version)
	}
	return nil
}
