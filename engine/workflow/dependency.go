package workflow

import (
	"fmt"
	"strings"
)

// Kind is the prefix carried by a dependency name, selecting what the name
// resolves against: a task, a template, or a plugin (spec.md §3, §4.6.5).
type Kind string

const (
	KindTask     Kind = "task"
	KindTemplate Kind = "template"
	KindPlugin   Kind = "plugin"
)

// Status is the dependency's required post-condition (spec.md §3).
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusAny     Status = "any"
)

func normalizeStatus(raw string) (Status, error) {
	switch raw {
	case "success":
		return StatusSuccess, nil
	case "failure", "fail":
		return StatusFailure, nil
	case "any":
		return StatusAny, nil
	default:
		return "", fmt.Errorf("invalid dependency status %q", raw)
	}
}

// Dependency is the sum type `Simple(name) | Status(name, status)` from
// spec.md §3 and §9 ("do not emulate with unstructured tables"): a Simple
// edge implicitly requires success, a Status edge names its own requirement.
// The optional kind: prefix is parsed once here, at construction, per the
// same design note.
//
// The single-entry table's value is not always a status string: spec.md
// §4.6.5 has a plugin: hook read "the Status map's value as table (or
// empty)" as the plugin's invocation config, matching the original source's
// Dependency::Status(Table) carrying an arbitrary TOML table rather than a
// constrained enum (_examples/original_source/src/workflow/structure.rs).
// So a table value is captured as-is in Config, and Status only gets a
// parsed enum value when the table's value is one of the three recognized
// status strings.
type Dependency struct {
	Kind   Kind
	Name   string
	Status Status
	Config map[string]any
}

// UnmarshalTOML implements toml.Unmarshaler so a Dependency can come from
// either a bare string (Simple, kind-prefixed or not) or a single-entry
// table ({ name = status } for an ordinary dependency/hook, or
// { name = { ... } } for a plugin: hook's invocation config).
func (d *Dependency) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		kind, name := splitKind(v)
		d.Kind = kind
		d.Name = name
		d.Status = StatusSuccess
		return nil
	case map[string]any:
		if len(v) != 1 {
			return fmt.Errorf("dependency table must have exactly one entry, got %d", len(v))
		}
		for rawName, rawValue := range v {
			kind, name := splitKind(rawName)
			d.Kind = kind
			d.Name = name
			switch value := rawValue.(type) {
			case string:
				status, err := normalizeStatus(value)
				if err != nil {
					return err
				}
				d.Status = status
			case map[string]any:
				d.Status = StatusSuccess
				d.Config = value
			default:
				return fmt.Errorf("dependency value for %q must be a status string or a table, got %T", rawName, rawValue)
			}
		}
		return nil
	default:
		return fmt.Errorf("dependency must be a string or a single-entry table, got %T", data)
	}
}

// splitKind parses an optional "<prefix>:" off a dependency name; an
// absent prefix defaults to KindTask. An unrecognized prefix (anything
// other than task/template/plugin) is preserved as-is rather than silently
// coerced to KindTask, so hook dispatch (spec.md §4.6.5) can still reject
// it with UnknownHookKind; plain task-dependency resolution ignores Kind
// entirely and always takes the task: path (spec.md §4.6.3), so an
// unrecognized prefix there is harmless.
func splitKind(raw string) (Kind, string) {
	if idx := strings.Index(raw, ":"); idx >= 0 {
		return Kind(raw[:idx]), raw[idx+1:]
	}
	return KindTask, raw
}
