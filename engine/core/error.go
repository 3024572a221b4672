// Package core holds types shared across the engine packages: the
// structured error envelope and small ID helpers, grounded on
// compozy-compozy/engine/core/error.go and id.go.
package core

import "fmt"

// Error codes for the failure kinds spec.md §7 names. Stable strings so
// callers can branch on Code without string-matching messages.
const (
	CodeCycleDetected          = "cycle_detected"
	CodeVersionMismatch        = "version_mismatch"
	CodePluginSourceInvalid    = "plugin_source_invalid"
	CodePluginBuildFailed      = "plugin_build_failed"
	CodePluginLoadFailed       = "plugin_load_failed"
	CodePluginManifestInvalid  = "plugin_manifest_invalid"
	CodeTaskIllFormed          = "task_ill_formed"
	CodeDependencyNotSatisfied = "dependency_not_satisfied"
	CodeUnknownHookKind        = "unknown_hook_kind"
	CodeSubprocessFailed       = "subprocess_failed"
)

// Error is the engine's structured error envelope: a stable Code plus a
// human message and an optional wrapped cause.
type Error struct {
	Message string
	Code    string
	cause   error
}

// NewError builds an Error with the given code, wrapping err (whose message
// becomes the Error's own message).
func NewError(code string, err error) *Error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Message: msg, Code: code, cause: err}
}

// NewErrorf builds an Error with a formatted message and no wrapped cause.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Code: code}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}
