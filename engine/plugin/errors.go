package plugin

import "errors"

// Sentinel errors this package wraps with %w; their texts equal the
// matching engine/core error codes. They are not converted to
// engine/core.Error: runner.Load returns them as they come, so callers
// match them with errors.Is.
var (
	ErrSourceInvalid  = errors.New("plugin_source_invalid")
	ErrBuildFailed    = errors.New("plugin_build_failed")
	ErrLoadFailed     = errors.New("plugin_load_failed")
	ErrManifestInvalid = errors.New("plugin_manifest_invalid")
)
