// Package plugin implements the Plugin Manager and Plugin Host: fetching
// plugin source, building it, maintaining a persistent local registry, and
// loading/executing the resulting shared library (spec.md §4.4, §4.5).
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Manifest is the plugin-side descriptor (`plugin.toml` in the plugin's
// own source tree): its declared name/version, the compatible engine
// version range, the build command, and where the build places the
// resulting shared library (spec.md §4.4, §6.2).
type Manifest struct {
	Name          string `toml:"name"`
	Version       string `toml:"version"`
	RunnerVersion string `toml:"runner_version"`
	Build         string `toml:"build"`
	OutputDir     string `toml:"output_dir"`
}

// ManifestFileName is the fixed name a plugin's manifest must have inside
// its source directory.
const ManifestFileName = "plugin.toml"

// LoadManifest reads and parses a plugin manifest from sourceDir.
func LoadManifest(sourceDir string) (*Manifest, error) {
	path := filepath.Join(sourceDir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read plugin manifest at %s", ErrManifestInvalid, path)
	}
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("%w: failed to parse plugin manifest: %s", ErrManifestInvalid, err)
	}
	if m.Name == "" || m.Version == "" || m.Build == "" {
		return nil, fmt.Errorf("%w: manifest missing required name/version/build fields", ErrManifestInvalid)
	}
	return &m, nil
}

// SharedLibraryName returns the conventional output filename for the
// platform's shared-object plugin build: <prefix><name><suffix>, the same
// convention the original source computes from
// std::env::consts::DLL_PREFIX/DLL_SUFFIX
// (_examples/original_source/src/plugins/manager.rs:183-194) — "lib<name>.so"
// on Linux, "lib<name>.dylib" on macOS, "<name>.dll" on Windows (no "lib"
// prefix there).
func SharedLibraryName(pluginName string) string {
	prefix, suffix := dllPrefix(), dllSuffix()
	return prefix + pluginName + suffix
}

func dllPrefix() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	return "lib"
}

func dllSuffix() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}
