package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// RegistryFileName is the name of the persisted registry document inside
// the engine's plugin directory.
const RegistryFileName = "plugins.toml"

// Record is one installed plugin's durable registry entry: where it was
// fetched from, which version was built, the build-tree directory the
// source was fetched/built in (BuildPath) and the final shared-library
// location under the installed/ tree the Host loads from (InstallPath) —
// the same split the original source keeps between a Plugin's build_path
// and install_path fields
// (_examples/original_source/src/plugins/manager.rs), named for spec.md
// §3's "computed install_path (the built artifact location), build_path
// (the source tree location)".
type Record struct {
	Name        string `toml:"name"`
	Source      string `toml:"source"`
	Version     string `toml:"version"`
	BuildPath   string `toml:"build_path"`
	InstallPath string `toml:"install_path"`
}

// registryDocument is the on-disk shape of plugins.toml.
type registryDocument struct {
	Plugins map[string]Record `toml:"plugins"`
}

// Registry is the Plugin Manager's persistent record of installed
// plugins, rooted at dir/plugins.toml.
type Registry struct {
	dir     string
	records map[string]Record
}

// OpenRegistry loads (or initializes) the registry rooted at dir.
func OpenRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plugin directory %q: %w", dir, err)
	}
	path := filepath.Join(dir, RegistryFileName)
	doc := registryDocument{Plugins: map[string]Record{}}
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse plugin registry %q: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read plugin registry %q: %w", path, err)
	}
	if doc.Plugins == nil {
		doc.Plugins = map[string]Record{}
	}
	return &Registry{dir: dir, records: doc.Plugins}, nil
}

// Get returns the registry entry for name, if installed.
func (r *Registry) Get(name string) (Record, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

// Put records (or overwrites) name's registry entry. Callers must call
// Save to persist the change.
func (r *Registry) Put(rec Record) {
	r.records[rec.Name] = rec
}

// Save atomically rewrites plugins.toml: it encodes to a temp file in the
// same directory and renames it over the target, so a crash mid-write
// never leaves a truncated registry behind.
func (r *Registry) Save() error {
	path := filepath.Join(r.dir, RegistryFileName)
	tmp, err := os.CreateTemp(r.dir, "plugins-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := toml.NewEncoder(tmp)
	err = enc.Encode(registryDocument{Plugins: r.records})
	closeErr := tmp.Close()
	if err != nil {
		return fmt.Errorf("failed to encode plugin registry: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close temp registry file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to install plugin registry: %w", err)
	}
	return nil
}
