package plugin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/vyPal/XTomate/engine/workflow"
)

// Manager is the Plugin Manager: it resolves a workflow-level PluginRef
// into a loaded Host, fetching, building and registering the plugin on
// first use and reusing the registry entry when the installed version
// already satisfies the reference (spec.md §4.4).
type Manager struct {
	dir      string
	registry *Registry
}

// NewManager opens (or initializes) the plugin registry rooted at dir.
func NewManager(dir string) (*Manager, error) {
	reg, err := OpenRegistry(dir)
	if err != nil {
		return nil, err
	}
	return &Manager{dir: dir, registry: reg}, nil
}

// Resolve ensures ref's plugin is fetched, built and registered, then
// loads and initializes it, returning a ready-to-execute Host. engineVersion
// is checked against the plugin manifest's own runner_version constraint
// (spec.md §4.4, §4.6.1), mirroring the workflow-level engine version
// check in engine/workflow.Workflow.CheckEngineVersion.
func (m *Manager) Resolve(ctx context.Context, ref workflow.PluginRef, engineVersion string) (*Host, error) {
	if existing, ok := m.registry.Get(ref.Name); ok {
		if satisfiesVersion(ref.Version, existing.Version) && existing.Source == ref.Source {
			host, err := Load(ref.Name, existing.InstallPath)
			if err == nil {
				return host, initHost(host, ref)
			}
		}
	}

	buildPath := filepath.Join(m.dir, "build", ref.Name)
	if err := FetchSource(ref.Source, buildPath); err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(buildPath)
	if err != nil {
		return nil, err
	}
	if err := checkRunnerVersion(manifest, engineVersion); err != nil {
		return nil, err
	}
	if !satisfiesVersion(ref.Version, manifest.Version) {
		return nil, fmt.Errorf("%w: plugin %q version %s does not satisfy workflow constraint %q",
			ErrSourceInvalid, ref.Name, manifest.Version, ref.Version)
	}

	builtArtifact, err := Build(ctx, manifest, buildPath)
	if err != nil {
		return nil, err
	}

	installDir := filepath.Join(m.dir, "installed", ref.Name)
	installPath, err := InstallArtifact(ref.Name, builtArtifact, installDir)
	if err != nil {
		return nil, err
	}

	m.registry.Put(Record{
		Name:        ref.Name,
		Source:      ref.Source,
		Version:     manifest.Version,
		BuildPath:   buildPath,
		InstallPath: installPath,
	})
	if err := m.registry.Save(); err != nil {
		return nil, err
	}

	host, err := Load(ref.Name, installPath)
	if err != nil {
		return nil, err
	}
	return host, initHost(host, ref)
}

func initHost(host *Host, ref workflow.PluginRef) error {
	configJSON, err := marshalConfig(ref.Config)
	if err != nil {
		return err
	}
	return host.Initialize(configJSON)
}

func checkRunnerVersion(m *Manifest, engineVersion string) error {
	if m.RunnerVersion == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(m.RunnerVersion)
	if err != nil {
		return fmt.Errorf("%w: invalid runner_version constraint %q in manifest for %q: %s",
			ErrManifestInvalid, m.RunnerVersion, m.Name, err)
	}
	version, err := semver.NewVersion(engineVersion)
	if err != nil {
		return fmt.Errorf("invalid engine version %q: %w", engineVersion, err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("engine version %s does not satisfy plugin %q runner_version constraint %q",
			engineVersion, m.Name, m.RunnerVersion)
	}
	return nil
}

// satisfiesVersion reports whether candidateVersion satisfies constraint.
// An empty constraint accepts anything.
func satisfiesVersion(constraintStr, candidateVersion string) bool {
	if constraintStr == "" {
		return true
	}
	constraint, err := semver.NewConstraint(constraintStr)
	if err != nil {
		return false
	}
	version, err := semver.NewVersion(candidateVersion)
	if err != nil {
		return false
	}
	return constraint.Check(version)
}
