package plugin

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Build runs the manifest's build command inside sourceDir (the plugin's
// build_path) and returns the path (under sourceDir) to the shared library
// it is declared to produce. The build command runs through "sh -c",
// matching the Runner's own command-execution convention (engine/runner).
// Its combined stdout/stderr is captured and only surfaced as part of the
// ErrBuildFailed error when the command fails.
func Build(ctx context.Context, m *Manifest, sourceDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", m.Build)
	cmd.Dir = sourceDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: build command %q failed: %s\n%s", ErrBuildFailed, m.Build, err, output)
	}

	outDir := sourceDir
	if m.OutputDir != "" {
		outDir = filepath.Join(sourceDir, m.OutputDir)
	}
	return filepath.Join(outDir, SharedLibraryName(m.Name)), nil
}

// InstallArtifact copies the built shared library at builtPath into
// installDir (creating it if necessary) under its conventional platform
// filename, matching the original source's install_plugin, which copies
// the build-tree artifact into the plugin's installed/<name> directory
// (_examples/original_source/src/plugins/manager.rs) per spec.md §4.4
// step 7. It returns the resulting install path.
func InstallArtifact(pluginName, builtPath, installDir string) (string, error) {
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create plugin install directory %q: %w", installDir, err)
	}
	installPath := filepath.Join(installDir, SharedLibraryName(pluginName))

	src, err := os.Open(builtPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open built plugin artifact %q: %s", ErrBuildFailed, builtPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(installPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create installed plugin file %q: %w", installPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy plugin artifact to %q: %w", installPath, err)
	}
	return installPath, nil
}
