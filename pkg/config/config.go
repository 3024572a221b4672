// Package config loads engine-wide settings from defaults and environment
// variables using koanf, the way compozy-compozy's pkg/config layers
// providers (minus the file-watch/hot-reload machinery that package adds,
// which has no analogue at this scope — see DESIGN.md).
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/vyPal/XTomate/pkg/logger"
)

// EnvPrefix is the prefix environment-variable overrides must carry.
const EnvPrefix = "XTOMATE_"

// EngineConfig holds the settings the Runner and Plugin Manager need that
// don't belong to any single workflow document.
type EngineConfig struct {
	// PluginDir is the root directory the Plugin Manager installs and
	// loads plugins under ("<dir>/installed", "<dir>/build", "plugins.toml").
	PluginDir string `koanf:"plugin_dir"`
	// EngineVersion is the concrete semver workflows' `version` constraints
	// and plugins' `runner_version` constraints are checked against.
	EngineVersion string `koanf:"engine_version"`
	// DefaultRetryDelay is used when a task/template omits retry_delay.
	DefaultRetryDelay time.Duration `koanf:"default_retry_delay"`
	// LogLevel controls the engine-wide default logger.
	LogLevel logger.LogLevel `koanf:"log_level"`
}

// Default returns the engine configuration used when nothing overrides it.
func Default() *EngineConfig {
	return &EngineConfig{
		PluginDir:         "./.xtomate/plugins",
		EngineVersion:     "0.1.0",
		DefaultRetryDelay: 0,
		LogLevel:          logger.InfoLevel,
	}
}

// Load builds an EngineConfig from defaults overlaid with XTOMATE_*
// environment variables (XTOMATE_PLUGIN_DIR, XTOMATE_ENGINE_VERSION,
// XTOMATE_DEFAULT_RETRY_DELAY, XTOMATE_LOG_LEVEL), mirroring the
// confmap-then-env provider order the teacher's pkg/config uses.
func Load() (*EngineConfig, error) {
	k := koanf.New(".")
	def := Default()
	defaults := map[string]any{
		"plugin_dir":          def.PluginDir,
		"engine_version":      def.EngineVersion,
		"default_retry_delay": def.DefaultRetryDelay.String(),
		"log_level":           string(def.LogLevel),
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, err
	}
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := &EngineConfig{
		PluginDir:     k.String("plugin_dir"),
		EngineVersion: k.String("engine_version"),
		LogLevel:      logger.LogLevel(k.String("log_level")),
	}
	delay, err := time.ParseDuration(k.String("default_retry_delay"))
	if err != nil {
		return nil, err
	}
	cfg.DefaultRetryDelay = delay
	return cfg, nil
}
