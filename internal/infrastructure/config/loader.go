// Package config loads YAML configuration with embedded defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/ffpilot/assets"
	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/pkg/filesystem"
	"github.com/doeshing/ffpilot/internal/ports"
)

// FileLoader loads YAML configuration from ~/.ffpilot/config.yaml
// (overridable via FFPILOT_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := defaultConfig()
			if err := writeDefault(path, cfg); err != nil {
				return domain.Config{}, err
			}
			writeDefaultRules(filepath.Join(filepath.Dir(path), "rules.yaml"))
			return cfg, nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, err
	}

	return hydrateDefaults(cfg), nil
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return l.overridePath
	}
	if custom := os.Getenv("FFPILOT_CONFIG"); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".ffpilot", "config.yaml")
}

func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, domain.DirectoryPermissions)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

// writeDefaultRules seeds the validator rules file next to the config on
// first run. Best effort: the validator falls back to compiled-in defaults.
func writeDefaultRules(path string) {
	if _, err := os.Stat(path); err == nil {
		return
	}
	_ = os.WriteFile(path, assets.DefaultRulesYAML, domain.SecureFilePermissions)
}

// Path returns the resolved config file path.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

// Save writes the given config back to disk.
func (l *FileLoader) Save(cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := ensureConfigDir(l.resolvePath()); err != nil {
		return err
	}
	return os.WriteFile(l.resolvePath(), raw, domain.SecureFilePermissions)
}

func defaultConfig() domain.Config {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		// Minimal bootstrap if the embedded YAML is ever corrupted.
		return hydrateDefaults(domain.Config{
			ConfigFormatVersion: "1",
			Models: []domain.ModelDefinition{
				{
					Name:       "claude-sonnet",
					Endpoint:   "https://api.anthropic.com/v1/messages",
					AuthEnvVar: "ANTHROPIC_API_KEY",
					ModelID:    "claude-3-5-sonnet-20240620",
					MaxTokens:  domain.DefaultMaxTokens,
				},
			},
		})
	}
	return hydrateDefaults(cfg)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.Preferences.DefaultModel == "" && len(cfg.Models) > 0 {
		cfg.Preferences.DefaultModel = cfg.Models[0].Name
	}
	if cfg.Preferences.GeneratorTimeout == 0 {
		cfg.Preferences.GeneratorTimeout = int(domain.DefaultGeneratorTimeout.Seconds())
	}
	if cfg.Budget.DailyLimitUSD == 0 {
		cfg.Budget.DailyLimitUSD = domain.DefaultDailyBudgetUSD
	}
	if cfg.Executor.TimeoutSeconds == 0 {
		cfg.Executor.TimeoutSeconds = int(domain.DefaultExecutionTimeout.Seconds())
	}
	if cfg.Executor.GraceSeconds == 0 {
		cfg.Executor.GraceSeconds = int(domain.DefaultGraceWindow.Seconds())
	}
	if cfg.Executor.MaxCaptureBytes == 0 {
		cfg.Executor.MaxCaptureBytes = domain.MaxCaptureBytes
	}
	if cfg.Executor.LargeInputBytes == 0 {
		cfg.Executor.LargeInputBytes = domain.LargeInputBytes
	}
	if cfg.Bridge.TimeoutSeconds == 0 {
		cfg.Bridge.TimeoutSeconds = int(domain.DefaultBridgeTimeout.Seconds())
	}
	if cfg.Registry.TimeoutSeconds == 0 {
		cfg.Registry.TimeoutSeconds = int(domain.DefaultRegistryTimeout.Seconds())
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = domain.DefaultHistoryRetainDays
	}
	if cfg.Validator.RulesFile == "~/.ffpilot/rules.yaml" {
		cfg.Validator.RulesFile = filepath.Join(filesystem.UserHomeDir(), ".ffpilot", "rules.yaml")
	}
	return cfg
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

// DefaultConfig exposes the bootstrap configuration template.
func DefaultConfig() domain.Config {
	return defaultConfig()
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
