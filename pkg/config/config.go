// Package config handles loading and saving bugwork configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/bugwork/config.yaml
//   - State:  ~/.local/state/bugwork/ (session store, log file)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects between the single-tenant creation flow and the multi-view client.
type Mode int

const (
	// ModeLegacy forces every navigation through the bug creation flow.
	ModeLegacy Mode = 1
	// ModeFull exposes the dashboard, login and bug views.
	ModeFull Mode = 2
)

// ServerConfig points the client at a bug service.
type ServerConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout_seconds,omitempty"`
}

// BugDefaults are the fixed fields sent with every new bug.
type BugDefaults struct {
	Product         string `yaml:"product,omitempty"`
	LegacyComponent string `yaml:"legacy_component,omitempty"` // Component used in legacy mode
	OpSys           string `yaml:"op_sys,omitempty"`
	Platform        string `yaml:"platform,omitempty"`
	Version         string `yaml:"version,omitempty"`
}

// ShareConfig enables the share inbox. An empty InboxDir disables sharing.
type ShareConfig struct {
	InboxDir  string `yaml:"inbox_dir,omitempty"`
	ForcePoll bool   `yaml:"force_poll,omitempty"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	MarkdownStyle string `yaml:"markdown_style,omitempty"` // glamour style: auto, dark, light, notty
	WordWrap      int    `yaml:"word_wrap,omitempty"`
}

// Config is the top-level configuration for bugwork.
type Config struct {
	Mode   Mode         `yaml:"mode,omitempty"`
	Server ServerConfig `yaml:"server"`
	Bug    BugDefaults  `yaml:"bug,omitempty"`
	Share  ShareConfig  `yaml:"share,omitempty"`
	UI     UIConfig     `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode: ModeFull,
		Server: ServerConfig{
			URL:     "https://bugzilla.mozilla.org",
			Timeout: 30,
		},
		Bug: BugDefaults{
			Product:         "Firefox OS",
			LegacyComponent: "Gaia",
			OpSys:           "All",
			Platform:        "All",
			Version:         "unspecified",
		},
		UI: UIConfig{
			MarkdownStyle: "auto",
			WordWrap:      80,
		},
	}
}

// Legacy reports whether the single-tenant creation flow is active.
func (c Config) Legacy() bool {
	return c.Mode == ModeLegacy
}

// ConfigDir returns the XDG config directory for bugwork.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "bugwork")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bugwork")
}

// StateDir returns the XDG state directory for bugwork.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "bugwork")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "bugwork")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// StorePath returns the path of the session store database.
func StorePath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "store.db")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return applyEnv(DefaultConfig()), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	cfg.Share.InboxDir = expandHome(cfg.Share.InboxDir)
	return applyEnv(cfg), nil
}

// Validate rejects values the client cannot run with.
func (c Config) Validate() error {
	if c.Mode != ModeLegacy && c.Mode != ModeFull {
		return fmt.Errorf("invalid mode %d (want 1 or 2)", c.Mode)
	}
	if strings.TrimSpace(c.Server.URL) == "" {
		return fmt.Errorf("server.url is required")
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// applyEnv lets BUGWORK_URL override the configured server.
func applyEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("BUGWORK_URL")); v != "" {
		cfg.Server.URL = v
	}
	return cfg
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
