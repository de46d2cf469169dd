// Package config holds the explicit, process-wide configuration: model
// selection, language hints, and translation settings. A Config value is
// loaded once in main and handed to the orchestrator; Reload re-reads the
// same file so a settings change takes effect without a restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Translation configures the optional post-transcription translation step.
type Translation struct {
	Enabled        bool   `toml:"enabled"`
	Provider       string `toml:"provider"` // "claude" or "openai"
	APIKey         string `toml:"api_key"`
	TargetLanguage string `toml:"target_language"`
}

type Config struct {
	Model       string      `toml:"model"`    // catalog id, "small" or "large"
	Language    string      `toml:"language"` // source language hint, "" = auto-detect
	ModelDir    string      `toml:"model_dir"`
	DumpDir     string      `toml:"dump_dir"` // when set, each recording is dumped as FLAC
	Translation Translation `toml:"translation"`

	path string
}

func Default() Config {
	return Config{
		Model: "small",
		Translation: Translation{
			Provider:       "claude",
			TargetLanguage: "English",
		},
	}
}

// DefaultPath is the config file location used when no -config flag is given.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voice-assistant", "config.toml"), nil
}

// Load reads path over the defaults. A missing file is not an error; the
// defaults plus environment overrides apply.
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.path = path

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if cfg.Translation.Provider != "claude" && cfg.Translation.Provider != "openai" {
		return Config{}, fmt.Errorf("config: unknown translation provider %q", cfg.Translation.Provider)
	}
	return cfg, nil
}

// Reload re-reads the file this Config was loaded from.
func (c Config) Reload() (Config, error) {
	return Load(c.path)
}

// applyEnv fills the API credential from the environment when the file left
// it empty. The file never overrides the environment the other way around;
// credentials belong in the secret store, not on disk.
func (c *Config) applyEnv() {
	if c.Translation.APIKey != "" {
		return
	}
	switch c.Translation.Provider {
	case "claude":
		c.Translation.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		c.Translation.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// CanTranslate reports whether translation can actually run: enabled with a
// usable credential. Enabling without a credential is accepted but advisory.
func (c Config) CanTranslate() bool {
	return c.Translation.Enabled && c.Translation.APIKey != ""
}
