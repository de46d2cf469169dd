package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "small" {
		t.Fatalf("default model = %q", cfg.Model)
	}
	if cfg.Translation.Provider != "claude" || cfg.Translation.TargetLanguage != "English" {
		t.Fatalf("default translation = %+v", cfg.Translation)
	}
	if cfg.CanTranslate() {
		t.Fatal("translation should be off by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
model = "large"
language = "en"

[translation]
enabled = true
provider = "openai"
api_key = "file-key"
target_language = "Japanese"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "large" || cfg.Language != "en" {
		t.Fatalf("got %+v", cfg)
	}
	if !cfg.CanTranslate() {
		t.Fatal("expected translation usable")
	}
	if cfg.Translation.APIKey != "file-key" || cfg.Translation.TargetLanguage != "Japanese" {
		t.Fatalf("translation = %+v", cfg.Translation)
	}
}

func TestEnvCredentialFillsEmptyKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	path := writeConfig(t, `
[translation]
enabled = true
provider = "openai"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Translation.APIKey != "env-key" {
		t.Fatalf("api key = %q", cfg.Translation.APIKey)
	}
}

func TestFileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	path := writeConfig(t, `
[translation]
provider = "claude"
api_key = "file-key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Translation.APIKey != "file-key" {
		t.Fatalf("api key = %q", cfg.Translation.APIKey)
	}
}

func TestUnknownProviderRejected(t *testing.T) {
	path := writeConfig(t, `
[translation]
provider = "deepl"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := writeConfig(t, `model = "small"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(`model = "large"`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg2, err := cfg.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if cfg2.Model != "large" {
		t.Fatalf("reloaded model = %q", cfg2.Model)
	}
}
