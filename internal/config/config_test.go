package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "DB_PATH", "AUDIO_DIR", "PHOTO_DIR", "LOG_DIR",
		"MODEL", "UPDATE_INTERVAL", "MAX_GPS_POINTS", "MAX_CONTEXT_HISTORY",
		"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "CONFIG",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "test-key")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":5000" {
		t.Fatalf("expected default listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "data/rememory.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.AudioDir != "data/audio" || cfg.PhotoDir != "data/photos" || cfg.LogDir != "data/logs" {
		t.Fatalf("unexpected default dirs: %q %q %q", cfg.AudioDir, cfg.PhotoDir, cfg.LogDir)
	}
	if cfg.Model != "gemini/gemini-2.0-flash" {
		t.Fatalf("expected default model, got %q", cfg.Model)
	}
	if cfg.UpdateInterval != "3m" {
		t.Fatalf("expected default update_interval, got %q", cfg.UpdateInterval)
	}
	if cfg.MaxGPSPoints != 100 {
		t.Fatalf("expected default max_gps_points 100, got %d", cfg.MaxGPSPoints)
	}
	if cfg.MaxContextHistory != 10 {
		t.Fatalf("expected default max_context_history 10, got %d", cfg.MaxContextHistory)
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "test-key")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
listen_addr: ":8080"
db_path: /custom/db.sqlite
audio_dir: /custom/audio
photo_dir: /custom/photos
log_dir: /custom/logs
model: openai/gpt-4o
update_interval: 5m
max_gps_points: 250
max_context_history: 20
gdrive_folder_id: my-folder
google_credentials_file: /path/to/creds.json
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, warnings, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected yaml listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if cfg.Model != "openai/gpt-4o" {
		t.Fatalf("expected yaml model, got %q", cfg.Model)
	}
	if cfg.MaxGPSPoints != 250 || cfg.MaxContextHistory != 20 {
		t.Fatalf("unexpected limits: %d %d", cfg.MaxGPSPoints, cfg.MaxContextHistory)
	}
	if cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive_folder_id, got %q", cfg.GDriveFolderID)
	}
}

func TestEnvOverridesBeatYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "test-key")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("db_path: /from/yaml.db\nupdate_interval: 10m\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvPrefix+"DB_PATH", "/from/env.db")
	t.Setenv(EnvPrefix+"UPDATE_INTERVAL", "90s")
	t.Setenv(EnvPrefix+"MAX_GPS_POINTS", "42")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env.db" {
		t.Fatalf("expected env db_path to win, got %q", cfg.DBPath)
	}
	if cfg.UpdateInterval != "90s" {
		t.Fatalf("expected env update_interval to win, got %q", cfg.UpdateInterval)
	}
	if cfg.MaxGPSPoints != 42 {
		t.Fatalf("expected env max_gps_points, got %d", cfg.MaxGPSPoints)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "gem-secret")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "ant-secret")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	// Keys in the YAML file must be ignored.
	if err := os.WriteFile(configPath, []byte("gemini_api_key: from-yaml\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GeminiAPIKey != "gem-secret" {
		t.Fatalf("expected env gemini key, got %q", cfg.GeminiAPIKey)
	}
	if cfg.AnthropicAPIKey != "ant-secret" {
		t.Fatalf("expected env anthropic key, got %q", cfg.AnthropicAPIKey)
	}
}

func TestMissingProviderKeyFatal(t *testing.T) {
	clearEnv(t)
	// OpenAI key present but the configured provider is gemini.
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "test-key")

	_, _, err := Load("")
	if err == nil {
		t.Fatal("expected error when the configured provider has no API key")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected error naming the env var, got %v", err)
	}
}

func TestInvalidModelFatal(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "test-key")
	t.Setenv(EnvPrefix+"MODEL", "gpt-4o")

	_, _, err := Load("")
	if err == nil {
		t.Fatal("expected error for model without provider prefix")
	}
}

func TestParsedUpdateInterval(t *testing.T) {
	cfg := Config{UpdateInterval: "45s"}
	if got := cfg.ParsedUpdateInterval(); got != 45*time.Second {
		t.Fatalf("expected 45s, got %v", got)
	}

	cfg.UpdateInterval = "garbage"
	if got := cfg.ParsedUpdateInterval(); got != 3*time.Minute {
		t.Fatalf("expected 3m fallback, got %v", got)
	}

	cfg.UpdateInterval = "-1m"
	if got := cfg.ParsedUpdateInterval(); got != 3*time.Minute {
		t.Fatalf("expected 3m fallback for non-positive, got %v", got)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "test-key")
	t.Setenv(EnvPrefix+"UPDATE_INTERVAL", "soon")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var foundInterval, foundDrive bool
	for _, w := range warnings {
		if strings.Contains(w, "update_interval") {
			foundInterval = true
		}
		if strings.Contains(w, "GDRIVE_FOLDER_ID") {
			foundDrive = true
		}
	}
	if !foundInterval {
		t.Fatalf("expected update_interval warning, got %v", warnings)
	}
	if !foundDrive {
		t.Fatalf("expected drive sync warning, got %v", warnings)
	}
}

func TestBadYAMLRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "test-key")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("listen_addr: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, err := Load(configPath); err == nil {
		t.Fatal("expected parse error for bad YAML")
	}
}
