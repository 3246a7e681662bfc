package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Rememory environment variables.
const EnvPrefix = "REMEMORY_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string `yaml:"listen_addr"`
	DBPath                string `yaml:"db_path"`
	AudioDir              string `yaml:"audio_dir"`
	PhotoDir              string `yaml:"photo_dir"`
	LogDir                string `yaml:"log_dir"`
	Model                 string `yaml:"model"`
	UpdateInterval        string `yaml:"update_interval"`
	MaxGPSPoints          int    `yaml:"max_gps_points"`
	MaxContextHistory     int    `yaml:"max_context_history"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets — env vars only, never serialized to YAML.
	GeminiAPIKey    string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":5000",
		DBPath:                "data/rememory.db",
		AudioDir:              "data/audio",
		PhotoDir:              "data/photos",
		LogDir:                "data/logs",
		Model:                 "gemini/gemini-2.0-flash",
		UpdateInterval:        "3m",
		MaxGPSPoints:          100,
		MaxContextHistory:     10,
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be parsed or if the configured model's provider has no
// API key — the server cannot run without its summarization backend.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	if _, err := cfg.APIKey(); err != nil {
		return cfg, warnings, err
	}
	return cfg, warnings, nil
}

// ParsedUpdateInterval returns UpdateInterval as a time.Duration,
// falling back to 3m if the value is invalid.
func (c *Config) ParsedUpdateInterval() time.Duration {
	d, err := time.ParseDuration(c.UpdateInterval)
	if err != nil || d <= 0 {
		return 3 * time.Minute
	}
	return d
}

// Provider returns the provider half of the configured model string.
func (c *Config) Provider() string {
	provider, _, found := strings.Cut(c.Model, "/")
	if !found {
		return ""
	}
	return provider
}

// APIKey returns the secret for the configured model's provider, or an
// error naming the environment variable that must be set.
func (c *Config) APIKey() (string, error) {
	var key, envVar string
	switch c.Provider() {
	case "gemini":
		key, envVar = c.GeminiAPIKey, EnvPrefix+"GEMINI_API_KEY"
	case "openai":
		key, envVar = c.OpenAIAPIKey, EnvPrefix+"OPENAI_API_KEY"
	case "anthropic":
		key, envVar = c.AnthropicAPIKey, EnvPrefix+"ANTHROPIC_API_KEY"
	default:
		return "", fmt.Errorf("invalid model %q: expected provider/model_name with provider gemini, openai, or anthropic", c.Model)
	}

	if key == "" {
		return "", fmt.Errorf("no API key for provider %q: set %s", c.Provider(), envVar)
	}
	return key, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "PHOTO_DIR"); v != "" {
		cfg.PhotoDir = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv(EnvPrefix + "MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvPrefix + "UPDATE_INTERVAL"); v != "" {
		cfg.UpdateInterval = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_GPS_POINTS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.MaxGPSPoints = n
		}
	}
	if v := os.Getenv(EnvPrefix + "MAX_CONTEXT_HISTORY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.MaxContextHistory = n
		}
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if _, err := time.ParseDuration(cfg.UpdateInterval); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid update_interval %q — using default 3m.", cfg.UpdateInterval))
	}
	if cfg.MaxGPSPoints <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid max_gps_points %d — using default 100.", cfg.MaxGPSPoints))
		cfg.MaxGPSPoints = 100
	}
	if cfg.MaxContextHistory <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid max_context_history %d — using default 10.", cfg.MaxContextHistory))
		cfg.MaxContextHistory = 10
	}
	if cfg.GDriveFolderID == "" {
		warnings = append(warnings, "Google Drive folder not configured — state log sync is disabled. Set "+EnvPrefix+"GDRIVE_FOLDER_ID.")
	}

	return warnings
}
