package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	Paths   PathsConfig
	Storage StorageConfig
	Log     LogConfig
	Watch   WatchConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout string
}

// ChatTimeout parses Ollama.Timeout, falling back to 4 minutes on any
// invalid value. Local models can take a long time on a cold first token.
func (c OllamaConfig) ChatTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 4 * time.Minute
	}
	return d
}

type PathsConfig struct {
	TranscriptsDir string
	OutputDir      string
	LedgerPath     string
	AnalyticsPath  string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type WatchConfig struct {
	Enabled bool
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "gemma3:27b",
			Timeout: "4m",
		},
		Paths: PathsConfig{
			TranscriptsDir: filepath.Join(dataDir, "minutes"),
			OutputDir:      filepath.Join(dataDir, "output"),
			LedgerPath:     filepath.Join(dataDir, "output", "contracts.csv"),
			AnalyticsPath:  filepath.Join(dataDir, "logs", "analytics.csv"),
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "debrief-data"
		}
	}
	return filepath.Join(dir, "debrief")
}

// Load reads configuration from the YAML config file at
// $XDG_CONFIG_HOME/debrief/config.yaml, then applies DEBRIEF_* environment
// variable overrides. The API token is env-only; when empty, bearer auth
// on the management endpoints is disabled.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "debrief", "config.yaml")
}
