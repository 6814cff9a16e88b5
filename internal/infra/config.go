package infra

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. Sensitive values may be
// overridden through environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed struct {
		WSURL           string   `yaml:"ws_url"`
		InstType        string   `yaml:"inst_type"`
		Markets         []string `yaml:"markets"`
		AuthPayload     string   `yaml:"auth_payload"`
		ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
		PingIntervalSec int      `yaml:"ping_interval_sec"`
	} `yaml:"feed"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Replay struct {
		PacePerSec float64 `yaml:"pace_per_sec"`
		Burst      int     `yaml:"burst"`
	} `yaml:"replay"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, fills defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Feed.InstType == "" {
		c.Feed.InstType = "SPOT"
	}
	if c.Feed.ReadTimeoutSec == 0 {
		c.Feed.ReadTimeoutSec = 60
	}
	if c.Feed.PingIntervalSec == 0 {
		c.Feed.PingIntervalSec = 30
	}
	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(GetWorkspaceDir(), "data", "journal.db")
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Feed.WSURL, "ws://") && !strings.HasPrefix(c.Feed.WSURL, "wss://") {
		return fmt.Errorf("invalid feed WS URL: %s", c.Feed.WSURL)
	}
	if len(c.Feed.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	if c.Feed.ReadTimeoutSec <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	return nil
}

// overrideWithEnv lets environment variables take precedence over the file,
// so the signed auth payload never has to live on disk.
func overrideWithEnv(cfg *Config) {
	if cfg.Feed.AuthPayload != "" {
		slog.Warn("auth payload found in config file; prefer STATEFEED_AUTH_PAYLOAD")
	}

	if url := os.Getenv("STATEFEED_WS_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if auth := os.Getenv("STATEFEED_AUTH_PAYLOAD"); auth != "" {
		cfg.Feed.AuthPayload = auth
	}
	if path := os.Getenv("STATEFEED_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
	}
}
