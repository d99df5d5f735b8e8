package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/settings"
)

// Browser modes.
const (
	BrowserLocal  = "local"
	BrowserRemote = "remote"
	BrowserDocker = "docker"
)

// Config holds all configuration for butler.
type Config struct {
	// Model
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Server
	Addr   string `envconfig:"BUTLER_ADDR" default:":8080"`
	DBPath string `envconfig:"BUTLER_DB_PATH" default:"data/butler.db"`

	// Operator settings
	Location   string   `envconfig:"BUTLER_LOCATION" default:""`
	Dietary    string   `envconfig:"BUTLER_DIETARY" default:"none"`
	SpiceLevel string   `envconfig:"BUTLER_SPICE_LEVEL" default:"medium"`
	Cuisine    string   `envconfig:"BUTLER_CUISINE" default:""`
	BudgetMin  int      `envconfig:"BUTLER_BUDGET_MIN" default:"0"`
	BudgetMax  int      `envconfig:"BUTLER_BUDGET_MAX" default:"5000"`
	Platforms  []string `envconfig:"BUTLER_PLATFORMS" default:"swiggy,zomato,blinkit"`

	// Browser
	BrowserMode        string        `envconfig:"BROWSER_MODE" default:"local"` // local, remote, docker
	BrowserRemoteURL   string        `envconfig:"BROWSER_REMOTE_URL" default:""`
	BrowserDockerPort  int           `envconfig:"BROWSER_DOCKER_PORT" default:"9222"`
	BrowserHeadless    bool          `envconfig:"BROWSER_HEADLESS" default:"false"`
	BrowserLoadTimeout time.Duration `envconfig:"BROWSER_LOAD_TIMEOUT" default:"30s"`
	BrowserSettleDelay time.Duration `envconfig:"BROWSER_SETTLE_DELAY" default:"2s"`
	BrowserActionDelay time.Duration `envconfig:"BROWSER_ACTION_DELAY" default:"1s"`

	// Workflow and session
	PendingTTL      time.Duration `envconfig:"PENDING_TTL" default:"15m"`
	SessionMaxTurns int           `envconfig:"SESSION_MAX_TURNS" default:"40"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"24h"`
	CacheEnabled    bool          `envconfig:"CACHE_ENABLED" default:"true"`
	JanitorSchedule string        `envconfig:"JANITOR_SCHEDULE" default:"@every 1m"`

	// Observability
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv reads configuration from the environment only.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	switch c.BrowserMode {
	case BrowserLocal:
	case BrowserDocker:
		if c.BrowserDockerPort < 1 || c.BrowserDockerPort > 65535 {
			return fmt.Errorf("BROWSER_DOCKER_PORT %d is out of range", c.BrowserDockerPort)
		}
	case BrowserRemote:
		if c.BrowserRemoteURL == "" {
			return fmt.Errorf("BROWSER_REMOTE_URL is required when BROWSER_MODE=remote")
		}
	default:
		return fmt.Errorf("unknown BROWSER_MODE %q", c.BrowserMode)
	}
	if c.BudgetMax < c.BudgetMin {
		return fmt.Errorf("BUTLER_BUDGET_MAX (%d) is below BUTLER_BUDGET_MIN (%d)", c.BudgetMax, c.BudgetMin)
	}
	if _, err := c.EnabledPlatforms(); err != nil {
		return err
	}
	return nil
}

// EnabledPlatforms parses BUTLER_PLATFORMS, dropping duplicates.
func (c *Config) EnabledPlatforms() ([]domain.PlatformID, error) {
	var out []domain.PlatformID
	seen := map[domain.PlatformID]bool{}
	for _, p := range c.Platforms {
		if strings.TrimSpace(p) == "" {
			continue
		}
		id, err := domain.ParsePlatform(p)
		if err != nil {
			return nil, fmt.Errorf("BUTLER_PLATFORMS: %w", err)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// Settings returns the operator settings snapshot described by c.
func (c *Config) Settings() *settings.Static {
	platforms, _ := c.EnabledPlatforms()
	return settings.NewStatic(domain.Settings{
		APIKey:   c.GeminiAPIKey,
		Location: c.Location,
		Preferences: domain.Preferences{
			Dietary:    c.Dietary,
			SpiceLevel: c.SpiceLevel,
			Cuisine:    c.Cuisine,
			Budget:     domain.Budget{Min: c.BudgetMin, Max: c.BudgetMax},
		},
		EnabledPlatforms: platforms,
	})
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
