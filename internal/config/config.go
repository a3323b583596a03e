package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL       string `yaml:"base_url"`
	Domain        string `yaml:"domain"`
	ThresholdDays int    `yaml:"threshold_days"`
	CookiePrefix  string `yaml:"cookie_prefix"`
	Workdir       string `yaml:"workdir"`
	LogFile       string `yaml:"log_file"`
	ScreenshotDir string `yaml:"screenshot_dir"`

	Browser  BrowserConfig  `yaml:"browser"`
	Pacing   PacingConfig   `yaml:"pacing"`
	Telegram TelegramConfig `yaml:"telegram"`
	GitHub   GitHubConfig   `yaml:"github"`
	Log      LogConfig      `yaml:"log"`
	TUI      TUIConfig      `yaml:"tui"`

	// Accounts come from the ACCOUNTS environment variable, not the file.
	Accounts []Account `yaml:"-"`
	// Warnings collects non-fatal diagnostics raised while loading
	// (malformed account entries and the like). The caller logs them.
	Warnings []string `yaml:"-"`
}

type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CookieEnv string `json:"cookie_env"`
}

// Label returns the display name for an account, falling back to the id.
func (a Account) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

type BrowserConfig struct {
	Headless   bool          `yaml:"headless"`
	Bin        string        `yaml:"bin"`
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	NavTimeout time.Duration `yaml:"-"`
	RawTimeout string        `yaml:"nav_timeout"`
}

type PacingConfig struct {
	Min    time.Duration `yaml:"-"`
	Max    time.Duration `yaml:"-"`
	RawMin string        `yaml:"min"`
	RawMax string        `yaml:"max"`
}

type TelegramConfig struct {
	ChatID string `yaml:"chat_id"`
	Token  string `yaml:"-"` // TELEGRAM_BOT_TOKEN
}

type GitHubConfig struct {
	Repo  string `yaml:"repo"` // owner/name; defaults to GITHUB_REPOSITORY
	Token string `yaml:"-"`    // GITHUB_TOKEN
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

// Load reads the optional YAML config and the ACCOUNTS environment variable.
// A missing config file is not an error; every key has a default.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	accounts, warnings := ParseAccounts(os.Getenv("ACCOUNTS"))
	cfg.Accounts = accounts
	cfg.Warnings = warnings

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() error {
	if c.BaseURL == "" {
		c.BaseURL = "https://hub.weirdhost.xyz/server/"
	}
	if c.Domain == "" {
		c.Domain = "hub.weirdhost.xyz"
	}
	if c.ThresholdDays == 0 {
		c.ThresholdDays = 2
	}
	if v := os.Getenv("RENEW_THRESHOLD_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse RENEW_THRESHOLD_DAYS %q: %w", v, err)
		}
		c.ThresholdDays = n
	}
	if c.CookiePrefix == "" {
		c.CookiePrefix = "remember_web"
	}
	if c.Workdir == "" {
		c.Workdir = "/tmp/hostkeeper"
	}
	if c.LogFile == "" {
		c.LogFile = c.Workdir + "/logs/hostkeeper.log"
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = c.Workdir + "/screenshots"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Browser.Width == 0 {
		c.Browser.Width = 1920
	}
	if c.Browser.Height == 0 {
		c.Browser.Height = 1080
	}
	if c.Browser.RawTimeout == "" {
		c.Browser.RawTimeout = "30s"
	}
	d, err := time.ParseDuration(c.Browser.RawTimeout)
	if err != nil {
		return fmt.Errorf("parse browser.nav_timeout %q: %w", c.Browser.RawTimeout, err)
	}
	c.Browser.NavTimeout = d

	if c.Pacing.RawMin == "" {
		c.Pacing.RawMin = "3s"
	}
	if c.Pacing.RawMax == "" {
		c.Pacing.RawMax = "8s"
	}
	if c.Pacing.Min, err = time.ParseDuration(c.Pacing.RawMin); err != nil {
		return fmt.Errorf("parse pacing.min %q: %w", c.Pacing.RawMin, err)
	}
	if c.Pacing.Max, err = time.ParseDuration(c.Pacing.RawMax); err != nil {
		return fmt.Errorf("parse pacing.max %q: %w", c.Pacing.RawMax, err)
	}

	if c.TUI.RawInterval == "" {
		c.TUI.RawInterval = "1s"
	}
	tuiInterval, err := time.ParseDuration(c.TUI.RawInterval)
	if err != nil {
		return fmt.Errorf("parse tui.refresh_interval %q: %w", c.TUI.RawInterval, err)
	}
	if tuiInterval <= 0 {
		return fmt.Errorf("tui.refresh_interval must be positive, got %s", c.TUI.RawInterval)
	}
	c.TUI.RefreshInterval = tuiInterval

	c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	if c.Telegram.ChatID == "" {
		c.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}

	c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	if c.GitHub.Repo == "" {
		c.GitHub.Repo = os.Getenv("GITHUB_REPOSITORY")
	}

	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}

	return nil
}

func (c *Config) validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("no valid accounts configured (set the ACCOUNTS env var)")
	}
	if c.ThresholdDays < 0 {
		return fmt.Errorf("threshold_days must be >= 0, got %d", c.ThresholdDays)
	}
	if c.Pacing.Min > c.Pacing.Max {
		return fmt.Errorf("pacing.min %s exceeds pacing.max %s", c.Pacing.Min, c.Pacing.Max)
	}
	return nil
}

// ServerURL resolves an account's resource page. A bare server id is joined
// onto the base URL; a full URL passes through untouched.
func (c *Config) ServerURL(a Account) string {
	id := strings.TrimSpace(a.ID)
	if strings.HasPrefix(id, "http") {
		return id
	}
	return c.BaseURL + id
}
