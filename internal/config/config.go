package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"mairiecal/internal/grid"
)

// Environment overrides, applied after the YAML file.
const (
	EnvAPIURL    = "MAIRIE_API_URL"
	EnvTokenFile = "MAIRIE_TOKEN_FILE"
	EnvListen    = "MAIRIE_LISTEN"
	EnvLogLevel  = "MAIRIE_LOG_LEVEL"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Europe/Paris"
	defaultAPIBaseURL  = "http://localhost:8000/api"
	defaultAPITimeout  = 10 * time.Second
	defaultRefreshCron = "*/5 * * * *"
	defaultDayStart    = 7
	defaultDayEnd      = 21
	defaultPPH         = 60.0
	defaultLogLevel    = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the schedule's dates and times are read in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// APIBaseURL is the events backend root; "/events/" is appended to it.
	APIBaseURL string        `yaml:"api_base_url" json:"api_base_url"`
	APITimeout time.Duration `yaml:"api_timeout" json:"api_timeout"`

	// TokenFile holds the bearer token. It is re-read on every request.
	TokenFile string `yaml:"token_file,omitempty" json:"token_file,omitempty"`

	// RefreshCron is a standard 5-field cron spec for periodic reloads.
	// "off" disables them.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Time grid.
	DayStartHour  int     `yaml:"day_start_hour" json:"day_start_hour"`
	DayEndHour    int     `yaml:"day_end_hour" json:"day_end_hour"`
	PixelsPerHour float64 `yaml:"pixels_per_hour" json:"pixels_per_hour"`
	MinSlotPixels float64 `yaml:"min_slot_pixels" json:"min_slot_pixels"`

	// FallbackICSURL seeds the offline schedule. Empty uses the built-in
	// demonstration events.
	FallbackICSURL string `yaml:"fallback_ics_url,omitempty" json:"fallback_ics_url,omitempty"`
	ICSCacheDir    string `yaml:"ics_cache_dir,omitempty" json:"ics_cache_dir,omitempty"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Timezone:      defaultTimezone,
		APIBaseURL:    defaultAPIBaseURL,
		APITimeout:    defaultAPITimeout,
		RefreshCron:   defaultRefreshCron,
		DayStartHour:  defaultDayStart,
		DayEndHour:    defaultDayEnd,
		PixelsPerHour: defaultPPH,
		MinSlotPixels: grid.DefaultMinSlotPixels,
		LogLevel:      defaultLogLevel,
	}
}

// Normalize fills in missing or out-of-range values so that partially
// filled files still behave.
func (c *Config) Normalize() {
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = defaultTimezone
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.APITimeout <= 0 {
		c.APITimeout = defaultAPITimeout
	}
	if strings.TrimSpace(c.RefreshCron) == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.DayStartHour < 0 || c.DayStartHour > 23 {
		c.DayStartHour = defaultDayStart
	}
	if c.DayEndHour <= c.DayStartHour || c.DayEndHour > 24 {
		c.DayEndHour = max(defaultDayEnd, c.DayStartHour+1)
		c.DayEndHour = min(c.DayEndHour, 24)
	}
	if c.PixelsPerHour <= 0 {
		c.PixelsPerHour = defaultPPH
	}
	if c.MinSlotPixels < 0 {
		c.MinSlotPixels = grid.DefaultMinSlotPixels
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if c.RefreshEnabled() {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
		}
	}
	return errors.Join(errs...)
}

// RefreshEnabled reports whether periodic refresh is configured.
func (c *Config) RefreshEnabled() bool {
	return !strings.EqualFold(strings.TrimSpace(c.RefreshCron), "off")
}

// Location returns the configured zone, or time.Local when it cannot be
// loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Layout is the grid geometry configured for day and week views.
func (c *Config) Layout() grid.Layout {
	return grid.Layout{
		DayStartHour:  c.DayStartHour,
		PixelsPerHour: c.PixelsPerHour,
		MinSlotPixels: c.MinSlotPixels,
	}
}

// ApplyEnv overrides file values with non-empty environment variables.
// getenv is os.Getenv outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		c.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(getenv(EnvTokenFile)); v != "" {
		c.TokenFile = v
	}
	if v := strings.TrimSpace(getenv(EnvListen)); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// LoadDotEnv loads KEY=VALUE pairs from paths into the process environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path and applies environment overrides.
//
// A missing file is created with defaults (0600) on first run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = DefaultConfig()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".mairiecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
