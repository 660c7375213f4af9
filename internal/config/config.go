package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CalendarConfig describes one tracked calendar: the identifier used in
// the page's event blocks and the duration ledger, plus the ICS feed
// used as the authoritative fallback when the page cannot be parsed.
type CalendarConfig struct {
	// ID is the calendar identifier as exposed by the calendar page.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// ICSURL is the calendar's ICS subscription endpoint.
	ICSURL string `yaml:"ics_url" json:"ics_url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the usage API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone; all day keys are formed
	// in this zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// PageURL is the calendar web page the scanner inspects.
	PageURL string `yaml:"page_url" json:"page_url"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for
	// the periodic refresh cycle.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BackfillDays / HorizonDays bound the tracked window around the
	// current day.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`

	// LedgerPath is the sqlite database holding persisted totals.
	LedgerPath string `yaml:"ledger_path" json:"ledger_path"`

	// CacheDir holds the ICS fetcher's conditional-request cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ScanTimeoutSec bounds one browser capture pass.
	ScanTimeoutSec int `yaml:"scan_timeout_sec" json:"scan_timeout_sec"`

	// Verify enables the development-only cross-check diagnostics.
	Verify bool `yaml:"verify" json:"verify"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Calendars is the list of tracked calendars.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "UTC",
		RefreshCron:    "*/15 * * * *",
		BackfillDays:   1,
		HorizonDays:    7,
		LedgerPath:     "/var/lib/caltrack/ledger.db",
		CacheDir:       "/var/lib/caltrack/ics-cache",
		ScanTimeoutSec: 30,
		LogLevel:       "info",
		Calendars:      []CalendarConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially filled configs from older versions still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "/var/lib/caltrack/ledger.db"
	}
	if c.CacheDir == "" {
		c.CacheDir = "/var/lib/caltrack/ics-cache"
	}
	if c.ScanTimeoutSec <= 0 {
		c.ScanTimeoutSec = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
}

// Load loads configuration from the given YAML path. If the file does
// not exist, a default config is written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory if needed.
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

	tmp, err := os.CreateTemp(dir, ".caltrack-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
