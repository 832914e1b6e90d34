package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"plancal/internal/model"
)

// SourceConfig describes a single ICS subscription source.
type SourceConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
}

// AccountConfig holds the subscribed sources of one account. An account
// with no sources is treated as unlinked.
type AccountConfig struct {
	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls the first day of week in range resolution. Only
	// "monday" is supported; the field exists so a later Sunday option
	// will not change the file format.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") driving
	// periodic event reloads.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HideRecurring removes detected recurring events from grouped views.
	HideRecurring bool `yaml:"hide_recurring" json:"hide_recurring"`

	// ShowAllDay toggles the all-day band in rendered views.
	ShowAllDay bool `yaml:"show_all_day" json:"show_all_day"`

	// DayStartHour / DayEndHour bound the visible hours of timed events,
	// half-open [DayStartHour, DayEndHour).
	DayStartHour int `yaml:"day_start_hour" json:"day_start_hour"`
	DayEndHour   int `yaml:"day_end_hour" json:"day_end_hour"`

	// PersonalColor / ProfessionalColor are rendering-only hex colors for
	// the two accounts. The engine never reads them.
	PersonalColor     string `yaml:"personal_color" json:"personal_color"`
	ProfessionalColor string `yaml:"professional_color" json:"professional_color"`

	// Personal / Professional are the two account source sets.
	Personal     AccountConfig `yaml:"personal" json:"personal"`
	Professional AccountConfig `yaml:"professional" json:"professional"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            "127.0.0.1:8080",
		Timezone:          "UTC",
		WeekStart:         "monday",
		RefreshCron:       "*/15 * * * *",
		HideRecurring:     false,
		ShowAllDay:        true,
		DayStartHour:      0,
		DayEndHour:        24,
		PersonalColor:     "#4a90d9",
		ProfessionalColor: "#d9824a",
		Personal:          AccountConfig{Sources: []SourceConfig{}},
		Professional:      AccountConfig{Sources: []SourceConfig{}},
		BasicAuth:         nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	// Only Monday-first weeks are supported; anything else falls back to
	// avoid surprising layouts.
	if c.WeekStart != "monday" {
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.DayStartHour < 0 || c.DayStartHour > 23 {
		c.DayStartHour = 0
	}
	if c.DayEndHour <= c.DayStartHour || c.DayEndHour > 24 {
		c.DayEndHour = 24
	}
	if c.PersonalColor == "" {
		c.PersonalColor = "#4a90d9"
	}
	if c.ProfessionalColor == "" {
		c.ProfessionalColor = "#d9824a"
	}
	if c.Personal.Sources == nil {
		c.Personal.Sources = []SourceConfig{}
	}
	if c.Professional.Sources == nil {
		c.Professional.Sources = []SourceConfig{}
	}
}

// SourcesFor returns the configured sources for an account.
func (c *Config) SourcesFor(account model.Account) []SourceConfig {
	switch account {
	case model.AccountPersonal:
		return c.Personal.Sources
	case model.AccountProfessional:
		return c.Professional.Sources
	default:
		return nil
	}
}

// ColorFor returns the display color for an account.
func (c *Config) ColorFor(account model.Account) string {
	if account == model.AccountProfessional {
		return c.ProfessionalColor
	}
	return c.PersonalColor
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory if needed,
//     write a default config with 0600 perms, and return the default.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so the caller
				// can decide.
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

// Save writes the configuration to path: parent directory ensured (0700),
// YAML marshaled, written atomically via temp file + rename, final
// permissions 0600.
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

	tmp, err := os.CreateTemp(dir, ".plancal-config-*.tmp")
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

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
