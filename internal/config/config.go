package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MAPHARVEST_"

// ErrNoSearchTerms is returned when neither a term nor a usable input file
// was given.
var ErrNoSearchTerms = errors.New("no search terms: pass -s or add searches to the input file")

// Config holds every setting of a collect run.
type Config struct {
	Output  string        `toml:"output" yaml:"output" validate:"required"`
	Terms   []string      `toml:"terms" yaml:"terms"`
	Input   string        `toml:"input" yaml:"input"`
	Total   int           `toml:"total" yaml:"total" validate:"gte=0"`
	Key     string        `toml:"key" yaml:"key" validate:"oneof=default strict"`
	Browser BrowserConfig `toml:"browser" yaml:"browser"`
	Geocode GeocodeConfig `toml:"geocode" yaml:"geocode"`
	Storage StorageConfig `toml:"storage" yaml:"storage"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

type BrowserConfig struct {
	Headless      bool   `toml:"headless" yaml:"headless"`
	Locale        string `toml:"locale" yaml:"locale" validate:"required"`
	ActionTimeout string `toml:"action_timeout" yaml:"action_timeout"` // e.g. "30s"
	MinDelay      string `toml:"min_delay" yaml:"min_delay"`
	MaxDelay      string `toml:"max_delay" yaml:"max_delay"`
}

type GeocodeConfig struct {
	Enabled       bool    `toml:"enabled" yaml:"enabled"`
	NominatimURL  string  `toml:"nominatim_url" yaml:"nominatim_url" validate:"omitempty,url"`
	UserAgent     string  `toml:"user_agent" yaml:"user_agent" validate:"required"`
	ProxyURL      string  `toml:"proxy_url" yaml:"proxy_url" validate:"omitempty,url"`
	MaxDistanceKM float64 `toml:"max_distance_km" yaml:"max_distance_km" validate:"gte=0"`
}

// StorageConfig enables the optional database mirrors.
type StorageConfig struct {
	SQLite   string `toml:"sqlite" yaml:"sqlite"`
	Postgres string `toml:"postgres" yaml:"postgres"`
}

type LoggingConfig struct {
	Level string `toml:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Dir   string `toml:"dir" yaml:"dir"` // defaults to the dated output directory
}

func Default() *Config {
	return &Config{
		Output: "GMaps Data",
		Input:  "input.txt",
		Key:    "default",
		Browser: BrowserConfig{
			Headless:      true,
			Locale:        "en-GB",
			ActionTimeout: "30s",
			MinDelay:      "1.5s",
			MaxDelay:      "3s",
		},
		Geocode: GeocodeConfig{
			UserAgent:     "mapharvest/0.1 (business listing collector)",
			MaxDistanceKM: 50,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the optional file at path
// (TOML or YAML by extension), a .env file in the working directory and the
// MAPHARVEST_* environment. Flags are applied by the caller afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.merge(path); err != nil {
			return nil, err
		}
	}
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config format %q (use .toml or .yaml)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from MAPHARVEST_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("OUTPUT", &c.Output)
	str("INPUT", &c.Input)
	str("KEY", &c.Key)
	str("LOCALE", &c.Browser.Locale)
	str("NOMINATIM_URL", &c.Geocode.NominatimURL)
	str("USER_AGENT", &c.Geocode.UserAgent)
	str("PROXY", &c.Geocode.ProxyURL)
	str("SQLITE", &c.Storage.SQLite)
	str("POSTGRES_DSN", &c.Storage.Postgres)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_DIR", &c.Logging.Dir)

	if v, ok := lookup(envPrefix + "TOTAL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTOTAL: %w", envPrefix, err)
		}
		c.Total = n
	}
	for name, dst := range map[string]*bool{
		"HEADLESS": &c.Browser.Headless,
		"GEOCODE":  &c.Geocode.Enabled,
	} {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
	}
	return nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, d := range map[string]string{
		"browser.action_timeout": c.Browser.ActionTimeout,
		"browser.min_delay":      c.Browser.MinDelay,
		"browser.max_delay":      c.Browser.MaxDelay,
	} {
		if d == "" {
			continue
		}
		if v, err := time.ParseDuration(d); err != nil || v < 0 {
			return fmt.Errorf("invalid config: %s: %q is not a duration", name, d)
		}
	}
	return nil
}

// Durations returns the parsed browser timings. Call after Validate.
func (b BrowserConfig) Durations() (timeout, minDelay, maxDelay time.Duration) {
	timeout, _ = time.ParseDuration(b.ActionTimeout)
	minDelay, _ = time.ParseDuration(b.MinDelay)
	maxDelay, _ = time.ParseDuration(b.MaxDelay)
	return timeout, minDelay, maxDelay
}

// SearchTerms returns the configured terms, or the non-empty lines of the
// input file when none were given.
func (c *Config) SearchTerms() ([]string, error) {
	var terms []string
	for _, t := range c.Terms {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) > 0 {
		return terms, nil
	}
	if c.Input == "" {
		return nil, ErrNoSearchTerms
	}

	f, err := os.Open(c.Input)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSearchTerms
	}
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if t := strings.TrimSpace(sc.Text()); t != "" {
			terms = append(terms, t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading input file: %w", err)
	}
	if len(terms) == 0 {
		return nil, ErrNoSearchTerms
	}
	return terms, nil
}
