package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// Fetcher names accepted by Config.Fetcher.
const (
	FetcherScrapfly = "scrapfly"
	FetcherDirect   = "direct"
	FetcherChrome   = "chrome"
	FetcherFile     = "file"
)

type Config struct {
	BaseURL        string   `json:"base_url"`
	ProfileBaseURL string   `json:"profile_base_url"`
	ComponentsPath []string `json:"components_path"`
	PageSize       int      `json:"page_size"`
	MaxPages       int      `json:"max_pages"`

	Fetcher          string        `json:"fetcher"`
	ScrapflyAPIURL   string        `json:"scrapfly_api_url"`
	ScrapflyTags     []string      `json:"scrapfly_tags"`
	APIKeyProduction string        `json:"-"`
	APIKeyTest       string        `json:"-"`
	Debug            bool          `json:"debug"`
	DebugFixture     string        `json:"debug_fixture"`
	BypassCloudflare bool          `json:"bypass_cloudflare"`
	Headless         bool          `json:"headless"`
	// Durations are read from the config file by applyFileDurations.
	RequestTimeout   time.Duration `json:"-"`
	MinDelay         time.Duration `json:"-"`
	MaxDelay         time.Duration `json:"-"`
	MaxRetries       int           `json:"max_retries"`
	RetryBackoff     time.Duration `json:"-"`

	DatabaseURL string `json:"database_url"`
	SQLitePath  string `json:"sqlite_path"`

	NormalizePhones bool   `json:"normalize_phones"`
	PhoneRegion     string `json:"phone_region"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://www.yelp.ca",
		ProfileBaseURL: "https://www.yelp.ca/biz/",
		ComponentsPath: []string{"legacyProps", "searchAppProps", "searchPageProps", "mainContentComponentsListProps"},
		PageSize:       10,
		MaxPages:       0,
		Fetcher:        FetcherScrapfly,
		ScrapflyAPIURL: "https://api.scrapfly.io",
		ScrapflyTags:   []string{"player", "project:default"},
		DebugFixture:   "test_yelp_output.txt",
		Headless:       true,
		RequestTimeout: 90 * time.Second,
		MinDelay:       2 * time.Second,
		MaxDelay:       5 * time.Second,
		MaxRetries:     3,
		RetryBackoff:   time.Second,
		PhoneRegion:    "CA",
	}
}

// APIKey picks the fetch credential for the current mode.
func (c *Config) APIKey() string {
	if c.Debug {
		return c.APIKeyTest
	}
	return c.APIKeyProduction
}

// Validate checks the values the crawl cannot run without.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url must not be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if len(c.ComponentsPath) == 0 {
		return errors.New("components path must not be empty")
	}
	switch c.Fetcher {
	case FetcherScrapfly:
		if c.APIKey() == "" {
			if c.Debug {
				return errors.New("API_KEY_TEST is required for the scrapfly fetcher in debug mode")
			}
			return errors.New("API_KEY_PRODUCTION is required for the scrapfly fetcher")
		}
	case FetcherDirect, FetcherChrome, FetcherFile:
	default:
		return fmt.Errorf("unknown fetcher %q", c.Fetcher)
	}
	return nil
}

// Load builds the configuration in three layers, later layers winning:
//  1. DefaultConfig
//  2. the json5 file at path, if path is non-empty (a missing file is an error)
//  3. environment variables, after loading a .env file from the working directory if present
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var file Config
		if err := json5.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := mergo.Merge(cfg, file, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge config %s: %w", path, err)
		}
		if err := applyFileDurations(cfg, raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileDurations holds the duration settings of a config file, written as
// Go duration strings ("90s", "1m30s").
type fileDurations struct {
	RequestTimeout string `json:"request_timeout"`
	MinDelay       string `json:"min_delay"`
	MaxDelay       string `json:"max_delay"`
	RetryBackoff   string `json:"retry_backoff"`
}

func applyFileDurations(cfg *Config, raw []byte) error {
	var file fileDurations
	if err := json5.Unmarshal(raw, &file); err != nil {
		return err
	}

	fields := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"request_timeout", file.RequestTimeout, &cfg.RequestTimeout},
		{"min_delay", file.MinDelay, &cfg.MinDelay},
		{"max_delay", file.MaxDelay, &cfg.MaxDelay},
		{"retry_backoff", file.RetryBackoff, &cfg.RetryBackoff},
	}
	for _, f := range fields {
		if f.val == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(f.val))
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", f.key, f.val, err)
		}
		*f.dst = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.APIKeyProduction = getEnv("API_KEY_PRODUCTION", cfg.APIKeyProduction)
	cfg.APIKeyTest = getEnv("API_KEY_TEST", cfg.APIKeyTest)
	cfg.BaseURL = strings.TrimRight(getEnv("YELP_BASE_URL", cfg.BaseURL), "/")
	cfg.ScrapflyAPIURL = strings.TrimRight(getEnv("SCRAPFLY_API_URL", cfg.ScrapflyAPIURL), "/")
	cfg.Fetcher = strings.ToLower(getEnv("FETCHER", cfg.Fetcher))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.PhoneRegion = strings.ToUpper(getEnv("PHONE_REGION", cfg.PhoneRegion))

	var err error
	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}
	if cfg.MaxRetries, err = envInt("MAX_RETRIES", cfg.MaxRetries); err != nil {
		return err
	}
	if cfg.NormalizePhones, err = envBool("NORMALIZE_PHONES", cfg.NormalizePhones); err != nil {
		return err
	}
	if cfg.Debug, err = envBool("DEBUG", cfg.Debug); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return d, nil
}
