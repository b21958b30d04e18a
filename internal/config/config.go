// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	// Timezone names must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Item modes.
const (
	ItemModeHeadless = "headless"
	ItemModeStatic   = "static"
)

// Mirror kinds, matching storage.Kind*.
const (
	MirrorNone   = "none"
	MirrorLocal  = "local"
	MirrorGCS    = "gcs"
	MirrorMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Output   OutputConfig   `mapstructure:"output"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Keywords KeywordsConfig `mapstructure:"keywords"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig describes the tender portal.
type SiteConfig struct {
	StartURL string `mapstructure:"start_url"`
	// BaseURL resolves relative item links; empty means StartURL.
	BaseURL  string `mapstructure:"base_url"`
	Timezone string `mapstructure:"timezone"`
	// ListSelector matches the item links of a listing page.
	ListSelector string `mapstructure:"list_selector"`
	// NextButtonSelector is left empty to use the item mode's default.
	NextButtonSelector string `mapstructure:"next_button_selector"`
}

// BrowserConfig controls page fetching.
type BrowserConfig struct {
	ItemMode              string `mapstructure:"item_mode"`
	UserAgent             string `mapstructure:"user_agent"`
	Headless              bool   `mapstructure:"headless"`
	ListingTimeoutSeconds int    `mapstructure:"listing_timeout_seconds"`
	ItemTimeoutSeconds    int    `mapstructure:"item_timeout_seconds"`
	FieldWaitSeconds      int    `mapstructure:"field_wait_seconds"`
	NetworkIdleMs         int    `mapstructure:"network_idle_ms"`
}

// OutputConfig sets where artifacts are written.
type OutputConfig struct {
	SnapshotPath    string `mapstructure:"snapshot_path"`
	AnalysisDir     string `mapstructure:"analysis_dir"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// MirrorConfig selects an optional copy of every artifact.
type MirrorConfig struct {
	Kind      string `mapstructure:"kind"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// AnalysisConfig configures the completion service.
type AnalysisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// KeywordsConfig overrides the built-in keyword list when Terms is set.
type KeywordsConfig struct {
	Terms []string `mapstructure:"terms"`
}

// NotifyConfig holds the optional run notification targets.
type NotifyConfig struct {
	WebhookURL            string `mapstructure:"webhook_url"`
	WebhookTimeoutSeconds int    `mapstructure:"webhook_timeout_seconds"`
	PubSubProject         string `mapstructure:"pubsub_project"`
	PubSubTopic           string `mapstructure:"pubsub_topic"`
	// DryRun logs the summary at shutdown instead of only sending it.
	DryRun                bool   `mapstructure:"dry_run"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// LoadDotEnv loads ENV_FILE if set, otherwise .env.local and .env. Missing
// files are ignored and variables already in the environment win.
func LoadDotEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.start_url", "https://app.eop.bg/today")
	v.SetDefault("site.base_url", "https://app.eop.bg")
	v.SetDefault("site.timezone", "Europe/Sofia")
	v.SetDefault("site.list_selector", ".nxlist-group a")
	v.SetDefault("site.next_button_selector", "")
	v.SetDefault("browser.item_mode", ItemModeHeadless)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.listing_timeout_seconds", 40)
	v.SetDefault("browser.item_timeout_seconds", 100)
	v.SetDefault("browser.field_wait_seconds", 10)
	v.SetDefault("browser.network_idle_ms", 500)
	v.SetDefault("output.snapshot_path", "tenders_data.json")
	v.SetDefault("output.analysis_dir", ".")
	v.SetDefault("output.metrics_textfile", "")
	v.SetDefault("mirror.kind", MirrorNone)
	v.SetDefault("mirror.prefix", "tenders")
	v.SetDefault("analysis.enabled", false)
	v.SetDefault("analysis.model", "claude-sonnet-4-5")
	v.SetDefault("analysis.max_tokens", 8000)
	v.SetDefault("keywords.terms", []string{})
	v.SetDefault("notify.webhook_timeout_seconds", 10)
	v.SetDefault("notify.dry_run", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// bindAliases lets the credentials be supplied under their conventional
// unprefixed names as well.
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"analysis.api_key":   {"TENDER_ANALYSIS_API_KEY", "ANTHROPIC_API_KEY"},
		"notify.webhook_url": {"TENDER_NOTIFY_WEBHOOK_URL", "NOTIFY_WEBHOOK_URL"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validateHTTPURL("site.start_url", c.Site.StartURL, true); err != nil {
		return err
	}
	if err := validateHTTPURL("site.base_url", c.Site.BaseURL, false); err != nil {
		return err
	}
	if strings.TrimSpace(c.Site.ListSelector) == "" {
		return errors.New("site.list_selector is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Browser.ItemMode {
	case ItemModeHeadless, ItemModeStatic:
	default:
		return fmt.Errorf("browser.item_mode must be %q or %q", ItemModeHeadless, ItemModeStatic)
	}
	if c.Browser.ListingTimeoutSeconds <= 0 {
		return errors.New("browser.listing_timeout_seconds must be > 0")
	}
	if c.Browser.ItemTimeoutSeconds <= 0 {
		return errors.New("browser.item_timeout_seconds must be > 0")
	}
	if c.Browser.FieldWaitSeconds <= 0 {
		return errors.New("browser.field_wait_seconds must be > 0")
	}
	if c.Browser.NetworkIdleMs <= 0 {
		return errors.New("browser.network_idle_ms must be > 0")
	}
	if strings.TrimSpace(c.Output.SnapshotPath) == "" {
		return errors.New("output.snapshot_path is required")
	}
	switch c.Mirror.Kind {
	case "", MirrorNone, MirrorMemory:
	case MirrorLocal:
		if strings.TrimSpace(c.Mirror.BaseDir) == "" {
			return errors.New("mirror.base_dir must be set when mirror.kind is local")
		}
	case MirrorGCS:
		if strings.TrimSpace(c.Mirror.GCSBucket) == "" {
			return errors.New("mirror.gcs_bucket must be set when mirror.kind is gcs")
		}
	default:
		return fmt.Errorf("mirror.kind %q is not supported", c.Mirror.Kind)
	}
	if c.Analysis.MaxTokens <= 0 {
		return errors.New("analysis.max_tokens must be > 0")
	}
	if err := validateHTTPURL("notify.webhook_url", c.Notify.WebhookURL, false); err != nil {
		return err
	}
	if (c.Notify.PubSubProject == "") != (c.Notify.PubSubTopic == "") {
		return errors.New("notify.pubsub_project and notify.pubsub_topic must be set together")
	}
	return nil
}

func validateHTTPURL(key, raw string, required bool) error {
	if strings.TrimSpace(raw) == "" {
		if required {
			return fmt.Errorf("%s is required", key)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url", key)
	}
	return nil
}

// Location resolves Site.Timezone; empty means UTC.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("site.timezone: %w", err)
	}
	return loc, nil
}

// ListingTimeout returns the listing navigation budget.
func (c Config) ListingTimeout() time.Duration {
	return time.Duration(c.Browser.ListingTimeoutSeconds) * time.Second
}

// ItemTimeout returns the item navigation budget.
func (c Config) ItemTimeout() time.Duration {
	return time.Duration(c.Browser.ItemTimeoutSeconds) * time.Second
}

// FieldWait returns how long a label may take to appear.
func (c Config) FieldWait() time.Duration {
	return time.Duration(c.Browser.FieldWaitSeconds) * time.Second
}

// NetworkIdle returns the quiet period that counts as network idle.
func (c Config) NetworkIdle() time.Duration {
	return time.Duration(c.Browser.NetworkIdleMs) * time.Millisecond
}

// WebhookTimeout returns the per-delivery webhook budget.
func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Notify.WebhookTimeoutSeconds) * time.Second
}
