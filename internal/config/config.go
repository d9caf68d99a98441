// Package config loads and validates audit configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob loaded via Viper.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Tracks  TracksConfig  `mapstructure:"tracks"`
	Perf    PerfConfig    `mapstructure:"perf"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlConfig governs the breadth-first site crawl.
type CrawlConfig struct {
	MaxPages     int    `mapstructure:"max_pages"`
	DelayMs      int    `mapstructure:"delay_ms"`
	UserAgent    string `mapstructure:"user_agent"`
	IgnoreRobots bool   `mapstructure:"ignore_robots"`
}

// HTTPConfig configures the policy-aware fetcher.
type HTTPConfig struct {
	TimeoutSeconds int   `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int64 `mapstructure:"max_body_bytes"`
}

// TracksConfig governs the parallel track orchestration.
type TracksConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Workers        int      `mapstructure:"workers"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	Disabled       []string `mapstructure:"disabled"`
}

// PerfConfig configures the optional external performance provider.
type PerfConfig struct {
	Source   string `mapstructure:"source"`
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// OutputConfig sets where run artifacts land.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. An empty path skips the config
// file and relies on defaults plus SITEAUDIT_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("crawl.max_pages", 50)
	v.SetDefault("crawl.delay_ms", 0)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; SiteAudit/1.0; +https://github.com/avalonreset/siteaudit)")
	v.SetDefault("crawl.ignore_robots", false)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 8*1024*1024)
	v.SetDefault("tracks.enabled", true)
	v.SetDefault("tracks.workers", 7)
	v.SetDefault("tracks.timeout_seconds", 300)
	v.SetDefault("tracks.disabled", []string{})
	v.SetDefault("perf.source", "auto")
	v.SetDefault("perf.endpoint", "")
	v.SetDefault("perf.api_key", "")
	v.SetDefault("output.dir", "seo-audit-output")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.UserAgent == "" {
		return fmt.Errorf("crawl.user_agent must be set")
	}
	if c.Crawl.DelayMs < 0 {
		return fmt.Errorf("crawl.delay_ms must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.Tracks.Workers <= 0 {
		return fmt.Errorf("tracks.workers must be > 0")
	}
	if c.Tracks.TimeoutSeconds <= 0 {
		return fmt.Errorf("tracks.timeout_seconds must be > 0")
	}
	switch c.Perf.Source {
	case "auto", "pagespeed", "off":
	default:
		return fmt.Errorf("perf.source must be one of auto, pagespeed, off")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CrawlDelay converts the politeness delay into a duration.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawl.DelayMs) * time.Millisecond
}

// TrackTimeout converts the per-track timeout into a duration.
func (c Config) TrackTimeout() time.Duration {
	return time.Duration(c.Tracks.TimeoutSeconds) * time.Second
}

// TrackDisabled reports whether a track name was switched off.
func (c Config) TrackDisabled(name string) bool {
	for _, d := range c.Tracks.Disabled {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}
