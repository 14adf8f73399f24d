// Package config loads the publisher's configuration from defaults, an
// optional YAML file and JWSTASCII_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jwstascii/jwstascii/assets"
	"github.com/jwstascii/jwstascii/catalog"
	"github.com/jwstascii/jwstascii/scraper"
	"github.com/jwstascii/jwstascii/selection"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// JWSTASCII_GIT_BRANCH for git.branch.
const EnvPrefix = "JWSTASCII"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Catalog sources.
const (
	SourceGallery = "gallery"
	SourceFeed    = "feed"
)

// Asset backends.
const (
	BackendDir = "dir"
	BackendS3  = "s3"
)

// Config is the complete publisher configuration.
type Config struct {
	SiteDir   string          `mapstructure:"site_dir" yaml:"site_dir"`
	RunLog    string          `mapstructure:"run_log" yaml:"run_log"`
	Schedule  string          `mapstructure:"schedule" yaml:"schedule"`
	LogFormat string          `mapstructure:"log_format" yaml:"log_format"`
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	Catalog   CatalogConfig   `mapstructure:"catalog" yaml:"catalog"`
	Selection SelectionConfig `mapstructure:"selection" yaml:"selection"`
	Assets    AssetsConfig    `mapstructure:"assets" yaml:"assets"`
	Git       GitConfig       `mapstructure:"git" yaml:"git"`
}

// CatalogConfig configures where items come from and how they are fetched.
// Durations use Go syntax, e.g. "1s" or "2m30s".
type CatalogConfig struct {
	Source            string                `mapstructure:"source" yaml:"source"`
	PageURL           string                `mapstructure:"page_url" yaml:"page_url"`
	FeedURL           string                `mapstructure:"feed_url" yaml:"feed_url"`
	MaxAttempts       int                   `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialBackoff    string                `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        string                `mapstructure:"max_backoff" yaml:"max_backoff"`
	Timeout           string                `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerSecond float64               `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	UserAgent         string                `mapstructure:"user_agent" yaml:"user_agent"`
	Scraper           scraper.ScraperConfig `mapstructure:"scraper" yaml:"scraper"`
}

// SelectionConfig configures how the next item is chosen.
type SelectionConfig struct {
	// Ignore lists regular expressions; matching links are never selected.
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
	// Fallback is the exclusion policy of the second pass: all, none or
	// recent:N.
	Fallback string `mapstructure:"fallback" yaml:"fallback"`
	MaxPages int    `mapstructure:"max_pages" yaml:"max_pages"`
	// TestURL replaces the source link of the published page.
	TestURL string `mapstructure:"test_url" yaml:"test_url"`
}

// AssetsConfig configures where downloaded images are stored.
type AssetsConfig struct {
	Backend string   `mapstructure:"backend" yaml:"backend"`
	S3      S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config locates the bucket of the s3 backend.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// GitConfig configures publishing the site through git.
type GitConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// RepoURL is cloned into the site directory when set and the directory
	// doesn't exist yet.
	RepoURL    string `mapstructure:"repo_url" yaml:"repo_url"`
	Branch     string `mapstructure:"branch" yaml:"branch"`
	Remote     string `mapstructure:"remote" yaml:"remote"`
	Author     string `mapstructure:"author" yaml:"author"`
	Email      string `mapstructure:"email" yaml:"email"`
	SSHKeyPath string `mapstructure:"ssh_key_path" yaml:"ssh_key_path"`
}

// Default returns the default configuration.
func Default() *Config {
	pager := catalog.DefaultPagerConfig()

	runLog := "runs.db"
	if dir, err := Dir(); err == nil {
		runLog = filepath.Join(dir, "runs.db")
	}

	return &Config{
		SiteDir:   "site",
		RunLog:    runLog,
		Schedule:  "0 6 * * *",
		LogFormat: "pretty",
		LogLevel:  "info",
		Catalog: CatalogConfig{
			Source:            SourceGallery,
			PageURL:           pager.PageURL,
			MaxAttempts:       pager.MaxAttempts,
			InitialBackoff:    pager.InitialBackoff.String(),
			MaxBackoff:        pager.MaxBackoff.String(),
			Timeout:           pager.Timeout.String(),
			RequestsPerSecond: pager.RequestsPerSecond,
			UserAgent:         pager.UserAgent,
			Scraper:           scraper.DefaultScraperConfig(),
		},
		Selection: SelectionConfig{
			Ignore:   []string{},
			Fallback: "none",
			MaxPages: selection.DefaultMaxPages,
		},
		Assets: AssetsConfig{
			Backend: BackendDir,
		},
		Git: GitConfig{
			Branch: "main",
			Remote: "origin",
			Author: "jwstascii",
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when path is empty) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for values that would fail at run
// time.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.SiteDir == "" {
		invalid("site_dir is empty")
	}

	switch c.Catalog.Source {
	case SourceGallery:
		if strings.Count(c.Catalog.PageURL, "%d") != 1 {
			invalid("catalog.page_url must contain exactly one %%d")
		}
	case SourceFeed:
		if c.Catalog.FeedURL == "" {
			invalid("catalog.feed_url is required for the feed source")
		}
	default:
		invalid("catalog.source must be %s or %s, got %q", SourceGallery, SourceFeed, c.Catalog.Source)
	}

	if c.Catalog.MaxAttempts < 1 {
		invalid("catalog.max_attempts must be at least 1")
	}
	if _, err := c.PagerConfig(); err != nil {
		invalid("%v", err)
	}
	if _, err := c.IgnorePatterns(); err != nil {
		invalid("selection.ignore: %v", err)
	}
	if _, err := c.FallbackPolicy(); err != nil {
		invalid("selection.fallback: %v", err)
	}
	if c.Selection.MaxPages < 1 {
		invalid("selection.max_pages must be at least 1")
	}

	switch c.Assets.Backend {
	case BackendDir:
	case BackendS3:
		if c.Assets.S3.Bucket == "" {
			invalid("assets.s3.bucket is required for the s3 backend")
		}
	default:
		invalid("assets.backend must be %s or %s, got %q", BackendDir, BackendS3, c.Assets.Backend)
	}

	if c.Git.Enabled {
		if c.Git.Branch == "" || c.Git.Remote == "" {
			invalid("git.branch and git.remote are required when git is enabled")
		}
		if c.Git.Author == "" || c.Git.Email == "" {
			invalid("git.author and git.email are required when git is enabled")
		}
	}

	if c.Schedule != "" {
		cron := gocron.NewDefaultCron(false)
		if err := cron.IsValid(c.Schedule, time.UTC, time.Now()); err != nil {
			invalid("schedule: %v", err)
		}
	}

	return errors.Join(errs...)
}

// PagerConfig returns the catalog network settings.
func (c *Config) PagerConfig() (catalog.PagerConfig, error) {
	durations := map[string]string{
		"catalog.initial_backoff": c.Catalog.InitialBackoff,
		"catalog.max_backoff":     c.Catalog.MaxBackoff,
		"catalog.timeout":         c.Catalog.Timeout,
	}
	parsed := make(map[string]time.Duration, len(durations))
	for key, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return catalog.PagerConfig{}, fmt.Errorf("%s: %w", key, err)
		}
		parsed[key] = d
	}

	return catalog.PagerConfig{
		PageURL:           c.Catalog.PageURL,
		MaxAttempts:       c.Catalog.MaxAttempts,
		InitialBackoff:    parsed["catalog.initial_backoff"],
		MaxBackoff:        parsed["catalog.max_backoff"],
		Timeout:           parsed["catalog.timeout"],
		RequestsPerSecond: c.Catalog.RequestsPerSecond,
		UserAgent:         c.Catalog.UserAgent,
	}, nil
}

// IgnorePatterns compiles selection.ignore.
func (c *Config) IgnorePatterns() ([]*regexp.Regexp, error) {
	return catalog.CompilePatterns(c.Selection.Ignore)
}

// FallbackPolicy parses selection.fallback.
func (c *Config) FallbackPolicy() (selection.Policy, error) {
	return selection.ParsePolicy(c.Selection.Fallback)
}

// S3 returns the settings of the s3 asset backend.
func (c *Config) S3() assets.S3Config {
	return assets.S3Config{
		Bucket:          c.Assets.S3.Bucket,
		Region:          c.Assets.S3.Region,
		Endpoint:        c.Assets.S3.Endpoint,
		AccessKeyID:     c.Assets.S3.AccessKeyID,
		SecretAccessKey: c.Assets.S3.SecretAccessKey,
	}
}

// SiteExists reports whether the site directory already exists.
func (c *Config) SiteExists() bool {
	info, err := os.Stat(c.SiteDir)
	return err == nil && info.IsDir()
}
