package config

import (
	"testing"
	"time"

	"github.com/jwstascii/jwstascii/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault_Valid verifies the defaults pass validation
func TestDefault_Valid(t *testing.T) {
	withHome(t)
	require.NoError(t, Default().Validate())
}

// TestLoad_EnvironmentOverrides verifies JWSTASCII_* variables win over the
// file and the defaults
func TestLoad_EnvironmentOverrides(t *testing.T) {
	withHome(t)
	t.Setenv("JWSTASCII_SITE_DIR", "/env/site")
	t.Setenv("JWSTASCII_GIT_BRANCH", "gh-pages")
	t.Setenv("JWSTASCII_CATALOG_MAX_ATTEMPTS", "9")
	t.Setenv("JWSTASCII_SELECTION_TEST_URL", "https://example.com/test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/site", cfg.SiteDir)
	assert.Equal(t, "gh-pages", cfg.Git.Branch)
	assert.Equal(t, 9, cfg.Catalog.MaxAttempts)
	assert.Equal(t, "https://example.com/test", cfg.Selection.TestURL)
}

// TestPagerConfig verifies duration parsing
func TestPagerConfig(t *testing.T) {
	withHome(t)
	cfg := Default()
	cfg.Catalog.InitialBackoff = "250ms"
	cfg.Catalog.MaxBackoff = "2m"

	pager, err := cfg.PagerConfig()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, pager.InitialBackoff)
	assert.Equal(t, 2*time.Minute, pager.MaxBackoff)
	assert.Equal(t, 30*time.Second, pager.Timeout)
	assert.Equal(t, cfg.Catalog.PageURL, pager.PageURL)

	cfg.Catalog.Timeout = "soon"
	_, err = cfg.PagerConfig()
	assert.ErrorContains(t, err, "catalog.timeout")
}

// TestFallbackPolicy verifies the fallback is parsed
func TestFallbackPolicy(t *testing.T) {
	withHome(t)
	cfg := Default()

	policy, err := cfg.FallbackPolicy()
	require.NoError(t, err)
	assert.Equal(t, selection.ExcludeNone(), policy)

	cfg.Selection.Fallback = "recent:3"
	policy, err = cfg.FallbackPolicy()
	require.NoError(t, err)
	assert.Equal(t, selection.ExcludeRecent(3), policy)
}

// TestValidate verifies each rule in isolation
func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"empty site dir": {
			mutate: func(c *Config) { c.SiteDir = "" },
			want:   "site_dir",
		},
		"unknown source": {
			mutate: func(c *Config) { c.Catalog.Source = "ftp" },
			want:   "catalog.source",
		},
		"page url without placeholder": {
			mutate: func(c *Config) { c.Catalog.PageURL = "https://example.com/gallery" },
			want:   "catalog.page_url",
		},
		"feed without url": {
			mutate: func(c *Config) { c.Catalog.Source = SourceFeed },
			want:   "catalog.feed_url",
		},
		"no attempts": {
			mutate: func(c *Config) { c.Catalog.MaxAttempts = 0 },
			want:   "catalog.max_attempts",
		},
		"bad duration": {
			mutate: func(c *Config) { c.Catalog.MaxBackoff = "forever" },
			want:   "catalog.max_backoff",
		},
		"bad ignore pattern": {
			mutate: func(c *Config) { c.Selection.Ignore = []string{"("} },
			want:   "selection.ignore",
		},
		"bad fallback": {
			mutate: func(c *Config) { c.Selection.Fallback = "sometimes" },
			want:   "selection.fallback",
		},
		"no pages": {
			mutate: func(c *Config) { c.Selection.MaxPages = 0 },
			want:   "selection.max_pages",
		},
		"unknown backend": {
			mutate: func(c *Config) { c.Assets.Backend = "ftp" },
			want:   "assets.backend",
		},
		"s3 without bucket": {
			mutate: func(c *Config) { c.Assets.Backend = BackendS3 },
			want:   "assets.s3.bucket",
		},
		"git without email": {
			mutate: func(c *Config) { c.Git.Enabled = true },
			want:   "git.email",
		},
		"bad schedule": {
			mutate: func(c *Config) { c.Schedule = "every day" },
			want:   "schedule",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			withHome(t)
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// TestValidate_Collects verifies every problem is reported at once
func TestValidate_Collects(t *testing.T) {
	withHome(t)
	cfg := Default()
	cfg.SiteDir = ""
	cfg.Assets.Backend = "ftp"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site_dir")
	assert.Contains(t, err.Error(), "assets.backend")
}

// TestS3 verifies the backend settings are passed through
func TestS3(t *testing.T) {
	withHome(t)
	cfg := Default()
	cfg.Assets.S3 = S3Config{Bucket: "b", Region: "eu-west-1", Endpoint: "http://localhost:9000"}

	s3 := cfg.S3()
	assert.Equal(t, "b", s3.Bucket)
	assert.Equal(t, "eu-west-1", s3.Region)
	assert.Equal(t, "http://localhost:9000", s3.Endpoint)
}
