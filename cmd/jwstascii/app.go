package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jwstascii/jwstascii"
	"github.com/jwstascii/jwstascii/archive"
	"github.com/jwstascii/jwstascii/assets"
	"github.com/jwstascii/jwstascii/catalog"
	"github.com/jwstascii/jwstascii/config"
	"github.com/jwstascii/jwstascii/logging"
	"github.com/jwstascii/jwstascii/runlog"
	"github.com/jwstascii/jwstascii/schedule"
	"github.com/jwstascii/jwstascii/selection"
	"github.com/jwstascii/jwstascii/site"
	"github.com/jwstascii/jwstascii/vcs"
	"github.com/spf13/cobra"
)

// app holds the loaded configuration and the base logger of a command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	git    vcs.Runner // replaces the git binary when set
}

// loadApp loads the configuration, applies flag overrides and validates
// the result.
func loadApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"site-dir":   &cfg.SiteDir,
		"log-format": &cfg.LogFormat,
		"log-level":  &cfg.LogLevel,
	}
	for flag, field := range overrides {
		if cmd.Flags().Changed(flag) {
			*field, _ = cmd.Flags().GetString(flag)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, logging.ParseFormat(cfg.LogFormat), logging.ParseLevel(cfg.LogLevel))
	return &app{cfg: cfg, logger: logger}, nil
}

// siteParts are the components reading and writing the site tree.
type siteParts struct {
	store     *site.FileStore
	renderer  *site.Renderer
	index     *archive.Index
	publisher *archive.Publisher
}

func (a *app) openSite() (*siteParts, error) {
	store, err := site.NewFileStore(a.cfg.SiteDir)
	if err != nil {
		return nil, err
	}
	renderer, err := site.NewRenderer()
	if err != nil {
		return nil, err
	}

	index := archive.NewIndex(store, a.logger)
	return &siteParts{
		store:     store,
		renderer:  renderer,
		index:     index,
		publisher: archive.NewPublisher(index, store, renderer, a.logger),
	}, nil
}

// catalogParts are the components reading the external gallery.
type catalogParts struct {
	pager   *catalog.Pager
	client  *catalog.Client
	catalog selection.Catalog
}

func (a *app) openCatalog() (*catalogParts, error) {
	pagerConfig, err := a.cfg.PagerConfig()
	if err != nil {
		return nil, err
	}
	pager := catalog.NewPager(pagerConfig, nil, a.logger)

	client, err := catalog.NewClient(pager, a.cfg.Catalog.Scraper, a.logger)
	if err != nil {
		return nil, err
	}

	parts := &catalogParts{pager: pager, client: client, catalog: client}
	if a.cfg.Catalog.Source == config.SourceFeed {
		parts.catalog = catalog.NewFeedCatalog(a.cfg.Catalog.FeedURL, pager)
	}
	return parts, nil
}

func (a *app) selectOptions() []selection.Option {
	return []selection.Option{selection.WithMaxPages(a.cfg.Selection.MaxPages)}
}

func (a *app) assetStore(ctx context.Context, store *site.FileStore) (assets.Store, error) {
	if a.cfg.Assets.Backend != config.BackendS3 {
		return assets.NewDirStore(store, a.logger), nil
	}

	client, err := assets.NewS3Client(ctx, a.cfg.S3())
	if err != nil {
		return nil, err
	}
	return assets.NewS3Store(client, a.cfg.Assets.S3.Bucket, a.logger), nil
}

// repository prepares the site's git working tree, cloning it first when a
// repository URL is configured and the site directory doesn't exist yet.
// An existing tree is reset to the remote branch so that documents left by
// a failed publish never reach the next commit. It returns nil when git
// publishing is disabled.
func (a *app) repository(ctx context.Context) (*vcs.Repo, error) {
	git := a.cfg.Git
	if !git.Enabled {
		return nil, nil
	}

	opts := []vcs.Option{vcs.WithSSHKey(git.SSHKeyPath), vcs.WithLogger(a.logger)}
	if a.git != nil {
		opts = append(opts, vcs.WithRunner(a.git))
	}

	var repo *vcs.Repo
	if git.RepoURL != "" && !a.cfg.SiteExists() {
		cloned, err := vcs.Clone(ctx, git.RepoURL, a.cfg.SiteDir, opts...)
		if err != nil {
			return nil, err
		}
		repo = cloned
	} else {
		repo = vcs.Open(a.cfg.SiteDir, opts...)
	}

	if err := repo.Checkout(ctx, git.Branch); err != nil {
		return nil, err
	}
	if err := repo.Reset(ctx, git.Remote); err != nil {
		return nil, err
	}
	return repo, nil
}

// runner wires a Runner from the configuration. The returned function
// releases its resources.
func (a *app) runner(ctx context.Context) (*jwstascii.Runner, func(), error) {
	// The clone, if any, has to happen before the site directory is created.
	repo, err := a.repository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare repository: %w", err)
	}

	parts, err := a.openSite()
	if err != nil {
		return nil, nil, err
	}
	cat, err := a.openCatalog()
	if err != nil {
		return nil, nil, err
	}
	store, err := a.assetStore(ctx, parts.store)
	if err != nil {
		return nil, nil, err
	}

	ignore, err := a.cfg.IgnorePatterns()
	if err != nil {
		return nil, nil, err
	}
	fallback, err := a.cfg.FallbackPolicy()
	if err != nil {
		return nil, nil, err
	}

	deps := jwstascii.Deps{
		Catalog:       cat.catalog,
		SelectOptions: a.selectOptions(),
		Images:        cat.client,
		Downloader:    cat.pager,
		Assets:        store,
		Store:         parts.store,
		Renderer:      parts.renderer,
		Index:         parts.index,
		Publisher:     parts.publisher,
	}
	if repo != nil {
		deps.Repository = repo
	}

	cleanup := func() {}
	if a.cfg.RunLog != "" {
		runs, err := runlog.Open(a.cfg.RunLog)
		if err != nil {
			return nil, nil, err
		}
		deps.Runs = runs
		cleanup = func() { runs.Close() }
	}

	runner := jwstascii.NewRunner(deps, jwstascii.Options{
		Ignore:   ignore,
		Fallback: fallback,
		TestURL:  a.cfg.Selection.TestURL,
		Remote:   a.cfg.Git.Remote,
		Author:   a.cfg.Git.Author,
		Email:    a.cfg.Git.Email,
	}, a.logger)

	return runner, cleanup, nil
}

// publishTask publishes today's page on each call with a runner built for
// that call alone, so every scheduled run starts from a freshly reset tree.
func (a *app) publishTask() schedule.Task {
	return func(ctx context.Context) error {
		runner, cleanup, err := a.runner(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		_, err = runner.Run(ctx, time.Now())
		return err
	}
}
