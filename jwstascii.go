// Package jwstascii publishes one catalog image per day to a static website:
// it picks an image that hasn't been used, stores the image, writes the
// day's page, threads it into the archive and pushes the result.
package jwstascii

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jwstascii/jwstascii/archive"
	"github.com/jwstascii/jwstascii/assets"
	"github.com/jwstascii/jwstascii/catalog"
	"github.com/jwstascii/jwstascii/logging"
	"github.com/jwstascii/jwstascii/runlog"
	"github.com/jwstascii/jwstascii/selection"
	"github.com/jwstascii/jwstascii/site"
)

// ErrNothingToCommit is returned when a run finishes without changing the
// site's working tree.
var ErrNothingToCommit = errors.New("no changes to commit")

// commitLayout formats the page date in commit messages.
const commitLayout = "02 Jan 2006"

// ImageSource reads an item's metadata from its page.
type ImageSource interface {
	FetchImage(ctx context.Context, pageURL string) (*catalog.Image, error)
}

// Repository is the version controlled working tree holding the site.
type Repository interface {
	HasChanges(ctx context.Context) (bool, error)
	AddAll(ctx context.Context) error
	Commit(ctx context.Context, message, author, email string) error
	Push(ctx context.Context, remote string) error
}

// RunRecorder keeps the history of runs.
type RunRecorder interface {
	Start(pageDate time.Time) (*runlog.Run, error)
	Finish(runID uuid.UUID, sourceURL string, runErr error) error
}

// Deps are the collaborators of a Runner. Repository and Runs are
// optional.
type Deps struct {
	Catalog selection.Catalog
	// SelectOptions configure the item selector, e.g. its randomness.
	SelectOptions []selection.Option
	Images        ImageSource
	Downloader    assets.Fetcher
	Assets        assets.Store
	Store         *site.FileStore
	Renderer      *site.Renderer
	Index         *archive.Index
	Publisher     *archive.Publisher
	Repository    Repository
	Runs          RunRecorder
}

// Options tune a run.
type Options struct {
	// Ignore drops matching catalog links before selection.
	Ignore []*regexp.Regexp
	// Fallback is the exclusion policy used once every unused item is
	// exhausted.
	Fallback selection.Policy
	// TestURL, when set, replaces the source link of the published page.
	TestURL string
	// Remote, Author and Email are used when publishing through git.
	Remote string
	Author string
	Email  string
}

// Result describes a published day.
type Result struct {
	Entry     archive.Entry
	ItemURL   string
	ImageHref string
	// Previous is the date of the page the new one follows; zero for the
	// first page of a site.
	Previous time.Time
	Pushed   bool
}

// Runner performs daily publishing runs.
type Runner struct {
	deps     Deps
	opts     Options
	selector *selection.Selector
	// seeder selects the first item of a site that has no history yet.
	seeder *selection.Selector
	logger *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(deps Deps, opts Options, logger *slog.Logger) *Runner {
	logger = logging.Default(logger)
	selectOpts := append([]selection.Option{selection.WithLogger(logger)}, deps.SelectOptions...)

	return &Runner{
		deps:     deps,
		opts:     opts,
		selector: selection.New(deps.Catalog, deps.Index, selectOpts...),
		seeder:   selection.New(deps.Catalog, noHistory{}, selectOpts...),
		logger:   logger.With("component", "runner"),
	}
}

// noHistory is the history of an unpublished site.
type noHistory struct{}

func (noHistory) UsedItemsOrdered() ([]string, error) { return nil, nil }

// CommitMessage returns the commit message of the page published on date.
func CommitMessage(date time.Time) string {
	return "Created new page for " + date.Format(commitLayout)
}

// Run publishes the page for the day of now. It fails before selecting
// anything if that day, or a later one, is already published.
func (r *Runner) Run(ctx context.Context, now time.Time) (*Result, error) {
	date := site.Day(now.UTC())
	return r.record(date, func() (*Result, error) {
		previous, err := r.deps.Publisher.CheckPublishable(date)
		if err != nil {
			return nil, err
		}

		result, err := r.prepare(ctx, r.selector, date, previous)
		if err != nil {
			return nil, err
		}
		if err := r.deps.Publisher.Publish(ctx, result.Entry); err != nil {
			return result, fmt.Errorf("failed to publish: %w", err)
		}

		return r.push(ctx, result)
	})
}

// Init publishes the first page of an empty site for the day of now and
// creates the archive around it. It fails before selecting anything if the
// site already has an archive.
func (r *Runner) Init(ctx context.Context, now time.Time) (*Result, error) {
	date := site.Day(now.UTC())
	return r.record(date, func() (*Result, error) {
		for _, doc := range []string{site.DailyLogPath, site.MarkerPath} {
			exists, err := r.deps.Store.Exists(doc)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, fmt.Errorf("%w: %s exists", archive.ErrAlreadySeeded, doc)
			}
		}

		result, err := r.prepare(ctx, r.seeder, date, time.Time{})
		if err != nil {
			return nil, err
		}
		if err := r.deps.Publisher.Seed(ctx, result.Entry); err != nil {
			return result, fmt.Errorf("failed to seed archive: %w", err)
		}

		return r.push(ctx, result)
	})
}

// record wraps a run in the run log, if there is one.
func (r *Runner) record(date time.Time, run func() (*Result, error)) (*Result, error) {
	logger := r.logger.With("date", date.Format(time.DateOnly))

	if r.deps.Runs == nil {
		result, err := run()
		r.logOutcome(logger, result, err)
		return result, err
	}

	started, err := r.deps.Runs.Start(date)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	logger = logger.With("run_id", started.RunID)

	result, err := run()
	r.logOutcome(logger, result, err)

	var itemURL string
	if result != nil {
		itemURL = result.ItemURL
	}
	if finishErr := r.deps.Runs.Finish(started.RunID, itemURL, err); finishErr != nil {
		logger.Warn("failed to record run result", "error", finishErr)
	}
	return result, err
}

func (r *Runner) logOutcome(logger *slog.Logger, result *Result, err error) {
	if err != nil {
		logger.Error("run failed", "error", err)
		return
	}
	logger.Info("run succeeded",
		"title", result.Entry.Title,
		"page", result.Entry.PagePath,
		"item", result.ItemURL,
		"pushed", result.Pushed)
}

// prepare selects an item, stores its image and writes the day page. The
// archive itself is not touched.
func (r *Runner) prepare(ctx context.Context, selector *selection.Selector, date, previous time.Time) (*Result, error) {
	itemURL, err := selector.SelectNext(ctx, r.opts.Ignore, r.opts.Fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to select item: %w", err)
	}
	r.logger.Info("item selected", "url", itemURL)

	image, err := r.deps.Images.FetchImage(ctx, itemURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read item %s: %w", itemURL, err)
	}
	if err := catalog.ValidateImage(image); err != nil {
		return nil, fmt.Errorf("item %s: %w", itemURL, err)
	}

	asset, err := assets.Download(ctx, r.deps.Downloader, image.DownloadURL)
	if err != nil {
		return nil, err
	}
	href, err := r.deps.Assets.Put(ctx, asset)
	if err != nil {
		return nil, err
	}

	sourceURL := itemURL
	if r.opts.TestURL != "" {
		sourceURL = r.opts.TestURL
	}

	entry := archive.NewEntry(date, image.Title, sourceURL)
	content, err := r.deps.Renderer.Render(site.DayPage{
		Date:        entry.Date,
		Previous:    previous,
		ImageTitle:  image.Title,
		ImagePath:   href,
		SourceURL:   sourceURL,
		Credits:     image.Credits,
		Description: image.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render day page: %w", err)
	}
	if err := r.deps.Store.Write(entry.PagePath, content); err != nil {
		return nil, fmt.Errorf("failed to write day page: %w", err)
	}

	return &Result{
		Entry:     entry,
		ItemURL:   itemURL,
		ImageHref: href,
		Previous:  previous,
	}, nil
}

// push commits every change in the working tree and pushes it.
func (r *Runner) push(ctx context.Context, result *Result) (*Result, error) {
	repo := r.deps.Repository
	if repo == nil {
		return result, nil
	}

	changed, err := repo.HasChanges(ctx)
	if err != nil {
		return result, err
	}
	if !changed {
		return result, ErrNothingToCommit
	}

	if err := repo.AddAll(ctx); err != nil {
		return result, err
	}
	if err := repo.Commit(ctx, CommitMessage(result.Entry.Date), r.opts.Author, r.opts.Email); err != nil {
		return result, err
	}
	if err := repo.Push(ctx, r.opts.Remote); err != nil {
		return result, err
	}

	result.Pushed = true
	return result, nil
}
