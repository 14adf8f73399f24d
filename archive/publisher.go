package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/jwstascii/jwstascii/logging"
	"github.com/jwstascii/jwstascii/site"
)

var (
	ErrAlreadyPublished = errors.New("a page is already published for this date")
	ErrStaleDate        = errors.New("date is older than the current page")
	ErrBrokenTemplate   = errors.New("document is missing an expected element")
	ErrAlreadySeeded    = errors.New("site already has an archive")
)

// Publisher adds new entries to the archive and keeps its derived
// documents consistent with the daily log: the month pages, the year
// overview, the previous day's forward link and the current page marker.
type Publisher struct {
	index    *Index
	store    *site.FileStore
	renderer *site.Renderer
	logger   *slog.Logger
}

// NewPublisher creates a publisher writing to the site in store.
func NewPublisher(index *Index, store *site.FileStore, renderer *site.Renderer, logger *slog.Logger) *Publisher {
	return &Publisher{
		index:    index,
		store:    store,
		renderer: renderer,
		logger:   logging.Default(logger).With("component", "archive_publisher"),
	}
}

// CheckPublishable returns the date of the current page if a page for date
// may be published after it. Publishing the current date again fails with
// ErrAlreadyPublished and an earlier date with ErrStaleDate.
func (p *Publisher) CheckPublishable(date time.Time) (time.Time, error) {
	current, err := p.index.CurrentPublishedDate()
	if err != nil {
		return time.Time{}, err
	}

	day := site.Day(date)
	switch {
	case day.Equal(current):
		return time.Time{}, fmt.Errorf("%w: %s", ErrAlreadyPublished, day.Format(dateLayout))
	case day.Before(current):
		return time.Time{}, fmt.Errorf("%w: %s is before %s", ErrStaleDate, day.Format(dateLayout), current.Format(dateLayout))
	}
	return current, nil
}

// Publish records entry in the archive. The entry's own page must already
// be written. Steps run in order and the first failure aborts the publish;
// documents written by earlier steps are not restored.
func (p *Publisher) Publish(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validatePublishable(entry); err != nil {
		return err
	}

	previous, err := p.CheckPublishable(entry.Date)
	if err != nil {
		return err
	}

	if err := p.index.Append(entry); err != nil {
		return fmt.Errorf("failed to append to daily log: %w", err)
	}
	if err := p.addToMonth(entry); err != nil {
		return fmt.Errorf("failed to update month archive: %w", err)
	}
	if err := p.relinkPrevious(previous, entry); err != nil {
		return fmt.Errorf("failed to relink previous page: %w", err)
	}
	if err := p.advanceMarker(entry); err != nil {
		return fmt.Errorf("failed to advance current page: %w", err)
	}

	p.logger.Info("entry published",
		"date", entry.Date.Format(dateLayout),
		"title", entry.Title,
		"page", entry.PagePath,
		"previous", previous.Format(dateLayout))
	return nil
}

// Seed creates the archive of an empty site around its first entry. The
// entry's page must already be written.
func (p *Publisher) Seed(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validatePublishable(entry); err != nil {
		return err
	}

	for _, doc := range []string{site.DailyLogPath, site.MarkerPath} {
		exists, err := p.store.Exists(doc)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s exists", ErrAlreadySeeded, doc)
		}
	}

	if err := p.writePage(site.DailyLogPath, site.DailyList{}); err != nil {
		return err
	}
	overview, err := p.store.Exists(site.OverviewPath)
	if err != nil {
		return err
	}
	if !overview {
		if err := p.writePage(site.OverviewPath, site.Overview{}); err != nil {
			return err
		}
	}

	if err := p.index.Append(entry); err != nil {
		return fmt.Errorf("failed to append to daily log: %w", err)
	}
	if err := p.addToMonth(entry); err != nil {
		return fmt.Errorf("failed to update month archive: %w", err)
	}
	if err := p.advanceMarker(entry); err != nil {
		return fmt.Errorf("failed to set current page: %w", err)
	}

	p.logger.Info("archive seeded", "date", entry.Date.Format(dateLayout), "page", entry.PagePath)
	return nil
}

// validatePublishable checks entry and that its page sits at the standard
// location of its date, the only path the marker and the next day's
// relinking can find again.
func validatePublishable(entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if want := site.DayPagePath(entry.Date); entry.PagePath != want {
		return fmt.Errorf("%w: page path %q is not %q", ErrInvalidEntry, entry.PagePath, want)
	}
	return nil
}

func (p *Publisher) writePage(rel string, page site.Page) error {
	content, err := p.renderer.Render(page)
	if err != nil {
		return err
	}
	return p.store.Write(rel, content)
}

// addToMonth inserts entry at the top of its month's archive page, creating
// the page and its overview link on the month's first entry.
func (p *Publisher) addToMonth(entry Entry) error {
	year, month := entry.Date.Year(), entry.Date.Month()
	monthPath := site.MonthIndexPath(year, month)

	exists, err := p.store.Exists(monthPath)
	if err != nil {
		return err
	}

	var content string
	if exists {
		content, err = p.store.Read(monthPath)
	} else {
		if err := p.addToOverview(year, month); err != nil {
			return err
		}
		content, err = p.renderer.Render(site.MonthPage{Year: year, Month: month})
	}
	if err != nil {
		return err
	}

	doc, err := parseDocument(content)
	if err != nil {
		return err
	}

	item := encodeItem(entry)
	if list := doc.Find("ul#" + monthListID).First(); list.Length() > 0 {
		list.PrependHtml(item)
	} else {
		container := doc.Find("main").First()
		if container.Length() == 0 {
			return fmt.Errorf("%w: %s has no main element", ErrBrokenTemplate, monthPath)
		}
		container.AppendHtml(fmt.Sprintf(`<ul id="%s">%s</ul>`, monthListID, item))
	}

	out, err := renderDocument(doc)
	if err != nil {
		return err
	}
	if err := p.store.Write(monthPath, out); err != nil {
		return err
	}

	p.logger.Debug("month archive updated", "path", monthPath, "created", !exists)
	return nil
}

// addToOverview links a new month from the year overview. The month goes
// first in its year's grid; a new year gets its own section placed before
// the daily list link.
func (p *Publisher) addToOverview(year int, month time.Month) error {
	content, err := p.store.Read(site.OverviewPath)
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
		}
		return err
	}

	doc, err := parseDocument(content)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}

	href := site.DirHref(site.MonthDir(year, month))
	section := doc.Find("section#" + yearSectionID(year)).First()

	if section.Length() > 0 {
		grid := section.Find("div.grid").First()
		if grid.Length() == 0 {
			return fmt.Errorf("%w: year %d has no month grid", ErrBrokenTemplate, year)
		}
		if grid.Find(fmt.Sprintf(`a.grid_item[href=%q]`, href)).Length() > 0 {
			p.logger.Warn("month already in overview", "year", year, "month", month.String())
			return nil
		}
		grid.PrependHtml(encodeMonthLink(year, month))
	} else {
		link := doc.Find(dailyListLinkSelector).First()
		if link.Length() == 0 {
			return fmt.Errorf("%w: %s has no %s", ErrBrokenTemplate, site.OverviewPath, dailyListLinkSelector)
		}
		link.BeforeHtml(encodeYearSection(year, month))
	}

	out, err := renderDocument(doc)
	if err != nil {
		return err
	}
	return p.store.Write(site.OverviewPath, out)
}

// relinkPrevious turns the previous page's tomorrow placeholder into a link
// to entry and points its stylesheet at the site-wide path.
func (p *Publisher) relinkPrevious(previous time.Time, entry Entry) error {
	prevPath := site.DayPagePath(previous)
	content, err := p.store.Read(prevPath)
	if err != nil {
		return err
	}

	doc, err := parseDocument(content)
	if err != nil {
		return err
	}

	tomorrow := doc.Find(tomorrowSelector).First()
	if tomorrow.Length() == 0 {
		return fmt.Errorf("%w: %s has no %s", ErrBrokenTemplate, prevPath, tomorrowSelector)
	}
	stylesheet := doc.Find(stylesheetSelector).First()
	if stylesheet.Length() == 0 {
		return fmt.Errorf("%w: %s has no stylesheet link", ErrBrokenTemplate, prevPath)
	}

	tomorrow.ReplaceWithHtml(encodeTomorrowLink(entry))
	stylesheet.SetAttr("href", site.StylesheetHref)

	out, err := renderDocument(doc)
	if err != nil {
		return err
	}
	return p.store.Write(prevPath, out)
}

func (p *Publisher) advanceMarker(entry Entry) error {
	return p.writePage(site.MarkerPath, site.MainIndex{
		PageDir: path.Dir(entry.PagePath),
		Title:   entry.Title,
	})
}
