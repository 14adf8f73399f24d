package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jwstascii/jwstascii/logging"
	"github.com/jwstascii/jwstascii/site"
)

var (
	ErrCorruptArchive = errors.New("archive is corrupt")
	ErrMarkerNotFound = errors.New("current page marker not found")
	ErrDuplicateDate  = errors.New("an entry for this date already exists")
)

// Index is the only reader and writer of the daily log, the document that
// lists every published entry newest first. The log is the authoritative
// record of which catalog items have been used.
type Index struct {
	store  *site.FileStore
	logger *slog.Logger
}

// NewIndex creates an index over the site in store.
func NewIndex(store *site.FileStore, logger *slog.Logger) *Index {
	return &Index{
		store:  store,
		logger: logging.Default(logger).With("component", "archive_index"),
	}
}

// dailyLog is a loaded daily log document.
type dailyLog struct {
	doc  *goquery.Document
	list *goquery.Selection
}

func (i *Index) load() (*dailyLog, error) {
	content, err := i.store.Read(site.DailyLogPath)
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
		}
		return nil, err
	}

	doc, err := parseDocument(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}

	list := doc.Find(dailyListSelector).First()
	if list.Length() == 0 {
		return nil, fmt.Errorf("%w: %s has no %s", ErrCorruptArchive, site.DailyLogPath, dailyListSelector)
	}

	return &dailyLog{doc: doc, list: list}, nil
}

func (l *dailyLog) entries() ([]Entry, error) {
	items := l.list.ChildrenFiltered("li")
	entries := make([]Entry, 0, items.Length())

	var decodeErr error
	items.EachWithBreak(func(n int, li *goquery.Selection) bool {
		entry, err := decodeItem(li)
		if err != nil {
			decodeErr = fmt.Errorf("%w: daily log item %d: %w", ErrCorruptArchive, n, err)
			return false
		}
		entries = append(entries, entry)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	return entries, nil
}

// Entries returns every published entry, newest first.
func (i *Index) Entries() ([]Entry, error) {
	log, err := i.load()
	if err != nil {
		return nil, err
	}
	return log.entries()
}

// UsedItemsOrdered returns the source URL of every entry, newest first.
func (i *Index) UsedItemsOrdered() ([]string, error) {
	entries, err := i.Entries()
	if err != nil {
		return nil, err
	}

	used := make([]string, len(entries))
	for n, e := range entries {
		used[n] = e.SourceURL
	}
	return used, nil
}

// UsedItemSet returns the set of source URLs of every entry.
func (i *Index) UsedItemSet() (map[string]struct{}, error) {
	used, err := i.UsedItemsOrdered()
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(used))
	for _, u := range used {
		set[u] = struct{}{}
	}
	return set, nil
}

// CurrentPublishedDate returns the date of the page the site's index
// currently redirects to.
func (i *Index) CurrentPublishedDate() (time.Time, error) {
	content, err := i.store.Read(site.MarkerPath)
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			return time.Time{}, fmt.Errorf("%w: %w", ErrMarkerNotFound, err)
		}
		return time.Time{}, err
	}

	doc, err := parseDocument(content)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrMarkerNotFound, err)
	}

	target, ok := markerTarget(doc)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s has no redirect", ErrMarkerNotFound, site.MarkerPath)
	}

	if u, err := url.Parse(target); err == nil {
		target = u.Path
	}

	date, err := site.ParseDayDir(target)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrMarkerNotFound, err)
	}
	return date, nil
}

// Append adds entry as the newest item of the daily log.
func (i *Index) Append(entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	log, err := i.load()
	if err != nil {
		return err
	}

	entries, err := log.entries()
	if err != nil {
		return err
	}
	day := site.Day(entry.Date)
	for _, e := range entries {
		if site.Day(e.Date).Equal(day) {
			return fmt.Errorf("%w: %s", ErrDuplicateDate, day.Format(dateLayout))
		}
	}

	log.list.PrependHtml(encodeItem(entry))

	out, err := renderDocument(log.doc)
	if err != nil {
		return err
	}
	if err := i.store.Write(site.DailyLogPath, out); err != nil {
		return err
	}

	i.logger.Debug("daily log appended", "date", day.Format(dateLayout), "source_url", entry.SourceURL, "entries", len(entries)+1)
	return nil
}
