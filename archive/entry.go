// Package archive maintains the published site's history: the daily log of
// every published entry, the per-month archive pages, the year overview and
// the pointer to the current day.
package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/jwstascii/jwstascii/site"
)

// ErrInvalidEntry is returned for entries missing a required field.
var ErrInvalidEntry = errors.New("invalid archive entry")

// Entry is one published day.
type Entry struct {
	// Date is the entry's key; an archive holds at most one entry per day.
	Date      time.Time
	Title     string
	SourceURL string
	// PagePath is the site-relative path of the published page.
	PagePath string
}

// NewEntry creates the entry for a page published on date at its standard
// location.
func NewEntry(date time.Time, title, sourceURL string) Entry {
	day := site.Day(date)
	return Entry{
		Date:      day,
		Title:     title,
		SourceURL: sourceURL,
		PagePath:  site.DayPagePath(day),
	}
}

// Href returns the absolute link to the entry's page.
func (e Entry) Href() string {
	return site.Href(e.PagePath)
}

// Validate checks that every field is set.
func (e Entry) Validate() error {
	switch {
	case e.Date.IsZero():
		return fmt.Errorf("%w: date is empty", ErrInvalidEntry)
	case e.Title == "":
		return fmt.Errorf("%w: title is empty", ErrInvalidEntry)
	case e.SourceURL == "":
		return fmt.Errorf("%w: source URL is empty", ErrInvalidEntry)
	case e.PagePath == "":
		return fmt.Errorf("%w: page path is empty", ErrInvalidEntry)
	}
	return nil
}
