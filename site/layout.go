// Package site knows the on-disk shape of the published website: where each
// document lives, how to read and write it, and how new documents are
// rendered from templates.
package site

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Fixed documents of the site tree, relative to the site root.
const (
	MarkerPath     = "index.html"
	OverviewPath   = "archive/index.html"
	DailyLogPath   = "archive/daily_list/index.html"
	StylesheetHref = "/styles/main.css"
	ImagesDir      = "images"

	indexFile = "index.html"
	dayLayout = "2006/January/02"
)

// Day returns the calendar day of t as midnight UTC. All archive dates are
// compared as days.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayDir returns the directory of the page published on date, e.g.
// "2022/october/02".
func DayDir(date time.Time) string {
	return strings.ToLower(date.Format(dayLayout))
}

// DayPagePath returns the page document published on date.
func DayPagePath(date time.Time) string {
	return path.Join(DayDir(date), indexFile)
}

// ParseDayDir is the inverse of DayDir. It accepts leading and trailing
// slashes and a trailing index.html.
func ParseDayDir(p string) (time.Time, error) {
	p = strings.Trim(p, "/")
	p = strings.TrimSuffix(p, indexFile)
	p = strings.Trim(p, "/")

	date, err := time.Parse(dayLayout, p)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day path %q: %w", p, err)
	}
	return date, nil
}

// MonthDir returns the archive directory of a month, e.g.
// "archive/2022/october".
func MonthDir(year int, month time.Month) string {
	return fmt.Sprintf("archive/%d/%s", year, strings.ToLower(month.String()))
}

// MonthIndexPath returns the archive page of a month.
func MonthIndexPath(year int, month time.Month) string {
	return path.Join(MonthDir(year, month), indexFile)
}

// Href turns a site-relative path into an absolute link.
func Href(p string) string {
	return "/" + strings.TrimPrefix(p, "/")
}

// DirHref turns a site-relative directory into an absolute link with a
// trailing slash.
func DirHref(dir string) string {
	return Href(strings.TrimSuffix(dir, "/") + "/")
}
