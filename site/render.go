package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrMissingField is returned when a page is rendered without one of its
// required fields.
var ErrMissingField = errors.New("missing required page field")

const navDateLayout = "02|01|06"

// Page is a document type that can be rendered from the embedded
// templates.
type Page interface {
	templateName() string
	view(sanitize func(string) string) (any, error)
}

// Renderer renders pages from the embedded template set.
type Renderer struct {
	templates *template.Template
	sanitizer *bluemonday.Policy
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Renderer{
		templates: tmpl,
		sanitizer: bluemonday.UGCPolicy(),
	}, nil
}

// Render renders page to text.
func (r *Renderer) Render(page Page) (string, error) {
	data, err := page.view(r.sanitizer.Sanitize)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, page.templateName(), data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", page.templateName(), err)
	}
	return buf.String(), nil
}

func missing(page, field string) error {
	return fmt.Errorf("%w: %s.%s", ErrMissingField, page, field)
}

// DayPage is the page published for a single day.
type DayPage struct {
	Date time.Time
	// Previous is the date of the page published before this one; zero for
	// the first page of a site.
	Previous    time.Time
	ImageTitle  string
	ImagePath   string
	SourceURL   string
	Credits     string
	Description string
}

type dayView struct {
	TitleDate    string
	TodayDate    string
	TomorrowDate string
	HasPrevious  bool
	PreviousHref string
	PreviousDate string
	ImageTitle   string
	ImagePath    string
	SourceURL    string
	Credits      string
	Description  template.HTML
}

func (DayPage) templateName() string { return "day.html" }

func (p DayPage) view(sanitize func(string) string) (any, error) {
	switch {
	case p.Date.IsZero():
		return nil, missing("DayPage", "Date")
	case p.ImageTitle == "":
		return nil, missing("DayPage", "ImageTitle")
	case p.ImagePath == "":
		return nil, missing("DayPage", "ImagePath")
	case p.SourceURL == "":
		return nil, missing("DayPage", "SourceURL")
	}

	v := dayView{
		TitleDate:    p.Date.Format("02 January 2006"),
		TodayDate:    p.Date.Format(navDateLayout),
		TomorrowDate: p.Date.AddDate(0, 0, 1).Format(navDateLayout),
		ImageTitle:   p.ImageTitle,
		ImagePath:    p.ImagePath,
		SourceURL:    p.SourceURL,
		Credits:      p.Credits,
		Description:  template.HTML(sanitize(p.Description)),
	}
	if !p.Previous.IsZero() {
		v.HasPrevious = true
		v.PreviousHref = Href(DayPagePath(p.Previous))
		v.PreviousDate = p.Previous.Format(navDateLayout)
	}
	return v, nil
}

// MainIndex is the site's index.html: a redirect to the current day.
type MainIndex struct {
	PageDir string
	Title   string
}

func (MainIndex) templateName() string { return "main_index.html" }

func (p MainIndex) view(func(string) string) (any, error) {
	if p.PageDir == "" {
		return nil, missing("MainIndex", "PageDir")
	}
	if p.Title == "" {
		return nil, missing("MainIndex", "Title")
	}
	return struct {
		PageHref string
		Title    string
	}{DirHref(p.PageDir), p.Title}, nil
}

// MonthPage is the archive page of a single month.
type MonthPage struct {
	Year  int
	Month time.Month
}

func (MonthPage) templateName() string { return "month.html" }

func (p MonthPage) view(func(string) string) (any, error) {
	if p.Year == 0 {
		return nil, missing("MonthPage", "Year")
	}
	if p.Month < time.January || p.Month > time.December {
		return nil, missing("MonthPage", "Month")
	}
	return struct {
		Year      int
		MonthName string
	}{p.Year, p.Month.String()}, nil
}

// DailyList is the empty daily log document of a new site.
type DailyList struct{}

func (DailyList) templateName() string { return "daily_list.html" }

func (DailyList) view(func(string) string) (any, error) { return nil, nil }

// Overview is the empty year/month archive overview of a new site.
type Overview struct{}

func (Overview) templateName() string { return "overview.html" }

func (Overview) view(func(string) string) (any, error) { return nil, nil }
