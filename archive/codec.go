package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jwstascii/jwstascii/site"
	"golang.org/x/net/html"
)

// Attributes carried by every list item of the daily log and month pages.
const (
	attrDate      = "data-date"
	attrSourceURL = "data-jwst_url"

	dateLayout    = "2006-01-02"
	navDateLayout = "02|01|06"
)

// Selectors of the elements the archive reads and mutates.
const (
	dailyListSelector     = "ul#daily_list"
	monthListID           = "month_list"
	dailyListLinkSelector = "#daily_list_link"
	tomorrowSelector      = "li#tomorrow_link"
	stylesheetSelector    = `link[rel="stylesheet"]`
	refreshSelector       = `meta[http-equiv="refresh"]`
	todayLinkSelector     = "a#today_link"
)

func parseDocument(content string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func renderDocument(doc *goquery.Document) (string, error) {
	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return out, nil
}

// encodeItem renders an entry as a list item of the daily log or a month
// page.
func encodeItem(e Entry) string {
	day := e.Date.Format(dateLayout)
	return fmt.Sprintf(`<li %s="%s" %s="%s"><a href="%s">%s</a> <time datetime="%s">%s</time></li>`,
		attrDate, day,
		attrSourceURL, html.EscapeString(e.SourceURL),
		html.EscapeString(e.Href()),
		html.EscapeString(e.Title),
		day, e.Date.Format(navDateLayout))
}

// decodeItem is the inverse of encodeItem.
func decodeItem(li *goquery.Selection) (Entry, error) {
	rawDate, ok := li.Attr(attrDate)
	if !ok {
		return Entry{}, fmt.Errorf("list item has no %s attribute", attrDate)
	}
	date, err := time.Parse(dateLayout, rawDate)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid %s %q: %w", attrDate, rawDate, err)
	}

	sourceURL, ok := li.Attr(attrSourceURL)
	if !ok {
		return Entry{}, fmt.Errorf("list item for %s has no %s attribute", rawDate, attrSourceURL)
	}

	link := li.Find("a").First()
	href, ok := link.Attr("href")
	if !ok {
		return Entry{}, fmt.Errorf("list item for %s has no page link", rawDate)
	}

	return Entry{
		Date:      date,
		Title:     strings.TrimSpace(link.Text()),
		SourceURL: sourceURL,
		PagePath:  strings.TrimPrefix(href, "/"),
	}, nil
}

// encodeMonthLink renders a month's entry in the year overview grid.
func encodeMonthLink(year int, month time.Month) string {
	return fmt.Sprintf(`<a class="grid_item" href="%s">%s</a>`,
		site.DirHref(site.MonthDir(year, month)), month.String())
}

// encodeYearSection renders a new year of the overview holding one month.
func encodeYearSection(year int, month time.Month) string {
	return fmt.Sprintf(`<section class="archive_year" id="%s"><h2>%d</h2><div class="grid">%s</div></section>`,
		yearSectionID(year), year, encodeMonthLink(year, month))
}

func yearSectionID(year int) string {
	return fmt.Sprintf("year_%d", year)
}

// encodeTomorrowLink renders the forward link that replaces a page's
// tomorrow placeholder.
func encodeTomorrowLink(e Entry) string {
	return fmt.Sprintf(`<li id="tomorrow_link"><a href="%s">%s</a></li>`,
		html.EscapeString(e.Href()), e.Date.Format(navDateLayout))
}

// markerTarget returns the page the marker document redirects to.
func markerTarget(doc *goquery.Document) (string, bool) {
	if content, ok := doc.Find(refreshSelector).First().Attr("content"); ok {
		for _, part := range strings.Split(content, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "url=") {
				return strings.Trim(part[4:], `'"`), true
			}
		}
	}

	if href, ok := doc.Find(todayLinkSelector).First().Attr("href"); ok {
		return href, true
	}
	return "", false
}
