package archive

import (
	"context"
	"testing"
	"time"

	"github.com/jwstascii/jwstascii/site"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSeed verifies a new site gets every archive document
func TestSeed(t *testing.T) {
	date := day(2022, time.July, 12)
	s := newSeededSite(t, date)

	current, err := s.index.CurrentPublishedDate()
	require.NoError(t, err)
	assert.Equal(t, date, current)

	used, err := s.index.UsedItemsOrdered()
	require.NoError(t, err)
	assert.Equal(t, []string{sourceURL(date)}, used)

	overview := s.doc(t, site.OverviewPath)
	assert.Equal(t, []string{"/archive/2022/july/"}, attrs(overview.Find("section#year_2022 a.grid_item"), "href"))

	month := s.doc(t, site.MonthIndexPath(2022, time.July))
	assert.Equal(t, []string{"2022-07-12"}, attrs(month.Find("ul#month_list > li"), "data-date"))
}

// TestSeed_AlreadySeeded verifies an existing archive is never replaced
func TestSeed_AlreadySeeded(t *testing.T) {
	date := day(2022, time.July, 12)
	s := newSeededSite(t, date)

	err := s.publisher.Seed(context.Background(), NewEntry(date.AddDate(0, 0, 1), "again", "u"))
	assert.ErrorIs(t, err, ErrAlreadySeeded)
}

// TestPublish_AdvancesMarker verifies the current date follows each publish
func TestPublish_AdvancesMarker(t *testing.T) {
	s := newSeededSite(t, day(2022, time.October, 1))

	entry := s.publish(t, day(2022, time.October, 2), "Cosmic Cliffs")

	current, err := s.index.CurrentPublishedDate()
	require.NoError(t, err)
	assert.Equal(t, entry.Date, current)

	marker := s.doc(t, site.MarkerPath)
	assert.Equal(t, "/2022/october/02/", marker.Find("a#today_link").AttrOr("href", ""))
	assert.Equal(t, "Cosmic Cliffs", marker.Find("a#today_link").Text())
}

// TestPublish_RelinksPreviousPage verifies consecutive days are chained
func TestPublish_RelinksPreviousPage(t *testing.T) {
	first := day(2022, time.October, 1)
	s := newSeededSite(t, first)

	before := s.doc(t, site.DayPagePath(first))
	require.Equal(t, "../../../styles/main.css", before.Find(`link[rel="stylesheet"]`).AttrOr("href", ""))

	entry := s.publish(t, day(2022, time.October, 2), "Cosmic Cliffs")

	prev := s.doc(t, site.DayPagePath(first))
	tomorrow := prev.Find("li#tomorrow_link")
	require.Equal(t, 1, tomorrow.Length(), "exactly one tomorrow element")
	link := tomorrow.Find("a")
	require.Equal(t, 1, link.Length(), "tomorrow placeholder replaced by a link")
	assert.Equal(t, "/"+entry.PagePath, link.AttrOr("href", ""))
	assert.Equal(t, "02|10|22", link.Text())
	assert.Equal(t, site.StylesheetHref, prev.Find(`link[rel="stylesheet"]`).AttrOr("href", ""))

	// The new page keeps its placeholder until the next day is published.
	current := s.doc(t, entry.PagePath)
	assert.Equal(t, 0, current.Find("li#tomorrow_link a").Length())
	assert.Equal(t, "/2022/october/01/index.html", current.Find("li#yesterday_link a").AttrOr("href", ""))
}

// TestPublish_SkippedDays verifies the forward link carries the new date
// when days were skipped
func TestPublish_SkippedDays(t *testing.T) {
	first := day(2022, time.October, 1)
	s := newSeededSite(t, first)

	s.publish(t, day(2022, time.October, 5), "Later")

	link := s.doc(t, site.DayPagePath(first)).Find("li#tomorrow_link a")
	assert.Equal(t, "05|10|22", link.Text())
	assert.Equal(t, "/2022/october/05/index.html", link.AttrOr("href", ""))
}

// TestPublish_MonthNewestFirst verifies month pages list newest days first
func TestPublish_MonthNewestFirst(t *testing.T) {
	s := newSeededSite(t, day(2022, time.October, 1))
	s.publish(t, day(2022, time.October, 2), "Two")
	s.publish(t, day(2022, time.October, 3), "Three")

	month := s.doc(t, site.MonthIndexPath(2022, time.October))
	assert.Equal(t,
		[]string{"2022-10-03", "2022-10-02", "2022-10-01"},
		attrs(month.Find("ul#month_list > li"), "data-date"))
	assert.Equal(t, 1, month.Find("ul#month_list").Length())

	overview := s.doc(t, site.OverviewPath)
	assert.Equal(t, 1, overview.Find("a.grid_item").Length(), "month linked once")
}

// TestPublish_NewMonthExistingYear verifies a new month is linked first in
// its year's grid
func TestPublish_NewMonthExistingYear(t *testing.T) {
	s := newSeededSite(t, day(2022, time.October, 31))
	require.NoFileExists(t, s.path(t, site.MonthIndexPath(2022, time.November)))

	s.publish(t, day(2022, time.November, 1), "November")

	overview := s.doc(t, site.OverviewPath)
	assert.Equal(t, 1, overview.Find("section.archive_year").Length())
	grid := overview.Find("section#year_2022 div.grid a.grid_item")
	assert.Equal(t, []string{"/archive/2022/november/", "/archive/2022/october/"}, attrs(grid, "href"))
	assert.Equal(t, "November", grid.First().Text())

	month := s.doc(t, site.MonthIndexPath(2022, time.November))
	assert.Equal(t, []string{"2022-11-01"}, attrs(month.Find("ul#month_list > li"), "data-date"))
	assert.Contains(t, month.Find("h1").Text(), "November 2022")
}

// TestPublish_NewYear verifies a new year gets its own section before the
// daily list link
func TestPublish_NewYear(t *testing.T) {
	s := newSeededSite(t, day(2022, time.December, 31))

	s.publish(t, day(2023, time.January, 1), "New Year")

	overview := s.doc(t, site.OverviewPath)
	container := overview.Find("main#archive_overview")
	assert.Equal(t, []string{"year_2022", "year_2023"}, attrs(container.Find("section.archive_year"), "id"))
	assert.True(t, container.Children().Last().Is("#daily_list_link"), "daily list link stays last")
	assert.Equal(t, []string{"/archive/2023/january/"}, attrs(container.Find("section#year_2023 a.grid_item"), "href"))
	assert.Equal(t, "2023", container.Find("section#year_2023 h2").Text())

	assert.FileExists(t, s.path(t, site.MonthIndexPath(2023, time.January)))
}

// TestPublish_RoundTrip verifies N publishes leave N used items matching
// their entries
func TestPublish_RoundTrip(t *testing.T) {
	start := day(2022, time.December, 29)
	s := newSeededSite(t, start)

	want := []string{sourceURL(start)}
	for i := 1; i < 6; i++ {
		entry := s.publish(t, start.AddDate(0, 0, i), "Image")
		want = append([]string{entry.SourceURL}, want...)
	}

	ordered, err := s.index.UsedItemsOrdered()
	require.NoError(t, err)
	assert.Equal(t, want, ordered)

	set, err := s.index.UsedItemSet()
	require.NoError(t, err)
	assert.Len(t, set, 6)

	entries, err := s.index.Entries()
	require.NoError(t, err)
	for i, e := range entries {
		assert.Equal(t, site.DayPagePath(e.Date), e.PagePath)
		if i > 0 {
			assert.True(t, e.Date.Before(entries[i-1].Date), "log is newest first")
		}
	}
}

// TestPublish_AlreadyPublished verifies publishing today twice fails
// before anything changes
func TestPublish_AlreadyPublished(t *testing.T) {
	date := day(2022, time.October, 2)
	s := newSeededSite(t, date)
	logBefore := s.read(t, site.DailyLogPath)
	markerBefore := s.read(t, site.MarkerPath)

	err := s.publisher.Publish(context.Background(), NewEntry(date, "Again", "another-url"))
	assert.ErrorIs(t, err, ErrAlreadyPublished)

	assert.Equal(t, logBefore, s.read(t, site.DailyLogPath))
	assert.Equal(t, markerBefore, s.read(t, site.MarkerPath))
}

// TestPublish_StaleDate verifies dates before the current page are refused
func TestPublish_StaleDate(t *testing.T) {
	s := newSeededSite(t, day(2022, time.October, 2))

	err := s.publisher.Publish(context.Background(), NewEntry(day(2022, time.October, 1), "Old", "u"))
	assert.ErrorIs(t, err, ErrStaleDate)
}

// TestPublish_BrokenPreviousPage verifies hand-edited pages are fatal
func TestPublish_BrokenPreviousPage(t *testing.T) {
	tests := map[string]string{
		"no placeholder": `<html><head><link rel="stylesheet" href="/styles/main.css"></head><body></body></html>`,
		"no stylesheet":  `<html><head></head><body><ul><li id="tomorrow_link">02|10|22</li></ul></body></html>`,
	}

	for name, page := range tests {
		t.Run(name, func(t *testing.T) {
			first := day(2022, time.October, 1)
			s := newSeededSite(t, first)
			require.NoError(t, s.store.Write(site.DayPagePath(first), page))

			entry := NewEntry(day(2022, time.October, 2), "Next", "u")
			s.writeDayPage(t, entry, first)
			err := s.publisher.Publish(context.Background(), entry)
			assert.ErrorIs(t, err, ErrBrokenTemplate)

			assert.Equal(t, page, s.read(t, site.DayPagePath(first)), "broken page left untouched")
		})
	}
}

// TestPublish_NonStandardPagePath verifies entries whose page is not at
// their date's path are refused before any document changes
func TestPublish_NonStandardPagePath(t *testing.T) {
	first := day(2022, time.October, 1)
	s := newSeededSite(t, first)
	docs := []string{site.DailyLogPath, site.MarkerPath, site.OverviewPath, site.DayPagePath(first)}
	before := make(map[string]string, len(docs))
	for _, doc := range docs {
		before[doc] = s.read(t, doc)
	}

	entry := Entry{
		Date:      day(2022, time.October, 2),
		Title:     "McTitle",
		SourceURL: "some-url.com",
		PagePath:  "path/to/page.html",
	}
	err := s.publisher.Publish(context.Background(), entry)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	for _, doc := range docs {
		assert.Equal(t, before[doc], s.read(t, doc), doc)
	}
	current, err := s.index.CurrentPublishedDate()
	require.NoError(t, err)
	assert.Equal(t, first, current)
}

// TestSeed_NonStandardPagePath verifies seeding refuses the same entries
func TestSeed_NonStandardPagePath(t *testing.T) {
	s := newTestSite(t)

	entry := NewEntry(day(2022, time.October, 1), "First", "u")
	entry.PagePath = "2022/october/01/other.html"
	err := s.publisher.Seed(context.Background(), entry)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	exists, err := s.store.Exists(site.DailyLogPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestPublish_MissingMarker verifies a site without a marker cannot publish
func TestPublish_MissingMarker(t *testing.T) {
	s := newTestSite(t)
	writeEmptyDailyLog(t, s)

	err := s.publisher.Publish(context.Background(), NewEntry(day(2022, time.October, 2), "t", "u"))
	assert.ErrorIs(t, err, ErrMarkerNotFound)
}

// TestPublish_CreatesMissingMonthList verifies a month page without a list
// gets one
func TestPublish_CreatesMissingMonthList(t *testing.T) {
	s := newSeededSite(t, day(2022, time.October, 1))
	require.NoError(t, s.store.Write(site.MonthIndexPath(2022, time.October),
		`<html><body><main id="month_archive"></main></body></html>`))

	s.publish(t, day(2022, time.October, 2), "Two")

	month := s.doc(t, site.MonthIndexPath(2022, time.October))
	assert.Equal(t, []string{"2022-10-02"}, attrs(month.Find("main ul#month_list > li"), "data-date"))
}

// TestPublish_MonthAlreadyInOverview verifies a month is never linked twice
func TestPublish_MonthAlreadyInOverview(t *testing.T) {
	s := newSeededSite(t, day(2022, time.October, 31))

	// Pretend November was linked by hand without a month page.
	overview := s.read(t, site.OverviewPath)
	doc, err := parseDocument(overview)
	require.NoError(t, err)
	doc.Find("section#year_2022 div.grid").PrependHtml(encodeMonthLink(2022, time.November))
	out, err := renderDocument(doc)
	require.NoError(t, err)
	require.NoError(t, s.store.Write(site.OverviewPath, out))

	s.publish(t, day(2022, time.November, 1), "November")

	links := s.doc(t, site.OverviewPath).Find(`a.grid_item[href="/archive/2022/november/"]`)
	assert.Equal(t, 1, links.Length())
}

// TestPublish_CancelledContext verifies nothing runs after cancellation
func TestPublish_CancelledContext(t *testing.T) {
	s := newSeededSite(t, day(2022, time.October, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.publisher.Publish(ctx, NewEntry(day(2022, time.October, 2), "t", "u"))
	assert.ErrorIs(t, err, context.Canceled)
}

func (s *testSite) path(t *testing.T, rel string) string {
	p, err := s.store.Path(rel)
	require.NoError(t, err)
	return p
}
