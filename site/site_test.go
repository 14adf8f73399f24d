package site

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestDayPagePath verifies the lowercase year/month/day layout
func TestDayPagePath(t *testing.T) {
	assert.Equal(t, "2022/october/02", DayDir(date(2022, time.October, 2)))
	assert.Equal(t, "2022/october/02/index.html", DayPagePath(date(2022, time.October, 2)))
}

// TestParseDayDir verifies day paths parse back to their dates
func TestParseDayDir(t *testing.T) {
	tests := []string{
		"2022/october/02",
		"/2022/october/02/",
		"/2022/october/02/index.html",
		"2022/October/02",
	}

	for _, p := range tests {
		t.Run(p, func(t *testing.T) {
			got, err := ParseDayDir(p)
			require.NoError(t, err)
			assert.Equal(t, date(2022, time.October, 2), got)
		})
	}
}

// TestParseDayDir_Invalid verifies garbage paths are rejected
func TestParseDayDir_Invalid(t *testing.T) {
	_, err := ParseDayDir("/archive/daily_list/")
	assert.Error(t, err)
}

// TestMonthIndexPath verifies archive month paths
func TestMonthIndexPath(t *testing.T) {
	assert.Equal(t, "archive/2023/january/index.html", MonthIndexPath(2023, time.January))
	assert.Equal(t, "/archive/2023/january/", DirHref(MonthDir(2023, time.January)))
}

// TestDay verifies times collapse to midnight UTC of the same calendar day
func TestDay(t *testing.T) {
	in := time.Date(2022, time.October, 2, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, date(2022, time.October, 2), Day(in))
}

// TestWrite_NewDirectory verifies parent directories are created
func TestWrite_NewDirectory(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write("new_dir/my_file.txt", "contents"))

	got, err := store.Read("new_dir/my_file.txt")
	require.NoError(t, err)
	assert.Equal(t, "contents", got)
}

// TestWrite_DirectoryNotOverwritten verifies sibling files survive nested
// writes
func TestWrite_DirectoryNotOverwritten(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write("new_dir/do_not_erase.txt", "contents"))
	require.NoError(t, store.Write("new_dir/newer_dir/file.txt", "b"))

	got, err := store.Read("new_dir/do_not_erase.txt")
	require.NoError(t, err)
	assert.Equal(t, "contents", got)
}

// TestWrite_ExistingParent verifies writing into an existing directory
func TestWrite_ExistingParent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "new_dir"), 0o755))
	store, err := NewFileStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Write("new_dir/my_file.txt", "contents"))

	data, err := os.ReadFile(filepath.Join(root, "new_dir", "my_file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))
}

// TestWrite_OverDirectory verifies a directory is never replaced by a file
func TestWrite_OverDirectory(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Write("archive/2022/index.html", "x"))

	err = store.Write("archive/2022", "y")
	assert.ErrorIs(t, err, ErrIsDirectory)

	_, err = store.Exists("archive/2022")
	assert.ErrorIs(t, err, ErrIsDirectory)
}

// TestPath_OutsideRoot verifies relative escapes are refused
func TestPath_OutsideRoot(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = store.Write("../escape.html", "x")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

// TestRead_Missing verifies missing documents report ErrNotFound
func TestRead_Missing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read("index.html")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := store.Exists("index.html")
	require.NoError(t, err)
	assert.False(t, exists)
}

func newTestRenderer(t *testing.T) *Renderer {
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

// TestRender_DayPage verifies navigation dates and content
func TestRender_DayPage(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(DayPage{
		Date:        date(2022, time.October, 2),
		Previous:    date(2022, time.September, 30),
		ImageTitle:  "McTitle",
		ImagePath:   "/images/pic.png",
		SourceURL:   "https://example.com/image/1",
		Credits:     "NASA, ESA",
		Description: `<p>Hello <a href="https://example.com">there</a></p><script>alert(1)</script>`,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "02 October 2022")
	assert.Contains(t, out, `<li id="tomorrow_link">03|10|22</li>`)
	assert.Contains(t, out, `<a href="/2022/september/30/index.html">30|09|22</a>`)
	assert.Contains(t, out, `src="/images/pic.png"`)
	assert.Contains(t, out, "<p>Hello")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `<link rel="stylesheet" href="../../../styles/main.css">`)
}

// TestRender_DayPageFirst verifies the first page has no previous link
func TestRender_DayPageFirst(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(DayPage{
		Date:       date(2022, time.October, 2),
		ImageTitle: "First",
		ImagePath:  "/images/first.png",
		SourceURL:  "https://example.com/first",
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "yesterday_link")
}

// TestRender_MissingField verifies required fields are enforced
func TestRender_MissingField(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.Render(DayPage{Date: date(2022, time.October, 2)})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = r.Render(MainIndex{Title: "x"})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = r.Render(MonthPage{Year: 2022})
	assert.ErrorIs(t, err, ErrMissingField)
}

// TestRender_MainIndex verifies the redirect target
func TestRender_MainIndex(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(MainIndex{PageDir: "2022/october/02", Title: "my title"})
	require.NoError(t, err)
	assert.Contains(t, out, `content="0; url=/2022/october/02/"`)
	assert.Contains(t, out, "my title")
}

// TestRender_MonthPage verifies the month heading
func TestRender_MonthPage(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(MonthPage{Year: 2022, Month: time.October})
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>October 2022</h1>")
	assert.Contains(t, out, `id="month_archive"`)
}

// TestRender_EmptyArchiveDocuments verifies seed documents render
func TestRender_EmptyArchiveDocuments(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(DailyList{})
	require.NoError(t, err)
	assert.Contains(t, out, `<ul id="daily_list">`)

	out, err = r.Render(Overview{})
	require.NoError(t, err)
	assert.Contains(t, out, `id="daily_list_link"`)
}
