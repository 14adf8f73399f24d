package catalog

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/mmcdole/gofeed"
)

// FeedCatalog reads catalog items from an RSS or Atom feed. A feed has a
// single page: page 1 holds every item link, later pages are empty. The
// gofeed library detects and handles both formats.
type FeedCatalog struct {
	url    string
	pager  *Pager
	parser *gofeed.Parser
}

// NewFeedCatalog creates a catalog over the feed at url.
func NewFeedCatalog(url string, pager *Pager) *FeedCatalog {
	return &FeedCatalog{
		url:    url,
		pager:  pager,
		parser: gofeed.NewParser(),
	}
}

// PageLinks returns the feed's item links for page 1 and nothing after.
func (f *FeedCatalog) PageLinks(ctx context.Context, page int, ignore []*regexp.Regexp) ([]string, []string, error) {
	if page < 1 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}
	if page > 1 {
		return nil, nil, nil
	}

	body, err := f.pager.Get(ctx, f.url)
	if err != nil {
		return nil, nil, err
	}

	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	seen := make(map[string]bool)
	links := []Link{}
	for _, item := range feed.Items {
		if item.Link == "" || seen[item.Link] {
			continue
		}
		seen[item.Link] = true
		links = append(links, Link{URL: item.Link, Text: item.Title})
	}

	return URLs(links), URLs(FilterLinks(links, ignore)), nil
}
