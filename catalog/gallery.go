package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jwstascii/jwstascii/logging"
	"github.com/jwstascii/jwstascii/scraper"
)

// Client reads gallery search pages and image pages through a Pager.
type Client struct {
	pager   *Pager
	config  scraper.ScraperConfig
	matcher *imageMatcher
	logger  *slog.Logger
}

// NewClient creates a gallery client. It fails if the configured header or
// download patterns don't compile.
func NewClient(pager *Pager, config scraper.ScraperConfig, logger *slog.Logger) (*Client, error) {
	matcher, err := newImageMatcher(config.Image)
	if err != nil {
		return nil, err
	}

	return &Client{
		pager:   pager,
		config:  config,
		matcher: matcher,
		logger:  logging.Default(logger).With("component", "gallery"),
	}, nil
}

// PageLinks fetches search result page n and returns every image link on it
// and the links that survive the ignore patterns. Both are absolute and in
// page order. An empty all means the gallery has no page n.
func (c *Client) PageLinks(ctx context.Context, page int, ignore []*regexp.Regexp) ([]string, []string, error) {
	body, err := c.pager.FetchPage(ctx, page)
	if err != nil {
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(c.pager.PageURL(page))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid page URL: %w", err)
	}

	all := ExtractLinks(doc, c.config.Gallery.LinkSelector, base)
	filtered := FilterLinks(all, ignore)

	c.logger.Debug("gallery page read", "page", page, "links", len(all), "kept", len(filtered))
	return URLs(all), URLs(filtered), nil
}

// FetchImage fetches an image page and extracts its metadata.
func (c *Client) FetchImage(ctx context.Context, pageURL string) (*Image, error) {
	body, err := c.pager.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return c.matcher.extract(doc, c.config.Image, pageURL)
}

// Link is an image link on a gallery page.
type Link struct {
	URL  string
	Text string
}

// ExtractLinks returns every element matching selector as a link resolved
// against base, without duplicate URLs.
func ExtractLinks(doc *goquery.Document, selector string, base *url.URL) []Link {
	seen := make(map[string]bool)
	links := []Link{}

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := ref.String()
		if base != nil {
			abs = base.ResolveReference(ref).String()
		}

		if !seen[abs] {
			seen[abs] = true
			links = append(links, Link{
				URL:  abs,
				Text: strings.Join(strings.Fields(s.Text()), " "),
			})
		}
	})

	return links
}

// FilterLinks drops links whose URL or text matches any ignore pattern.
func FilterLinks(links []Link, ignore []*regexp.Regexp) []Link {
	kept := make([]Link, 0, len(links))
	for _, link := range links {
		if matchesAny(link.URL, ignore) || matchesAny(link.Text, ignore) {
			continue
		}
		kept = append(kept, link)
	}
	return kept
}

// URLs returns the URL of each link.
func URLs(links []Link) []string {
	urls := make([]string, len(links))
	for i, link := range links {
		urls[i] = link.URL
	}
	return urls
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// CompilePatterns compiles ignore patterns.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
