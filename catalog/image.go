package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jwstascii/jwstascii/scraper"
	"golang.org/x/net/html"
)

var (
	ErrDescriptionNotFound = errors.New("image description not found")
	ErrDownloadNotFound    = errors.New("image download link not found")
)

// Image holds the metadata extracted from an image page.
type Image struct {
	Title string
	// Description is HTML: the paragraphs and links of the "about" section.
	Description string
	Credits     string
	DownloadURL string
	PageURL     string
}

type imageMatcher struct {
	description *regexp.Regexp
	credits     *regexp.Regexp
	download    *regexp.Regexp
}

func newImageMatcher(config scraper.ImageConfig) (*imageMatcher, error) {
	description, err := regexp.Compile(config.DescriptionHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid description header pattern: %w", err)
	}
	credits, err := regexp.Compile(config.CreditsHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid credits header pattern: %w", err)
	}
	download, err := regexp.Compile(config.DownloadPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid download pattern: %w", err)
	}

	return &imageMatcher{
		description: description,
		credits:     credits,
		download:    download,
	}, nil
}

// extract reads image metadata from a parsed image page.
func (m *imageMatcher) extract(doc *goquery.Document, config scraper.ImageConfig, pageURL string) (*Image, error) {
	image := &Image{PageURL: pageURL}

	image.Title = normalizeSpace(doc.Find(config.TitleSelector).First().Text())

	description, err := extractDescription(doc, config.HeaderSelector, m.description)
	if err != nil {
		return nil, err
	}
	image.Description = description

	if header := findHeader(doc, config.HeaderSelector, m.credits); header != nil {
		image.Credits = normalizeSpace(header.Next().Text())
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	for _, link := range ExtractLinks(doc, config.DownloadSelector, base) {
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		if m.download.MatchString(u.Path) {
			image.DownloadURL = link.URL
			break
		}
	}
	if image.DownloadURL == "" {
		return nil, fmt.Errorf("%w on %s", ErrDownloadNotFound, pageURL)
	}

	return image, nil
}

// extractDescription returns the paragraphs and links between the heading
// matching pattern and the page footer, as HTML.
func extractDescription(doc *goquery.Document, headerSelector string, pattern *regexp.Regexp) (string, error) {
	header := findHeader(doc, headerSelector, pattern)
	if header == nil || doc.Find("footer").Length() == 0 {
		return "", fmt.Errorf("%w: missing header or footer", ErrDescriptionNotFound)
	}

	var b strings.Builder
	for sib := header.Nodes[0].NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode && sib.Data == "footer" {
			break
		}
		if err := keepParagraphsAndLinks(&b, sib); err != nil {
			return "", err
		}
	}

	return b.String(), nil
}

// keepParagraphsAndLinks writes every outermost p or a element below n.
func keepParagraphsAndLinks(b *strings.Builder, n *html.Node) error {
	if n.Type != html.ElementNode {
		return nil
	}
	if n.Data == "p" || n.Data == "a" {
		return html.Render(b, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := keepParagraphsAndLinks(b, c); err != nil {
			return err
		}
	}
	return nil
}

func findHeader(doc *goquery.Document, selector string, pattern *regexp.Regexp) *goquery.Selection {
	found := doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return pattern.MatchString(s.Text())
	}).First()
	if found.Length() == 0 {
		return nil
	}
	return found
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidateImage validates extracted metadata before publishing.
func ValidateImage(image *Image) error {
	if image.Title == "" {
		return fmt.Errorf("title is empty")
	}
	if len(image.Title) > 500 {
		return fmt.Errorf("title too long (%d characters, max 500)", len(image.Title))
	}

	for name, raw := range map[string]string{"page": image.PageURL, "download": image.DownloadURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s URL: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s URL must use http or https scheme", name)
		}
	}

	return nil
}
