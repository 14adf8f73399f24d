package scraper

// ScraperConfig defines how to read the image gallery: which links on a
// search page are images, and how to extract metadata from an image page.
type ScraperConfig struct {
	Gallery GalleryConfig `mapstructure:"gallery" yaml:"gallery"`
	Image   ImageConfig   `mapstructure:"image" yaml:"image"`
}

// GalleryConfig defines how to discover image links on a gallery search
// page.
type GalleryConfig struct {
	LinkSelector string `mapstructure:"link_selector" yaml:"link_selector"`
}

// ImageConfig defines how to extract metadata from individual image pages.
// Header patterns are regular expressions matched against heading text.
type ImageConfig struct {
	TitleSelector     string `mapstructure:"title_selector" yaml:"title_selector"`
	HeaderSelector    string `mapstructure:"header_selector" yaml:"header_selector"`
	DescriptionHeader string `mapstructure:"description_header" yaml:"description_header"`
	CreditsHeader     string `mapstructure:"credits_header" yaml:"credits_header"`
	DownloadSelector  string `mapstructure:"download_selector" yaml:"download_selector"`
	DownloadPattern   string `mapstructure:"download_pattern" yaml:"download_pattern"`
}

// DefaultScraperConfig returns selectors for the webbtelescope.org resource
// gallery.
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		Gallery: NewGalleryConfig(`a[href*="/contents/media/images/"]`),
		Image: ImageConfig{
			TitleSelector:     "h1",
			HeaderSelector:    "h4",
			DescriptionHeader: `(?i)about`,
			CreditsHeader:     `(?i)credits?`,
			DownloadSelector:  "a[href]",
			DownloadPattern:   `(?i)\.(png|tif)$`,
		},
	}
}

// NewGalleryConfig creates a new gallery configuration for the given link
// selector.
func NewGalleryConfig(linkSelector string) GalleryConfig {
	return GalleryConfig{
		LinkSelector: linkSelector,
	}
}
