// Package assets downloads the image of a published day and stores it
// where the site can serve it.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/jwstascii/jwstascii/logging"
	"github.com/jwstascii/jwstascii/site"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrEmptyImage       = errors.New("image is empty")
)

// Asset is a downloaded image.
type Asset struct {
	Name        string
	ContentType string
	Body        []byte
}

// Fetcher performs a GET request.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Store keeps assets and returns the site-absolute link each one is served
// under.
type Store interface {
	Put(ctx context.Context, asset *Asset) (string, error)
}

// Download fetches the image at rawURL. Only PNG and TIFF images are
// accepted; the asset is named after the last element of the URL path.
func Download(ctx context.Context, fetcher Fetcher, rawURL string) (*Asset, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}

	name := path.Base(u.Path)
	contentType, ok := contentTypeOf(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, rawURL)
	}

	body, err := fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyImage, rawURL)
	}

	return &Asset{Name: name, ContentType: contentType, Body: body}, nil
}

func contentTypeOf(name string) (string, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png", true
	case ".tif", ".tiff":
		return "image/tiff", true
	}
	return "", false
}

// DirStore writes assets into the site tree next to the pages.
type DirStore struct {
	store  *site.FileStore
	logger *slog.Logger
}

// NewDirStore creates a store writing below the site's images directory.
func NewDirStore(store *site.FileStore, logger *slog.Logger) *DirStore {
	return &DirStore{
		store:  store,
		logger: logging.Default(logger).With("component", "asset_store", "backend", "dir"),
	}
}

// Put writes the asset to images/<name>.
func (d *DirStore) Put(_ context.Context, asset *Asset) (string, error) {
	rel := path.Join(site.ImagesDir, asset.Name)
	if err := d.store.WriteBytes(rel, asset.Body); err != nil {
		return "", fmt.Errorf("failed to store asset: %w", err)
	}

	d.logger.Debug("asset stored", "path", rel, "bytes", len(asset.Body))
	return site.Href(rel), nil
}
