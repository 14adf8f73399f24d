// Package selection picks the next catalog item to publish, walking the
// catalog page by page and skipping items the archive has already used.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"

	"github.com/jwstascii/jwstascii/logging"
)

var (
	// ErrNoMoreItems means one pass over the catalog found nothing usable.
	ErrNoMoreItems = errors.New("no more catalog items")
	// ErrNoUsableItem means both the strict and the fallback pass failed.
	ErrNoUsableItem = errors.New("no usable catalog item")
)

// DefaultMaxPages bounds a single pass over the catalog.
const DefaultMaxPages = 500

// Catalog returns the item links on one page of the catalog. all is every
// link on the page and is empty past the last page; filtered is the subset
// surviving the ignore patterns.
type Catalog interface {
	PageLinks(ctx context.Context, page int, ignore []*regexp.Regexp) (all, filtered []string, err error)
}

// History returns previously used items, newest first.
type History interface {
	UsedItemsOrdered() ([]string, error)
}

// Selector selects unused items from a catalog.
type Selector struct {
	catalog  Catalog
	history  History
	rand     *rand.Rand
	maxPages int
	logger   *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the random source used to choose among available items.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) { s.rand = r }
}

// WithMaxPages bounds how many pages one pass may fetch.
func WithMaxPages(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) { s.logger = logger }
}

// New creates a selector over catalog that reads used items from history.
func New(catalog Catalog, history History, opts ...Option) *Selector {
	s := &Selector{
		catalog:  catalog,
		history:  history,
		maxPages: DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.logger = logging.Default(s.logger).With("component", "selector")
	return s
}

// searchState is the page cursor of a single pass.
type searchState struct {
	page int
}

// Select makes one pass over the catalog starting at page 1 and returns a
// random item from the first page that has any filtered link outside the
// policy's excluded set. It fails with ErrNoMoreItems when the catalog
// runs out of pages or the page bound is reached. Catalog errors are
// returned unchanged.
func (s *Selector) Select(ctx context.Context, ignore []*regexp.Regexp, policy Policy) (string, error) {
	used, err := s.history.UsedItemsOrdered()
	if err != nil {
		return "", fmt.Errorf("failed to load used items: %w", err)
	}
	excluded := policy.Excluded(used)

	var state searchState
	for state.page < s.maxPages {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		state.page++
		all, filtered, err := s.catalog.PageLinks(ctx, state.page, ignore)
		if err != nil {
			return "", err
		}
		if len(all) == 0 {
			return "", fmt.Errorf("%w: catalog ended at page %d (policy %s)", ErrNoMoreItems, state.page, policy)
		}

		available := make([]string, 0, len(filtered))
		for _, link := range filtered {
			if _, ok := excluded[link]; !ok {
				available = append(available, link)
			}
		}

		s.logger.Debug("page searched",
			"page", state.page,
			"links", len(all),
			"filtered", len(filtered),
			"available", len(available),
			"policy", policy.String())

		if len(available) > 0 {
			return available[s.rand.IntN(len(available))], nil
		}
	}

	return "", fmt.Errorf("%w: gave up after %d pages (policy %s)", ErrNoMoreItems, s.maxPages, policy)
}

// SelectNext selects with ExcludeAll and, if the catalog has nothing new,
// starts over from page 1 with the fallback policy. When neither pass
// finds an item it fails with ErrNoUsableItem.
func (s *Selector) SelectNext(ctx context.Context, ignore []*regexp.Regexp, fallback Policy) (string, error) {
	item, err := s.Select(ctx, ignore, ExcludeAll())
	if err == nil || !errors.Is(err, ErrNoMoreItems) {
		return item, err
	}

	s.logger.Info("no unused items left, retrying with fallback policy", "policy", fallback.String())

	item, err = s.Select(ctx, ignore, fallback)
	if errors.Is(err, ErrNoMoreItems) {
		return "", fmt.Errorf("%w: %w", ErrNoUsableItem, err)
	}
	return item, err
}
