// Package platform drives food-delivery sites through a browser.Host.
//
// Every site is a Site configured by a Profile holding its URLs, selector
// candidates and button labels. The swiggy, zomato and blinkit subpackages
// supply those profiles.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
)

// Adapter translates generic intents into page interactions on one platform.
type Adapter interface {
	ID() domain.PlatformID
	// Search returns the listings for query. No listings is not an error.
	Search(ctx context.Context, query string) (SearchResult, error)
	// PriceInfo returns the price of item, or an error wrapping
	// domain.ErrCapabilityUnavailable when no live price could be read.
	PriceInfo(ctx context.Context, item, restaurant string) (domain.PriceInfo, error)
	// PlaceOrder runs the order workflow. Failures are reported in the
	// outcome, never as a Go error.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) domain.OrderOutcome
	// ResumeCheckout continues a manual_required workflow at the checkout step.
	ResumeCheckout(ctx context.Context, h browser.Handle, req domain.OrderRequest) domain.OrderOutcome
	// Reviews and Menu are best effort and return an empty slice on failure.
	Reviews(ctx context.Context, restaurant string) ([]domain.Review, error)
	Menu(ctx context.Context, restaurant string) ([]domain.MenuEntry, error)
}

// SearchResult is the outcome of a platform search. Partial is set when some
// cards on the page could not be read.
type SearchResult struct {
	Listings []domain.Listing `json:"listings"`
	Partial  bool             `json:"partial,omitempty"`
}

// Profile holds everything site specific.
type Profile struct {
	ID domain.PlatformID
	// Domain is matched against page URLs by DetectPlatform.
	Domain string
	// SearchURL is the search entry page.
	SearchURL string

	SearchBox       []string
	RestaurantCards []string
	AddLabels       []string
	CheckoutLabels  []string
	ProceedLabels   []string

	// Listings fields: name, cuisine, rating, eta, price.
	Listings browser.Extraction
	// Reviews fields: rating, text, author.
	Reviews browser.Extraction
	// Menu fields: name, price, rating, veg, description.
	Menu browser.Extraction

	DeliveryFee int
}

// Options tune the timing of a Site. Each Site paces its own actions, so
// sites searched in parallel do not wait on each other.
type Options struct {
	LoadTimeout time.Duration
	ActionDelay time.Duration
	SettleDelay time.Duration
}

// Site is the generic Adapter implementation.
type Site struct {
	profile     Profile
	host        browser.Host
	pacer       *browser.Pacer
	loadTimeout time.Duration
}

var _ Adapter = (*Site)(nil)

// NewSite builds an adapter for profile.
func NewSite(profile Profile, host browser.Host, opts Options) *Site {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Site{
		profile:     profile,
		host:        host,
		pacer:       browser.NewPacer(opts.ActionDelay, opts.SettleDelay),
		loadTimeout: opts.LoadTimeout,
	}
}

func (s *Site) ID() domain.PlatformID { return s.profile.ID }

func (s *Site) searchBox() browser.Locator {
	return browser.Selectors("search box", s.profile.SearchBox...)
}

func (s *Site) restaurantCard() browser.Locator {
	return browser.Selectors("restaurant card", s.profile.RestaurantCards...)
}

func (s *Site) addButton() browser.Locator {
	return browser.Locator{Role: "add button", Matchers: []browser.Matcher{
		browser.Text{Labels: s.profile.AddLabels, Exact: true},
		browser.Text{Labels: s.profile.AddLabels},
	}}
}

func (s *Site) checkoutButton() browser.Locator {
	return browser.Locator{Role: "checkout button", Matchers: []browser.Matcher{
		browser.Text{Labels: s.profile.CheckoutLabels, Scope: []string{"button", `[role="button"]`, "a"}},
	}}
}

func (s *Site) proceedButton() browser.Locator {
	return browser.Labels("payment button", s.profile.ProceedLabels...)
}

// open opens the search entry page and waits for it to load.
func (s *Site) open(ctx context.Context) (browser.Handle, error) {
	h, err := s.host.Open(ctx, s.profile.SearchURL)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", s.profile.SearchURL, err)
	}
	if err := s.host.WaitForLoad(ctx, h, s.loadTimeout); err != nil {
		return h, fmt.Errorf("loading %s: %w", s.profile.SearchURL, err)
	}
	return h, nil
}

// submitSearch types query into the search box and lets results render.
func (s *Site) submitSearch(ctx context.Context, h browser.Handle, query string) error {
	if err := s.pacer.Act(ctx); err != nil {
		return err
	}
	if err := s.searchBox().Type(ctx, s.host, h, query, true); err != nil {
		return err
	}
	return s.pacer.Settle(ctx)
}

// filterMenu types name into the restaurant page's search box so the item's
// ADD control comes first. Pages without a search box are left as they are.
func (s *Site) filterMenu(ctx context.Context, h browser.Handle, name string) error {
	err := s.searchBox().Type(ctx, s.host, h, name, false)
	if errors.Is(err, domain.ErrElementNotFound) {
		slog.Debug("No menu search box, adding first listed item", "platform", s.profile.ID, "item", name)
		return nil
	}
	if err != nil {
		return err
	}
	return s.pacer.Settle(ctx)
}

// openRestaurant searches for restaurant and clicks the first card.
func (s *Site) openRestaurant(ctx context.Context, restaurant string) (browser.Handle, error) {
	h, err := s.open(ctx)
	if err != nil {
		return h, err
	}
	if err := s.submitSearch(ctx, h, restaurant); err != nil {
		return h, err
	}
	if err := s.pacer.Act(ctx); err != nil {
		return h, err
	}
	if err := s.restaurantCard().Click(ctx, s.host, h); err != nil {
		return h, err
	}
	return h, s.pacer.Settle(ctx)
}

func (s *Site) closeTab(h browser.Handle) {
	if h == "" {
		return
	}
	// The caller's context may already be done; closing must still happen.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.host.Close(ctx, h); err != nil {
		slog.Debug("Failed to close tab", "platform", s.profile.ID, "handle", h, "error", err)
	}
}

func (s *Site) Search(ctx context.Context, query string) (SearchResult, error) {
	h, err := s.open(ctx)
	defer s.closeTab(h)
	if err != nil {
		return SearchResult{}, err
	}
	if err := s.submitSearch(ctx, h, query); err != nil {
		return SearchResult{}, err
	}

	var raw browser.ExtractResult
	if err := s.host.RunScript(ctx, h, browser.ExtractListingsScript(s.profile.Listings), &raw); err != nil {
		slog.Warn("Listing extraction failed", "platform", s.profile.ID, "error", err)
		return SearchResult{Listings: []domain.Listing{}}, nil
	}
	listings := parseListings(s.profile.ID, raw.Items)
	return SearchResult{Listings: listings, Partial: len(listings) < raw.Cards}, nil
}

func (s *Site) PriceInfo(ctx context.Context, item, restaurant string) (domain.PriceInfo, error) {
	query := item
	if restaurant != "" {
		query = restaurant + " " + item
	}
	res, err := s.Search(ctx, query)
	if err != nil {
		return domain.PriceInfo{}, err
	}
	for _, l := range res.Listings {
		if l.Price != nil {
			return domain.PriceInfo{ItemPrice: *l.Price, DeliveryFee: s.profile.DeliveryFee}, nil
		}
	}
	return domain.PriceInfo{}, fmt.Errorf("%w: no priced listing for %q on %s", domain.ErrCapabilityUnavailable, query, s.profile.ID)
}

func (s *Site) Reviews(ctx context.Context, restaurant string) ([]domain.Review, error) {
	h, err := s.openRestaurant(ctx, restaurant)
	defer s.closeTab(h)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("Could not open restaurant for reviews", "platform", s.profile.ID, "restaurant", restaurant, "error", err)
		return []domain.Review{}, nil
	}
	var raw browser.ExtractResult
	if err := s.host.RunScript(ctx, h, browser.ExtractReviewsScript(s.profile.Reviews), &raw); err != nil {
		slog.Warn("Review extraction failed", "platform", s.profile.ID, "error", err)
		return []domain.Review{}, nil
	}
	return parseReviews(raw.Items), nil
}

func (s *Site) Menu(ctx context.Context, restaurant string) ([]domain.MenuEntry, error) {
	h, err := s.openRestaurant(ctx, restaurant)
	defer s.closeTab(h)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("Could not open restaurant for menu", "platform", s.profile.ID, "restaurant", restaurant, "error", err)
		return []domain.MenuEntry{}, nil
	}
	var raw browser.ExtractResult
	if err := s.host.RunScript(ctx, h, browser.ExtractMenuScript(s.profile.Menu), &raw); err != nil {
		slog.Warn("Menu extraction failed", "platform", s.profile.ID, "error", err)
		return []domain.MenuEntry{}, nil
	}
	return parseMenu(raw.Items), nil
}
