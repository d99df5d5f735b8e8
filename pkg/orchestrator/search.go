package orchestrator

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/metrics"
)

// Filters narrow search results after extraction. Zero values disable a
// filter. Listings that lack the filtered attribute are kept.
type Filters struct {
	Cuisine   string  `json:"cuisine,omitempty"`
	Dietary   string  `json:"dietary,omitempty"`
	MaxPrice  int     `json:"maxPrice,omitempty"`
	MinRating float64 `json:"minRating,omitempty"`
}

// PlatformListings is the search outcome on one platform.
type PlatformListings struct {
	Platform domain.PlatformID `json:"platform"`
	Success  bool              `json:"success"`
	Listings []domain.Listing  `json:"listings,omitempty"`
	Partial  bool              `json:"partial,omitempty"`
	Cached   bool              `json:"cached,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// SearchResults joins the per-platform outcomes of a search.
type SearchResults struct {
	Query     string             `json:"query"`
	Filters   Filters            `json:"filters"`
	Platforms []PlatformListings `json:"platforms"`
	Timestamp time.Time          `json:"timestamp"`
}

// SearchAcrossPlatforms searches every target platform concurrently. A
// failing platform is reported in its entry and never affects the others.
func (o *Orchestrator) SearchAcrossPlatforms(ctx context.Context, query string, filters Filters, platforms []domain.PlatformID) (SearchResults, error) {
	snap, err := o.Settings(ctx)
	if err != nil {
		return SearchResults{}, err
	}
	if filters.Dietary == "" {
		filters.Dietary = snap.Preferences.Dietary
	}

	ids := o.targets(snap, platforms)
	results := make([]PlatformListings, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = o.searchOne(ctx, id, query, filters)
			return nil
		})
	}
	_ = g.Wait()

	return SearchResults{
		Query:     query,
		Filters:   filters,
		Platforms: results,
		Timestamp: o.now(),
	}, nil
}

func (o *Orchestrator) searchOne(ctx context.Context, id domain.PlatformID, query string, filters Filters) PlatformListings {
	out := PlatformListings{Platform: id}

	if o.cache != nil {
		listings, ok, err := o.cache.GetListings(ctx, id, query)
		if err != nil {
			slog.Warn("Listing cache read failed", "platform", id, "error", err)
		} else if ok {
			out.Success = true
			out.Cached = true
			out.Listings = filters.apply(listings)
			return out
		}
	}

	a, err := o.registry.Get(id)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := a.Search(ctx, query)
	metrics.RecordPlatformRequest(string(id), "search", err)
	if err != nil {
		slog.Warn("Platform search failed", "platform", id, "query", query, "error", err)
		out.Error = err.Error()
		return out
	}

	if o.cache != nil && !res.Partial {
		if err := o.cache.PutListings(ctx, id, query, res.Listings, o.cacheTTL); err != nil {
			slog.Warn("Listing cache write failed", "platform", id, "error", err)
		}
	}

	out.Success = true
	out.Partial = res.Partial
	out.Listings = filters.apply(res.Listings)
	return out
}

// Whole words only: "Veggie" and "Eggplant" are not egg.
var (
	meatWords = regexp.MustCompile(`\b(chicken|mutton|fish|shellfish|seafood|prawns?|lamb|pork|beef|keema|non[- ]?veg)\b`)
	eggWords  = regexp.MustCompile(`\b(eggs?|omelette)\b`)
)

func (f Filters) apply(in []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(in))
	for _, l := range in {
		if f.keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func (f Filters) keep(l domain.Listing) bool {
	if f.Cuisine != "" && l.Cuisine != "" &&
		!strings.Contains(strings.ToLower(l.Cuisine), strings.ToLower(f.Cuisine)) {
		return false
	}
	if f.MaxPrice > 0 && l.Price != nil && *l.Price > f.MaxPrice {
		return false
	}
	if f.MinRating > 0 && l.Rating != nil && *l.Rating < f.MinRating {
		return false
	}
	if excludesMeat(f.Dietary) {
		text := strings.ToLower(l.Name + " " + l.Cuisine)
		if meatWords.MatchString(text) {
			return false
		}
		if !strings.EqualFold(f.Dietary, "eggitarian") && eggWords.MatchString(text) {
			return false
		}
	}
	return true
}

func excludesMeat(dietary string) bool {
	switch strings.ToLower(dietary) {
	case "veg", "vegetarian", "vegan", "eggitarian":
		return true
	}
	return false
}
