package orchestrator

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/metrics"
)

const (
	minRecommendRating = 4.0
	maxRecommendations = 5
)

// MenuPreferences narrow menu recommendations. Zero values disable a
// preference.
type MenuPreferences struct {
	Dietary    string `json:"dietary,omitempty"`
	MaxBudget  int    `json:"maxBudget,omitempty"`
	SpiceLevel string `json:"spiceLevel,omitempty"`
	Cuisine    string `json:"cuisine,omitempty"`
}

// MenuReport is the outcome of AnalyzeMenu.
type MenuReport struct {
	Restaurant      string             `json:"restaurant"`
	Platform        domain.PlatformID  `json:"platform"`
	Preferences     MenuPreferences    `json:"preferences"`
	Menu            []domain.MenuEntry `json:"menu"`
	Recommendations []domain.MenuEntry `json:"recommendations"`
}

// AnalyzeMenu fetches the menu of restaurant and ranks it. Preferences left
// unset are taken from the stored settings.
func (o *Orchestrator) AnalyzeMenu(ctx context.Context, restaurant string, id domain.PlatformID, prefs MenuPreferences) (MenuReport, error) {
	snap, err := o.Settings(ctx)
	if err != nil {
		return MenuReport{}, err
	}
	prefs = preferencesFrom(prefs, snap.Preferences)

	a, err := o.registry.Get(id)
	if err != nil {
		return MenuReport{}, err
	}
	menu, err := a.Menu(ctx, restaurant)
	metrics.RecordPlatformRequest(string(id), "menu", err)
	if err != nil {
		return MenuReport{}, fmt.Errorf("fetching menu for %q on %s: %w", restaurant, id, err)
	}
	return MenuReport{
		Restaurant:      restaurant,
		Platform:        id,
		Preferences:     prefs,
		Menu:            menu,
		Recommendations: Recommend(menu, prefs),
	}, nil
}

// Recommend keeps entries rated at least 4.0 that fit prefs, orders them by
// rating*2 - price/100 descending and returns at most five. Equal scores keep
// their menu order.
func Recommend(entries []domain.MenuEntry, prefs MenuPreferences) []domain.MenuEntry {
	out := []domain.MenuEntry{}
	for _, e := range entries {
		if e.Rating < minRecommendRating {
			continue
		}
		if prefs.MaxBudget > 0 && e.Price > prefs.MaxBudget {
			continue
		}
		if excludesMeat(prefs.Dietary) && e.Veg != nil && !*e.Veg {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b domain.MenuEntry) int {
		return cmp.Compare(score(b), score(a))
	})
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}

func score(e domain.MenuEntry) float64 {
	return e.Rating*2 - float64(e.Price)/100
}

// preferencesFrom fills unset menu preferences from the stored ones.
func preferencesFrom(p MenuPreferences, stored domain.Preferences) MenuPreferences {
	if p.Dietary == "" && !strings.EqualFold(stored.Dietary, "none") {
		p.Dietary = stored.Dietary
	}
	if p.SpiceLevel == "" {
		p.SpiceLevel = stored.SpiceLevel
	}
	if p.Cuisine == "" {
		p.Cuisine = stored.Cuisine
	}
	if p.MaxBudget == 0 {
		p.MaxBudget = stored.Budget.Max
	}
	return p
}
