package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/orchestrator"
)

// decodeArgs copies the model's loosely typed arguments into v.
func decodeArgs(args map[string]any, v any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func missing(name string) error {
	return fmt.Errorf("missing required argument %q", name)
}

type searchFoodArgs struct {
	Query     string   `json:"query"`
	Platforms []string `json:"platforms"`
	Filters   struct {
		Cuisine   string  `json:"cuisine"`
		Dietary   string  `json:"dietary"`
		MaxPrice  float64 `json:"maxPrice"`
		MinRating float64 `json:"minRating"`
	} `json:"filters"`
}

func (a *searchFoodArgs) validate() error {
	if strings.TrimSpace(a.Query) == "" {
		return missing("query")
	}
	return nil
}

func (a *searchFoodArgs) filters() orchestrator.Filters {
	return orchestrator.Filters{
		Cuisine:   a.Filters.Cuisine,
		Dietary:   a.Filters.Dietary,
		MaxPrice:  int(math.Round(a.Filters.MaxPrice)),
		MinRating: a.Filters.MinRating,
	}
}

func (a *searchFoodArgs) platforms() ([]domain.PlatformID, error) {
	return parsePlatforms(a.Platforms)
}

type comparePricesArgs struct {
	Item       string `json:"item"`
	Restaurant string `json:"restaurant"`
}

func (a *comparePricesArgs) validate() error {
	if strings.TrimSpace(a.Item) == "" {
		return missing("item")
	}
	return nil
}

type placeOrderArgs struct {
	Platform   string             `json:"platform"`
	Restaurant string             `json:"restaurant"`
	Items      []domain.OrderItem `json:"items"`
}

func (a *placeOrderArgs) validate() error {
	if a.Platform == "" {
		return missing("platform")
	}
	if len(a.Items) == 0 {
		return missing("items")
	}
	return nil
}

func (a *placeOrderArgs) request() (domain.OrderRequest, error) {
	id, err := domain.ParsePlatform(a.Platform)
	if err != nil {
		return domain.OrderRequest{}, err
	}
	return domain.OrderRequest{Platform: id, Restaurant: a.Restaurant, Items: a.Items}, nil
}

type getReviewsArgs struct {
	Restaurant string `json:"restaurant"`
	Platform   string `json:"platform"`
	Dish       string `json:"dish"`
}

func (a *getReviewsArgs) validate() error {
	if strings.TrimSpace(a.Restaurant) == "" {
		return missing("restaurant")
	}
	if a.Platform == "" {
		return missing("platform")
	}
	return nil
}

type analyzeMenuArgs struct {
	Restaurant  string `json:"restaurant"`
	Platform    string `json:"platform"`
	Preferences struct {
		Dietary    string  `json:"dietary"`
		MaxBudget  float64 `json:"maxBudget"`
		SpiceLevel string  `json:"spiceLevel"`
		Cuisine    string  `json:"cuisine"`
	} `json:"preferences"`
}

func (a *analyzeMenuArgs) validate() error {
	if strings.TrimSpace(a.Restaurant) == "" {
		return missing("restaurant")
	}
	if a.Platform == "" {
		return missing("platform")
	}
	return nil
}

func (a *analyzeMenuArgs) preferences() orchestrator.MenuPreferences {
	return orchestrator.MenuPreferences{
		Dietary:    a.Preferences.Dietary,
		MaxBudget:  int(math.Round(a.Preferences.MaxBudget)),
		SpiceLevel: a.Preferences.SpiceLevel,
		Cuisine:    a.Preferences.Cuisine,
	}
}

func parsePlatforms(names []string) ([]domain.PlatformID, error) {
	var ids []domain.PlatformID
	var errs []error
	for _, n := range names {
		id, err := domain.ParsePlatform(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, errors.Join(errs...)
}
