// Package swiggy holds the Swiggy site profile.
package swiggy

import (
	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/platform"
)

var Profile = platform.Profile{
	ID:        domain.PlatformSwiggy,
	Domain:    "swiggy.com",
	SearchURL: "https://www.swiggy.com/search",
	SearchBox: []string{
		`input[placeholder*="Search"]`,
		`input[placeholder*="search"]`,
		`[data-testid="search-input"]`,
		`input[type="search"]`,
		`input[type="text"]`,
	},
	RestaurantCards: []string{
		`a[data-testid="restaurant-card"]`,
		`a[class*="RestaurantList"]`,
		`a[class*="restaurant"]`,
		`[class*="styles_cardContainer"] a`,
		`div[class*="restaurant"] a`,
	},
	AddLabels:      []string{"ADD", "ADD TO CART"},
	CheckoutLabels: []string{"CHECKOUT", "VIEW CART", "PROCEED", "CART"},
	ProceedLabels:  []string{"PROCEED", "PAYMENT", "PAY"},
	Listings: browser.Extraction{
		Card: `[class*="RestaurantList"] [class*="styles_card"], [class*="search"] [class*="RestaurantCard"]`,
		Fields: map[string]string{
			"name":    `[class*="name"]`,
			"cuisine": `[class*="cuisine"]`,
			"rating":  `[class*="rating"]`,
			"eta":     `[class*="time"]`,
			"price":   `[class*="price"]`,
		},
	},
	Reviews: browser.Extraction{
		Card: `[class*="Review"], [class*="review-card"]`,
		Fields: map[string]string{
			"rating": `[class*="rating"]`,
			"text":   `[class*="text"], p`,
			"author": `[class*="author"], [class*="name"]`,
		},
	},
	Menu: browser.Extraction{
		Card: `[class*="MenuItem"]`,
		Fields: map[string]string{
			"name":        `[class*="item-name"], [class*="itemName"]`,
			"price":       `[class*="price"]`,
			"rating":      `[class*="rating"]`,
			"veg":         `[class*="veg"], [aria-label*="Veg"]`,
			"description": `[class*="description"]`,
		},
	},
	DeliveryFee: 0,
}

// New returns the Swiggy adapter.
func New(host browser.Host, opts platform.Options) *platform.Site {
	return platform.NewSite(Profile, host, opts)
}
