// Package zomato holds the Zomato site profile.
package zomato

import (
	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/platform"
)

var Profile = platform.Profile{
	ID:        domain.PlatformZomato,
	Domain:    "zomato.com",
	SearchURL: "https://www.zomato.com/search",
	SearchBox: []string{
		`input[placeholder*="Search for restaurant"]`,
		`input[placeholder*="Search"]`,
		`input[placeholder*="search"]`,
		`input[type="text"]`,
	},
	RestaurantCards: []string{
		`a[href*="/order"]`,
		`[class*="sc-"][class*="Restaurant"] a`,
		`[class*="SearchCard"] a`,
		`a[class*="restaurant"]`,
	},
	AddLabels:      []string{"ADD", "ADD TO CART"},
	CheckoutLabels: []string{"CHECKOUT", "VIEW CART", "PROCEED", "CART"},
	ProceedLabels:  []string{"PROCEED", "PAYMENT", "PAY"},
	Listings: browser.Extraction{
		Card: `[class*="sc-"][class*="Restaurant"], [class*="search-result"], [class*="SearchCard"]`,
		Fields: map[string]string{
			"name":    `h4, [class*="name"], [class*="title"]`,
			"cuisine": `[class*="cuisine"]`,
			"rating":  `[class*="rating"]`,
			"eta":     `[class*="time"]`,
			"price":   `[class*="cost"], [class*="price"]`,
		},
	},
	Reviews: browser.Extraction{
		Card: `[class*="review"], article`,
		Fields: map[string]string{
			"rating": `[class*="rating"]`,
			"text":   `p, [class*="text"]`,
			"author": `[class*="author"], a[href*="/users/"]`,
		},
	},
	Menu: browser.Extraction{
		Card: `[class*="MenuItem"], [class*="menu-item"]`,
		Fields: map[string]string{
			"name":        `h4, [class*="name"]`,
			"price":       `[class*="price"]`,
			"rating":      `[class*="rating"]`,
			"veg":         `[type*="veg"], [class*="veg"]`,
			"description": `p, [class*="description"]`,
		},
	},
	DeliveryFee: 40,
}

// New returns the Zomato adapter.
func New(host browser.Host, opts platform.Options) *platform.Site {
	return platform.NewSite(Profile, host, opts)
}
