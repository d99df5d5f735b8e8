// Package blinkit holds the Blinkit site profile. Blinkit sells products
// rather than restaurant dishes, so its cards are product tiles.
package blinkit

import (
	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/platform"
)

var Profile = platform.Profile{
	ID:        domain.PlatformBlinkit,
	Domain:    "blinkit.com",
	SearchURL: "https://blinkit.com/search",
	SearchBox: []string{
		`input[placeholder*="Search"]`,
		`input[placeholder*="search"]`,
		`input[type="text"]`,
	},
	RestaurantCards: []string{
		`[class*="Product__"] a`,
		`a[href*="/prn/"]`,
		`[class*="product-card"] a`,
	},
	AddLabels:      []string{"ADD", "ADD TO CART"},
	CheckoutLabels: []string{"CHECKOUT", "VIEW CART", "PROCEED", "CART"},
	ProceedLabels:  []string{"PROCEED", "PAYMENT", "PAY"},
	Listings: browser.Extraction{
		Card: `[class*="Product__"], [class*="product-card"]`,
		Fields: map[string]string{
			"name":  `[class*="Product__ProductName"], [class*="name"], h3, h4`,
			"price": `[class*="Product__Price"], [class*="price"]`,
			"eta":   `[class*="eta"], [class*="time"]`,
		},
	},
	Reviews: browser.Extraction{
		Card: `[class*="review"]`,
		Fields: map[string]string{
			"rating": `[class*="rating"]`,
			"text":   `p, [class*="text"]`,
		},
	},
	Menu: browser.Extraction{
		Card: `[class*="Product__"], [class*="product-card"]`,
		Fields: map[string]string{
			"name":        `[class*="Product__ProductName"], [class*="name"], h3, h4`,
			"price":       `[class*="Product__Price"], [class*="price"]`,
			"description": `[class*="Product__Weight"], [class*="weight"]`,
		},
	},
	DeliveryFee: 25,
}

// New returns the Blinkit adapter.
func New(host browser.Host, opts platform.Options) *platform.Site {
	return platform.NewSite(Profile, host, opts)
}
