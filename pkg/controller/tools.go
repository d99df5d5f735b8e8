package controller

import (
	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/model"
)

var platformEnum = []string{
	string(domain.PlatformSwiggy),
	string(domain.PlatformZomato),
	string(domain.PlatformBlinkit),
}

// Tools returns the declarations of every function the dispatcher serves.
func Tools() []model.Tool {
	return []model.Tool{
		{
			Name:        domain.ToolSearchFood,
			Description: "Search for restaurants or dishes across food delivery platforms.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"query": {Type: "string", Description: "What to search for, e.g. \"biryani\" or a restaurant name."},
					"platforms": {
						Type:        "array",
						Description: "Platforms to search. Defaults to every enabled platform.",
						Items:       &model.Schema{Type: "string", Enum: platformEnum},
					},
					"filters": {
						Type: "object",
						Properties: map[string]*model.Schema{
							"cuisine":   {Type: "string"},
							"dietary":   {Type: "string", Enum: []string{"veg", "non-veg", "eggitarian", "vegan"}},
							"maxPrice":  {Type: "number", Description: "Maximum price in rupees."},
							"minRating": {Type: "number", Description: "Minimum rating out of 5."},
						},
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        domain.ToolComparePrices,
			Description: "Compare the total cost of an item, including delivery, across platforms.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"item":       {Type: "string", Description: "The dish or product to price."},
					"restaurant": {Type: "string", Description: "Restrict the comparison to one restaurant."},
				},
				Required: []string{"item"},
			},
		},
		{
			Name:        domain.ToolPlaceOrder,
			Description: "Open the platform, add the items to the cart and stop at the payment page. The user completes payment.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"platform":   {Type: "string", Enum: platformEnum},
					"restaurant": {Type: "string"},
					"items": {
						Type:        "array",
						Description: "Names of the items to add.",
						Items:       &model.Schema{Type: "string"},
					},
				},
				Required: []string{"platform", "items"},
			},
		},
		{
			Name:        domain.ToolGetReviews,
			Description: "Summarise customer reviews of a restaurant, optionally for one dish.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"restaurant": {Type: "string"},
					"platform":   {Type: "string", Enum: platformEnum},
					"dish":       {Type: "string"},
				},
				Required: []string{"restaurant", "platform"},
			},
		},
		{
			Name:        domain.ToolAnalyzeMenu,
			Description: "Recommend dishes from a restaurant menu given dietary and budget preferences.",
			Parameters: &model.Schema{
				Type: "object",
				Properties: map[string]*model.Schema{
					"restaurant": {Type: "string"},
					"platform":   {Type: "string", Enum: platformEnum},
					"preferences": {
						Type: "object",
						Properties: map[string]*model.Schema{
							"dietary":    {Type: "string"},
							"maxBudget":  {Type: "number"},
							"spiceLevel": {Type: "string"},
							"cuisine":    {Type: "string"},
						},
					},
				},
				Required: []string{"restaurant", "platform"},
			},
		},
	}
}
