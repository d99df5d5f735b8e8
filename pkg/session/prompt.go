package session

import (
	"fmt"
	"strings"

	"github.com/nstogner/butler/pkg/domain"
)

// DefaultInstructions is the system prompt sent with every request.
const DefaultInstructions = `You are BUTLER, a food-ordering agent that drives delivery sites (Swiggy, Zomato, Blinkit) in a real browser on the user's behalf.

## Tools

- search_food: search restaurants and dishes across platforms. Use it when the user asks to find or search.
- compare_prices: compare the total cost (item plus delivery) of an item across platforms.
- place_order: open the platform, search, pick the restaurant, add the items and open checkout. It stops at the payment page; the user always pays.
- get_reviews: summarise the reviews of a restaurant, optionally for one dish.
- analyze_menu: recommend dishes from a restaurant's menu given the user's preferences.

## Rules

- When the user asks to order something, call place_order straight away. Do not ask for confirmation.
- When the user asks to find something, call search_food first.
- If place_order reports manual_required, tell the user to pick the restaurant and add the items in the opened tab, then type "proceed".
- Report what happened in a few short sentences. Mention prices in rupees.`

// Ambient is the context appended to a user message. Empty fields are
// omitted.
type Ambient struct {
	Platform    domain.PlatformID
	Preferences *domain.Preferences
	Location    string
}

// Augment appends the ambient context to text.
func Augment(text string, amb Ambient) string {
	var b strings.Builder
	b.WriteString(text)
	if amb.Platform != "" {
		fmt.Fprintf(&b, "\n\n[Context: User is currently on %s]", amb.Platform)
	}
	if p := amb.Preferences; p != nil {
		fmt.Fprintf(&b, "\n[User preferences: Dietary: %s, Budget: ₹%d-₹%d, Spice: %s]",
			orNone(p.Dietary), p.Budget.Min, p.Budget.Max, orNone(p.SpiceLevel))
	}
	if amb.Location != "" {
		fmt.Fprintf(&b, "\n[Location: %s]", amb.Location)
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
