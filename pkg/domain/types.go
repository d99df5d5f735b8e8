package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PlatformID identifies a supported delivery site.
type PlatformID string

const (
	PlatformSwiggy  PlatformID = "swiggy"
	PlatformZomato  PlatformID = "zomato"
	PlatformBlinkit PlatformID = "blinkit"
)

// AllPlatforms lists the known platforms in their default order.
var AllPlatforms = []PlatformID{PlatformSwiggy, PlatformZomato, PlatformBlinkit}

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (PlatformID, error) {
	id := PlatformID(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range AllPlatforms {
		if p == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, s)
}

// Listing is a restaurant or product record scraped from a search page.
type Listing struct {
	Name        string     `json:"name"`
	Price       *int       `json:"price,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	DeliveryETA string     `json:"deliveryEta,omitempty"`
	Cuisine     string     `json:"cuisine,omitempty"`
	Platform    PlatformID `json:"platform"`
}

// OrderItem is one entry of an order request. It decodes from either a bare
// string or an object with a name field.
type OrderItem struct {
	Name string `json:"name"`
}

func (i *OrderItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("order item must be a string or {name}: %w", err)
	}
	i.Name = obj.Name
	return nil
}

// OrderRequest describes an order to automate on a single platform.
type OrderRequest struct {
	Platform   PlatformID  `json:"platform"`
	Restaurant string      `json:"restaurant,omitempty"`
	Items      []OrderItem `json:"items"`
}

// SearchTerm is the text typed into the platform search box.
func (r OrderRequest) SearchTerm() string {
	if r.Restaurant != "" {
		return r.Restaurant
	}
	if len(r.Items) > 0 {
		return r.Items[0].Name
	}
	return ""
}

// OutcomeStatus is the terminal status of an order workflow.
type OutcomeStatus string

const (
	StatusCheckoutReady  OutcomeStatus = "checkout_ready"
	StatusManualRequired OutcomeStatus = "manual_required"
	StatusCartFilled     OutcomeStatus = "cart_filled"
	StatusError          OutcomeStatus = "error"
)

// WorkflowState is a step of the order placement state machine.
type WorkflowState string

const (
	StateNavigating          WorkflowState = "navigating"
	StateSearching           WorkflowState = "searching"
	StateSelectingRestaurant WorkflowState = "selecting_restaurant"
	StateAddingItems         WorkflowState = "adding_items"
	StateOpeningCheckout     WorkflowState = "opening_checkout"
	StateAwaitingPayment     WorkflowState = "awaiting_payment"
	StateManualRequired      WorkflowState = "manual_required"
	StateError               WorkflowState = "error"
)

// OrderOutcome is the terminal result of an order workflow.
type OrderOutcome struct {
	Status    OutcomeStatus   `json:"status"`
	Message   string          `json:"message"`
	TabHandle string          `json:"tabHandle,omitempty"`
	Platform  PlatformID      `json:"platform"`
	Trace     []WorkflowState `json:"trace,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	// ThoughtSignature is opaque provider state that must be sent back
	// with the call on the next request.
	ThoughtSignature []byte `json:"thoughtSignature,omitempty"`
}

// ToolResult answers exactly one ToolCall. Exactly one of Result or Error is set.
type ToolResult struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Turn is one entry of a conversation history.
type Turn struct {
	Role    Role         `json:"role"`
	Text    string       `json:"text,omitempty"`
	Calls   []ToolCall   `json:"calls,omitempty"`
	Results []ToolResult `json:"results,omitempty"`

	TextSignature []byte `json:"textSignature,omitempty"`
}

// PriceInfo is the price of an item on one platform.
type PriceInfo struct {
	ItemPrice   int `json:"itemPrice"`
	DeliveryFee int `json:"deliveryFee"`
}

// Total is the item price plus delivery.
func (p PriceInfo) Total() int { return p.ItemPrice + p.DeliveryFee }

// Review is a single customer review.
type Review struct {
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
	Author string  `json:"author,omitempty"`
}

// MenuEntry is a dish on a restaurant menu.
type MenuEntry struct {
	Name        string  `json:"name"`
	Price       int     `json:"price"`
	Rating      float64 `json:"rating"`
	Veg         *bool   `json:"veg,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Budget is an inclusive price range in whole currency units.
type Budget struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Preferences are the operator's stored food preferences.
type Preferences struct {
	Dietary    string `json:"dietary,omitempty"`
	SpiceLevel string `json:"spiceLevel,omitempty"`
	Cuisine    string `json:"cuisine,omitempty"`
	Budget     Budget `json:"budget"`
}

// Settings is a read-only snapshot of operator settings.
type Settings struct {
	APIKey           string       `json:"-"`
	Location         string       `json:"location,omitempty"`
	Preferences      Preferences  `json:"preferences"`
	EnabledPlatforms []PlatformID `json:"enabledPlatforms"`
}

// PendingOrder is a workflow parked in manual_required, waiting for the
// operator to signal readiness.
type PendingOrder struct {
	TabHandle string       `json:"tabHandle"`
	Platform  PlatformID   `json:"platform"`
	Request   OrderRequest `json:"request"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}
