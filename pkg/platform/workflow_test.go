package platform_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/browser/browsertest"
	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/platform"
)

const searchURL = "https://shop.test/search"

var testProfile = platform.Profile{
	ID:              domain.PlatformSwiggy,
	Domain:          "shop.test",
	SearchURL:       searchURL,
	SearchBox:       []string{"#q", "input[type=text]"},
	RestaurantCards: []string{".card a"},
	AddLabels:       []string{"ADD"},
	CheckoutLabels:  []string{"CHECKOUT", "VIEW CART", "PROCEED", "CART"},
	ProceedLabels:   []string{"PROCEED", "PAYMENT", "PAY"},
	Listings: browser.Extraction{Card: ".card", Fields: map[string]string{
		"name": ".name", "price": ".price", "rating": ".rating", "eta": ".eta",
	}},
	Reviews:     browser.Extraction{Card: ".review", Fields: map[string]string{"text": "p", "rating": ".stars"}},
	Menu:        browser.Extraction{Card: ".dish", Fields: map[string]string{"name": "h4", "price": ".price", "rating": ".rating"}},
	DeliveryFee: 40,
}

type pageFlags struct {
	loading, searchBox, cards, add, checkout, proceed bool
}

func (f pageFlags) page() *browsertest.Page {
	p := &browsertest.Page{Loading: f.loading, Selectors: map[string]int{}}
	if f.searchBox {
		p.Selectors["input[type=text]"] = 1
	}
	if f.cards {
		p.Selectors[".card a"] = 3
	}
	if f.add {
		p.Buttons = append(p.Buttons, "Add")
	}
	if f.checkout {
		p.Buttons = append(p.Buttons, "Checkout")
	}
	if f.proceed {
		p.Buttons = append(p.Buttons, "Pay Now")
	}
	return p
}

func (f pageFlags) want() domain.OutcomeStatus {
	switch {
	case f.loading, !f.searchBox:
		return domain.StatusError
	case !f.cards:
		return domain.StatusManualRequired
	case !f.add, !f.checkout:
		return domain.StatusError
	case !f.proceed:
		return domain.StatusCartFilled
	default:
		return domain.StatusCheckoutReady
	}
}

func newSite(page *browsertest.Page) (*platform.Site, *browsertest.Host) {
	host := browsertest.New(map[string]*browsertest.Page{searchURL: page})
	site := platform.NewSite(testProfile, host, platform.Options{LoadTimeout: 5 * time.Millisecond})
	return site, host
}

func order(items ...string) domain.OrderRequest {
	req := domain.OrderRequest{Platform: domain.PlatformSwiggy, Restaurant: "Pizza Hut"}
	for _, it := range items {
		req.Items = append(req.Items, domain.OrderItem{Name: it})
	}
	return req
}

func TestPlaceOrderHappyPath(t *testing.T) {
	site, host := newSite(pageFlags{searchBox: true, cards: true, add: true, checkout: true, proceed: true}.page())

	out := site.PlaceOrder(context.Background(), order("Margherita", "Garlic Bread"))
	if out.Status != domain.StatusCheckoutReady {
		t.Fatalf("status = %s (%s), want checkout_ready", out.Status, out.Message)
	}
	wantTrace := []domain.WorkflowState{
		domain.StateNavigating, domain.StateSearching, domain.StateSelectingRestaurant,
		domain.StateAddingItems, domain.StateOpeningCheckout, domain.StateAwaitingPayment,
	}
	if len(out.Trace) != len(wantTrace) {
		t.Fatalf("trace = %v, want %v", out.Trace, wantTrace)
	}
	for i := range wantTrace {
		if out.Trace[i] != wantTrace[i] {
			t.Errorf("trace[%d] = %s, want %s", i, out.Trace[i], wantTrace[i])
		}
	}

	tab, ok := host.Tab(browser.Handle(out.TabHandle))
	if !ok {
		t.Fatalf("no tab %q", out.TabHandle)
	}
	if tab.Closed {
		t.Errorf("order tab was closed; the operator needs it to pay")
	}
	wantTyped := []string{"Pizza Hut", "Margherita", "Garlic Bread"}
	if strings.Join(tab.Typed, "|") != strings.Join(wantTyped, "|") {
		t.Errorf("typed = %v, want %v", tab.Typed, wantTyped)
	}
	wantClicks := []string{".card a", "Add", "Add", "Checkout", "Pay Now"}
	if strings.Join(tab.Clicks, "|") != strings.Join(wantClicks, "|") {
		t.Errorf("clicks = %v, want %v", tab.Clicks, wantClicks)
	}
}

func TestPlaceOrderSearchesFirstItemWithoutRestaurant(t *testing.T) {
	site, host := newSite(pageFlags{searchBox: true, cards: true, add: true, checkout: true}.page())
	req := order("Paneer Tikka")
	req.Restaurant = ""

	out := site.PlaceOrder(context.Background(), req)
	if out.Status != domain.StatusCartFilled {
		t.Fatalf("status = %s, want cart_filled", out.Status)
	}
	tab, _ := host.Tab(browser.Handle(out.TabHandle))
	if len(tab.Typed) != 2 || tab.Typed[0] != "Paneer Tikka" || tab.Typed[1] != "Paneer Tikka" {
		t.Errorf("typed = %v", tab.Typed)
	}
}

// searchOnce hides the search box after the restaurant search, like a
// restaurant page that has no menu filter.
type searchOnce struct {
	*browsertest.Host
}

func (h searchOnce) RunScript(ctx context.Context, tab browser.Handle, s browser.Script, out any) error {
	if s.Name == browser.ScriptType {
		if t, _ := h.Tab(tab); len(t.Typed) > 0 {
			*(out.(*bool)) = false
			return nil
		}
	}
	return h.Host.RunScript(ctx, tab, s, out)
}

func TestPlaceOrderAddsWithoutMenuSearch(t *testing.T) {
	page := pageFlags{searchBox: true, cards: true, add: true, checkout: true}.page()
	host := searchOnce{browsertest.New(map[string]*browsertest.Page{searchURL: page})}
	site := platform.NewSite(testProfile, host, platform.Options{LoadTimeout: 5 * time.Millisecond})

	out := site.PlaceOrder(context.Background(), order("Margherita", "Coke"))
	if out.Status != domain.StatusCartFilled {
		t.Fatalf("status = %s (%s), want cart_filled", out.Status, out.Message)
	}
	tab, _ := host.Tab(browser.Handle(out.TabHandle))
	if strings.Join(tab.Clicks, "|") != ".card a|Add|Add|Checkout" {
		t.Errorf("clicks = %v", tab.Clicks)
	}
}

func TestPlaceOrderNoSearchInput(t *testing.T) {
	site, _ := newSite(pageFlags{cards: true, add: true, checkout: true, proceed: true}.page())

	out := site.PlaceOrder(context.Background(), order("Margherita"))
	if out.Status != domain.StatusError {
		t.Fatalf("status = %s, want error", out.Status)
	}
	if !strings.Contains(out.Message, "could not find search box") {
		t.Errorf("message %q does not carry the cause", out.Message)
	}
}

func TestPlaceOrderNoRestaurantCardIsManual(t *testing.T) {
	site, host := newSite(pageFlags{searchBox: true}.page())

	out := site.PlaceOrder(context.Background(), order("Margherita"))
	if out.Status != domain.StatusManualRequired {
		t.Fatalf("status = %s, want manual_required", out.Status)
	}
	if out.Message != platform.ManualSelectMessage {
		t.Errorf("message = %q", out.Message)
	}
	if out.TabHandle == "" {
		t.Fatal("manual_required outcome must carry the tab handle")
	}
	if tab, _ := host.Tab(browser.Handle(out.TabHandle)); tab.Closed {
		t.Error("tab closed before the operator could act")
	}
}

func TestPlaceOrderNoCheckoutIsError(t *testing.T) {
	site, _ := newSite(pageFlags{searchBox: true, cards: true, add: true}.page())

	out := site.PlaceOrder(context.Background(), order("Margherita"))
	if out.Status != domain.StatusError {
		t.Fatalf("status = %s, want error", out.Status)
	}
	if !strings.Contains(out.Message, "checkout button") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestPlaceOrderLoadTimeout(t *testing.T) {
	site, _ := newSite(pageFlags{loading: true, searchBox: true}.page())

	out := site.PlaceOrder(context.Background(), order("Margherita"))
	if out.Status != domain.StatusError {
		t.Fatalf("status = %s, want error", out.Status)
	}
	if !strings.Contains(out.Message, "timeout") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestPlaceOrderCancelled(t *testing.T) {
	site, _ := newSite(pageFlags{searchBox: true, cards: true, add: true, checkout: true, proceed: true}.page())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := site.PlaceOrder(ctx, order("Margherita"))
	if out.Status != domain.StatusError {
		t.Fatalf("status = %s, want error", out.Status)
	}
	if !strings.Contains(out.Message, "cancel") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestResumeCheckout(t *testing.T) {
	site, host := newSite(pageFlags{searchBox: true}.page())
	out := site.PlaceOrder(context.Background(), order("Margherita"))
	if out.Status != domain.StatusManualRequired {
		t.Fatalf("status = %s", out.Status)
	}

	// The operator picks a restaurant and fills the cart by hand.
	h := browser.Handle(out.TabHandle)
	host.SetPage(h, &browsertest.Page{Buttons: []string{"View Cart", "Proceed to Pay"}})

	resumed := site.ResumeCheckout(context.Background(), h, order("Margherita"))
	if resumed.Status != domain.StatusCheckoutReady {
		t.Fatalf("resumed status = %s (%s)", resumed.Status, resumed.Message)
	}
	if resumed.Trace[0] != domain.StateOpeningCheckout {
		t.Errorf("resume did not start at checkout: %v", resumed.Trace)
	}
	tab, _ := host.Tab(h)
	if strings.Join(tab.Clicks, "|") != "View Cart|Proceed to Pay" {
		t.Errorf("clicks = %v", tab.Clicks)
	}
}

func TestOrderStateMachineProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	genFlags := gopter.CombineGens(
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
	).Map(func(v []interface{}) pageFlags {
		return pageFlags{
			loading:   v[0].(bool),
			searchBox: v[1].(bool),
			cards:     v[2].(bool),
			add:       v[3].(bool),
			checkout:  v[4].(bool),
			proceed:   v[5].(bool),
		}
	})

	properties.Property("outcome status follows the first missing control", prop.ForAll(
		func(f pageFlags) bool {
			site, _ := newSite(f.page())
			out := site.PlaceOrder(context.Background(), order("Margherita"))
			if out.Status != f.want() {
				t.Logf("flags %+v: got %s, want %s (%s)", f, out.Status, f.want(), out.Message)
				return false
			}
			return true
		},
		genFlags,
	))

	properties.Property("missing restaurant cards never yield error", prop.ForAll(
		func(f pageFlags) bool {
			f.loading, f.searchBox, f.cards = false, true, false
			site, _ := newSite(f.page())
			return site.PlaceOrder(context.Background(), order("x")).Status == domain.StatusManualRequired
		},
		genFlags,
	))

	properties.Property("missing checkout never yields manual_required", prop.ForAll(
		func(f pageFlags) bool {
			f.loading, f.searchBox, f.cards, f.add, f.checkout = false, true, true, true, false
			site, _ := newSite(f.page())
			return site.PlaceOrder(context.Background(), order("x")).Status == domain.StatusError
		},
		genFlags,
	))

	properties.Property("trace ends in a terminal state", prop.ForAll(
		func(f pageFlags) bool {
			site, _ := newSite(f.page())
			out := site.PlaceOrder(context.Background(), order("x"))
			last := out.Trace[len(out.Trace)-1]
			switch last {
			case domain.StateAwaitingPayment, domain.StateManualRequired, domain.StateError, domain.StateOpeningCheckout:
				return true
			}
			return false
		},
		genFlags,
	))

	properties.TestingRun(t)
}
