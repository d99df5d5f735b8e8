package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
)

// ManualSelectMessage is reported when no restaurant card could be clicked.
const ManualSelectMessage = `Search complete! Please open the restaurant and add items, then type "proceed".`

// workflow is one run of the order state machine. It owns its tab from the
// moment navigation opens it until an outcome is returned.
type workflow struct {
	site   *Site
	req    domain.OrderRequest
	handle browser.Handle
	trace  []domain.WorkflowState
}

type step struct {
	state domain.WorkflowState
	// run returns a non-nil outcome when it reaches a terminal state.
	run func(ctx context.Context) (*domain.OrderOutcome, error)
}

func (s *Site) PlaceOrder(ctx context.Context, req domain.OrderRequest) domain.OrderOutcome {
	w := &workflow{site: s, req: req}
	if len(req.Items) == 0 {
		return w.fail(domain.StateNavigating, errors.New("order has no items"))
	}
	return w.execute(ctx, []step{
		{domain.StateNavigating, w.navigate},
		{domain.StateSearching, w.search},
		{domain.StateSelectingRestaurant, w.selectRestaurant},
		{domain.StateAddingItems, w.addItems},
		{domain.StateOpeningCheckout, w.openCheckout},
	})
}

func (s *Site) ResumeCheckout(ctx context.Context, h browser.Handle, req domain.OrderRequest) domain.OrderOutcome {
	w := &workflow{site: s, req: req, handle: h}
	return w.execute(ctx, []step{
		{domain.StateOpeningCheckout, w.openCheckout},
	})
}

func (w *workflow) execute(ctx context.Context, steps []step) domain.OrderOutcome {
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return w.fail(st.state, fmt.Errorf("cancelled: %w", err))
		}
		w.enter(st.state)
		out, err := st.run(ctx)
		if err != nil {
			return w.fail(st.state, err)
		}
		if out != nil {
			return *out
		}
	}
	return w.fail(domain.StateError, errors.New("workflow ended without an outcome"))
}

func (w *workflow) enter(state domain.WorkflowState) {
	w.trace = append(w.trace, state)
	slog.Debug("Order workflow", "platform", w.site.profile.ID, "state", state, "handle", w.handle)
}

func (w *workflow) outcome(status domain.OutcomeStatus, msg string) *domain.OrderOutcome {
	return &domain.OrderOutcome{
		Status:    status,
		Message:   msg,
		TabHandle: string(w.handle),
		Platform:  w.site.profile.ID,
		Trace:     append([]domain.WorkflowState(nil), w.trace...),
	}
}

func (w *workflow) fail(state domain.WorkflowState, err error) domain.OrderOutcome {
	slog.Warn("Order workflow failed", "platform", w.site.profile.ID, "state", state, "error", err)
	w.trace = append(w.trace, domain.StateError)
	return *w.outcome(domain.StatusError, fmt.Sprintf("%v; please complete the order manually", err))
}

func (w *workflow) navigate(ctx context.Context) (*domain.OrderOutcome, error) {
	h, err := w.site.open(ctx)
	w.handle = h
	return nil, err
}

func (w *workflow) search(ctx context.Context) (*domain.OrderOutcome, error) {
	return nil, w.site.submitSearch(ctx, w.handle, w.req.SearchTerm())
}

func (w *workflow) selectRestaurant(ctx context.Context) (*domain.OrderOutcome, error) {
	if err := w.site.pacer.Act(ctx); err != nil {
		return nil, err
	}
	err := w.site.restaurantCard().Click(ctx, w.site.host, w.handle)
	if errors.Is(err, domain.ErrElementNotFound) {
		w.trace = append(w.trace, domain.StateManualRequired)
		return w.outcome(domain.StatusManualRequired, ManualSelectMessage), nil
	}
	if err != nil {
		return nil, err
	}
	return nil, w.site.pacer.Settle(ctx)
}

// addItems filters the menu by each item name and clicks the first ADD
// control, strictly in order. Items already added stay in the cart if a later
// one fails.
func (w *workflow) addItems(ctx context.Context) (*domain.OrderOutcome, error) {
	for i, item := range w.req.Items {
		if err := w.site.pacer.Act(ctx); err != nil {
			return nil, err
		}
		if err := w.site.filterMenu(ctx, w.handle, item.Name); err != nil {
			return nil, err
		}
		if err := w.site.addButton().Click(ctx, w.site.host, w.handle); err != nil {
			return nil, fmt.Errorf("adding %q (item %d of %d): %w", item.Name, i+1, len(w.req.Items), err)
		}
		if err := w.site.pacer.Settle(ctx); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// openCheckout opens the cart and then the payment step. Payment itself is
// always left to the operator.
func (w *workflow) openCheckout(ctx context.Context) (*domain.OrderOutcome, error) {
	if err := w.site.pacer.Act(ctx); err != nil {
		return nil, err
	}
	if err := w.site.checkoutButton().Click(ctx, w.site.host, w.handle); err != nil {
		return nil, err
	}
	if err := w.site.pacer.Settle(ctx); err != nil {
		return nil, err
	}

	if err := w.site.pacer.Act(ctx); err != nil {
		return nil, err
	}
	err := w.site.proceedButton().Click(ctx, w.site.host, w.handle)
	if errors.Is(err, domain.ErrElementNotFound) {
		return w.outcome(domain.StatusCartFilled,
			"Items are in the cart and checkout is open. Please review and continue to payment."), nil
	}
	if err != nil {
		return nil, err
	}
	w.trace = append(w.trace, domain.StateAwaitingPayment)
	return w.outcome(domain.StatusCheckoutReady,
		"Checkout is ready. Please review the order and complete payment in the browser."), nil
}
