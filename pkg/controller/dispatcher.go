package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/metrics"
	"github.com/nstogner/butler/pkg/orchestrator"
)

// Operations is the automation surface the tools drive.
// *orchestrator.Orchestrator implements it.
type Operations interface {
	Settings(ctx context.Context) (domain.Settings, error)
	DetectPlatform(rawURL string) (domain.PlatformID, bool)
	SearchAcrossPlatforms(ctx context.Context, query string, filters orchestrator.Filters, platforms []domain.PlatformID) (orchestrator.SearchResults, error)
	ComparePrices(ctx context.Context, item, restaurant string) (orchestrator.PriceComparison, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderOutcome, error)
	AggregateReviews(ctx context.Context, restaurant string, id domain.PlatformID, dish string) (orchestrator.ReviewReport, error)
	AnalyzeMenu(ctx context.Context, restaurant string, id domain.PlatformID, prefs orchestrator.MenuPreferences) (orchestrator.MenuReport, error)
	ResumeLatest(ctx context.Context) (domain.OrderOutcome, error)
}

var _ Operations = (*orchestrator.Orchestrator)(nil)

type handler func(ctx context.Context, args map[string]any) (any, error)

// Dispatcher executes the model's tool calls against Operations.
type Dispatcher struct {
	ops      Operations
	handlers map[string]handler
}

// NewDispatcher creates a Dispatcher serving the tools declared by Tools.
func NewDispatcher(ops Operations) *Dispatcher {
	d := &Dispatcher{ops: ops}
	d.handlers = map[string]handler{
		domain.ToolSearchFood:    d.searchFood,
		domain.ToolComparePrices: d.comparePrices,
		domain.ToolPlaceOrder:    d.placeOrder,
		domain.ToolGetReviews:    d.getReviews,
		domain.ToolAnalyzeMenu:   d.analyzeMenu,
	}
	return d
}

// Dispatch runs calls one at a time, in order, and returns one result per
// call. A failing call never prevents the following ones from running.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []domain.ToolCall) []domain.ToolResult {
	results := make([]domain.ToolResult, 0, len(calls))
	for _, c := range calls {
		results = append(results, d.dispatchOne(ctx, c))
	}
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, call domain.ToolCall) (res domain.ToolResult) {
	res = domain.ToolResult{ID: call.ID, Name: call.Name}

	h, ok := d.handlers[call.Name]
	if !ok {
		slog.Warn("Unknown tool requested", "tool", call.Name)
		metrics.RecordToolCall(call.Name, metrics.OutcomeUnknown)
		res.Result = map[string]any{"error": "Unknown function: " + call.Name}
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", call.Name, "panic", r)
			metrics.RecordToolCall(call.Name, metrics.OutcomeError)
			res.Result = nil
			res.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	slog.Debug("Executing tool", "tool", call.Name, "id", call.ID)
	payload, err := h(ctx, call.Args)
	if err != nil {
		slog.Warn("Tool failed", "tool", call.Name, "error", err)
		metrics.RecordToolCall(call.Name, metrics.OutcomeError)
		res.Error = err.Error()
		return res
	}

	metrics.RecordToolCall(call.Name, metrics.OutcomeOK)
	if payload == nil {
		payload = map[string]any{}
	}
	res.Result = payload
	return res
}

func (d *Dispatcher) searchFood(ctx context.Context, raw map[string]any) (any, error) {
	var args searchFoodArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	platforms, err := args.platforms()
	if err != nil {
		return nil, err
	}
	return d.ops.SearchAcrossPlatforms(ctx, args.Query, args.filters(), platforms)
}

func (d *Dispatcher) comparePrices(ctx context.Context, raw map[string]any) (any, error) {
	var args comparePricesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	return d.ops.ComparePrices(ctx, args.Item, args.Restaurant)
}

func (d *Dispatcher) placeOrder(ctx context.Context, raw map[string]any) (any, error) {
	var args placeOrderArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	req, err := args.request()
	if err != nil {
		return nil, err
	}
	return d.ops.PlaceOrder(ctx, req)
}

func (d *Dispatcher) getReviews(ctx context.Context, raw map[string]any) (any, error) {
	var args getReviewsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	id, err := domain.ParsePlatform(args.Platform)
	if err != nil {
		return nil, err
	}
	return d.ops.AggregateReviews(ctx, args.Restaurant, id, args.Dish)
}

func (d *Dispatcher) analyzeMenu(ctx context.Context, raw map[string]any) (any, error) {
	var args analyzeMenuArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	id, err := domain.ParsePlatform(args.Platform)
	if err != nil {
		return nil, err
	}
	return d.ops.AnalyzeMenu(ctx, args.Restaurant, id, args.preferences())
}
