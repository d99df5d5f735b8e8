package orchestrator

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/metrics"
)

// PlatformPrice is the price of an item on one platform. Error is set when
// the platform could not price it.
type PlatformPrice struct {
	Platform    domain.PlatformID `json:"platform"`
	ItemPrice   int               `json:"itemPrice,omitempty"`
	DeliveryFee int               `json:"deliveryFee,omitempty"`
	Total       int               `json:"total,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func (p PlatformPrice) ok() bool { return p.Error == "" }

// BestDeal is the cheapest platform by total cost.
type BestDeal struct {
	Platform  domain.PlatformID `json:"platform"`
	TotalCost int               `json:"totalCost"`
	Savings   int               `json:"savings"`
}

// PriceComparison is the outcome of ComparePrices. BestDeal is nil when no
// platform returned a price.
type PriceComparison struct {
	Item       string          `json:"item"`
	Restaurant string          `json:"restaurant,omitempty"`
	Platforms  []PlatformPrice `json:"platforms"`
	BestDeal   *BestDeal       `json:"bestDeal"`
}

// ComparePrices prices item on every enabled platform concurrently.
func (o *Orchestrator) ComparePrices(ctx context.Context, item, restaurant string) (PriceComparison, error) {
	snap, err := o.Settings(ctx)
	if err != nil {
		return PriceComparison{}, err
	}

	ids := o.targets(snap, nil)
	prices := make([]PlatformPrice, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			prices[i] = o.priceOne(ctx, id, item, restaurant)
			return nil
		})
	}
	_ = g.Wait()

	return PriceComparison{
		Item:       item,
		Restaurant: restaurant,
		Platforms:  prices,
		BestDeal:   bestDeal(prices),
	}, nil
}

func (o *Orchestrator) priceOne(ctx context.Context, id domain.PlatformID, item, restaurant string) PlatformPrice {
	out := PlatformPrice{Platform: id}
	a, err := o.registry.Get(id)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	info, err := a.PriceInfo(ctx, item, restaurant)
	metrics.RecordPlatformRequest(string(id), "price", err)
	if err != nil {
		slog.Debug("Price lookup failed", "platform", id, "item", item, "error", err)
		out.Error = err.Error()
		return out
	}
	out.ItemPrice = info.ItemPrice
	out.DeliveryFee = info.DeliveryFee
	out.Total = info.Total()
	return out
}

// bestDeal picks the minimum total among successful prices, preferring the
// earliest on ties. Savings is the rounded mean of the other successful
// totals minus the best one, or 0 when there are none.
func bestDeal(prices []PlatformPrice) *BestDeal {
	best := -1
	for i, p := range prices {
		if p.ok() && (best < 0 || p.Total < prices[best].Total) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}

	var sum, n int
	for i, p := range prices {
		if i != best && p.ok() {
			sum += p.Total
			n++
		}
	}
	deal := &BestDeal{Platform: prices[best].Platform, TotalCost: prices[best].Total}
	if n > 0 {
		deal.Savings = int(math.Round(float64(sum)/float64(n) - float64(deal.TotalCost)))
	}
	return deal
}
