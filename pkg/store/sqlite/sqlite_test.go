package sqlite

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmpFile := t.TempDir() + "/test.db"
	s, err := New(tmpFile)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		os.Remove(tmpFile)
	})
	return s
}

func price(n int) *int { return &n }

func TestListingCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	listings := []domain.Listing{
		{Name: "Pizza Hut", Price: price(299), Platform: domain.PlatformSwiggy},
		{Name: "Dominos", Platform: domain.PlatformSwiggy},
	}
	if err := s.PutListings(ctx, domain.PlatformSwiggy, "Pizza", listings, time.Hour); err != nil {
		t.Fatalf("PutListings: %v", err)
	}

	// Queries are normalised.
	got, ok, err := s.GetListings(ctx, domain.PlatformSwiggy, "  pizza ")
	if err != nil {
		t.Fatalf("GetListings: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[0].Name != "Pizza Hut" || got[0].Price == nil || *got[0].Price != 299 {
		t.Errorf("got %+v", got)
	}

	// Other platforms miss.
	if _, ok, _ := s.GetListings(ctx, domain.PlatformZomato, "pizza"); ok {
		t.Error("unexpected hit for zomato")
	}
}

func TestListingCacheExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.PutListings(ctx, domain.PlatformBlinkit, "milk", nil, time.Minute); err != nil {
		t.Fatalf("PutListings: %v", err)
	}
	if _, ok, _ := s.GetListings(ctx, domain.PlatformBlinkit, "milk"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.GetListings(ctx, domain.PlatformBlinkit, "milk"); ok {
		t.Error("expected miss after expiry")
	}

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}
}

func TestOrderLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	updates := s.Subscribe()

	first := &store.OrderRecord{
		Request: domain.OrderRequest{Platform: domain.PlatformSwiggy, Items: []domain.OrderItem{{Name: "Margherita"}}},
		Outcome: domain.OrderOutcome{Status: domain.StatusManualRequired, Platform: domain.PlatformSwiggy, TabHandle: "tab-1"},
	}
	if err := s.RecordOrder(ctx, first); err != nil {
		t.Fatalf("RecordOrder: %v", err)
	}
	if first.ID == "" {
		t.Fatal("ID not assigned")
	}

	select {
	case id := <-updates:
		if id != first.ID {
			t.Errorf("notified %q, want %q", id, first.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	second := &store.OrderRecord{
		Request:   first.Request,
		Outcome:   domain.OrderOutcome{Status: domain.StatusCheckoutReady, Platform: domain.PlatformSwiggy},
		Resumed:   true,
		CreatedAt: first.CreatedAt.Add(time.Second),
	}
	if err := s.RecordOrder(ctx, second); err != nil {
		t.Fatalf("RecordOrder: %v", err)
	}

	recent, err := s.RecentOrders(ctx, 10)
	if err != nil {
		t.Fatalf("RecentOrders: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	if recent[0].ID != second.ID || !recent[0].Resumed {
		t.Errorf("newest record = %+v", recent[0])
	}
	if recent[1].Request.Items[0].Name != "Margherita" {
		t.Errorf("request not round-tripped: %+v", recent[1].Request)
	}

	got, err := s.GetOrder(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Outcome.TabHandle != "tab-1" {
		t.Errorf("TabHandle = %q", got.Outcome.TabHandle)
	}

	if _, err := s.GetOrder(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetOrder(missing) err = %v, want ErrNotFound", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kept := s.Subscribe()
	dropped := s.Subscribe()

	s.Unsubscribe(dropped)
	if _, ok := <-dropped; ok {
		t.Fatal("unsubscribed channel still open")
	}
	s.Unsubscribe(dropped) // already gone

	rec := &store.OrderRecord{Outcome: domain.OrderOutcome{Status: domain.StatusCartFilled, Platform: domain.PlatformZomato}}
	if err := s.RecordOrder(ctx, rec); err != nil {
		t.Fatalf("RecordOrder: %v", err)
	}
	select {
	case id := <-kept:
		if id != rec.ID {
			t.Errorf("notified %q, want %q", id, rec.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber not notified")
	}

	s.mu.RLock()
	n := len(s.subscribers)
	s.mu.RUnlock()
	if n != 1 {
		t.Errorf("%d subscribers registered, want 1", n)
	}
}
