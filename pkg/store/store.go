package store

import (
	"context"
	"time"

	"github.com/nstogner/butler/pkg/domain"
)

// ListingCache is a best effort cache of platform search results.
type ListingCache interface {
	// GetListings returns cached listings for (platform, query). The bool is
	// false on a miss or when the entry has expired.
	GetListings(ctx context.Context, platform domain.PlatformID, query string) ([]domain.Listing, bool, error)

	// PutListings stores listings for ttl, replacing any previous entry.
	PutListings(ctx context.Context, platform domain.PlatformID, query string, listings []domain.Listing, ttl time.Duration) error

	// PurgeExpired deletes expired entries and reports how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// OrderRecord is one automated order attempt.
type OrderRecord struct {
	ID        string              `json:"id"`
	Request   domain.OrderRequest `json:"request"`
	Outcome   domain.OrderOutcome `json:"outcome"`
	Resumed   bool                `json:"resumed,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

// OrderLog keeps a history of order attempts.
type OrderLog interface {
	// RecordOrder appends a record. ID and CreatedAt are set by the store
	// when empty.
	RecordOrder(ctx context.Context, rec *OrderRecord) error

	// RecentOrders returns up to limit records, newest first.
	RecentOrders(ctx context.Context, limit int) ([]OrderRecord, error)

	// GetOrder retrieves a record by ID. Returns domain.ErrNotFound if absent.
	GetOrder(ctx context.Context, id string) (*OrderRecord, error)

	// Subscribe returns a channel that emits record IDs as orders are recorded.
	Subscribe() <-chan string

	// Unsubscribe stops and closes a channel returned by Subscribe.
	Unsubscribe(sub <-chan string)
}
