package orchestrator

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/domain"
)

// pendingRegistry maps tab handles to workflows parked in manual_required.
type pendingRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[browser.Handle]domain.PendingOrder
}

func newPendingRegistry(ttl time.Duration, now func() time.Time) *pendingRegistry {
	return &pendingRegistry{
		ttl:     ttl,
		now:     now,
		records: map[browser.Handle]domain.PendingOrder{},
	}
}

func (r *pendingRegistry) add(h browser.Handle, req domain.OrderRequest) domain.PendingOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	rec := domain.PendingOrder{
		TabHandle: string(h),
		Platform:  req.Platform,
		Request:   req,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	r.records[h] = rec
	return rec
}

// take removes and returns the record for h. An expired record is removed
// and rejected.
func (r *pendingRegistry) take(h browser.Handle) (domain.PendingOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[h]
	if !ok {
		return domain.PendingOrder{}, fmt.Errorf("%w for tab %s", domain.ErrNoPendingWorkflow, h)
	}
	delete(r.records, h)
	if !r.now().Before(rec.ExpiresAt) {
		return rec, fmt.Errorf("%w: tab %s expired at %s", domain.ErrResumeExpired, h, rec.ExpiresAt.Format(time.RFC3339))
	}
	return rec, nil
}

// takeLatest takes the most recently added record.
func (r *pendingRegistry) takeLatest() (domain.PendingOrder, error) {
	r.mu.Lock()
	var latest *domain.PendingOrder
	for _, rec := range r.records {
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = &rec
		}
	}
	r.mu.Unlock()

	if latest == nil {
		return domain.PendingOrder{}, domain.ErrNoPendingWorkflow
	}
	return r.take(browser.Handle(latest.TabHandle))
}

// list returns all records, newest first.
func (r *pendingRegistry) list() []domain.PendingOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PendingOrder, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.PendingOrder) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// sweep removes and returns every expired record.
func (r *pendingRegistry) sweep() []domain.PendingOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var expired []domain.PendingOrder
	for h, rec := range r.records {
		if !now.Before(rec.ExpiresAt) {
			expired = append(expired, rec)
			delete(r.records, h)
		}
	}
	return expired
}
