package platform

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/nstogner/butler/pkg/domain"
)

// Registry maps platforms to adapters. The order of registration is the
// order used for fan-out and for breaking ties.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.PlatformID]Adapter
	order    []domain.PlatformID
	domains  map[string]domain.PlatformID
}

// NewRegistry registers adapters in the given order.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: map[domain.PlatformID]Adapter{},
		domains:  map[string]domain.PlatformID{},
	}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.ID().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[a.ID()]; !ok {
		r.order = append(r.order, a.ID())
	}
	r.adapters[a.ID()] = a
	if s, ok := a.(*Site); ok && s.profile.Domain != "" {
		r.domains[s.profile.Domain] = a.ID()
	}
}

// Get returns the adapter for id.
func (r *Registry) Get(id domain.PlatformID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, id)
	}
	return a, nil
}

// IDs returns the registered platforms in registration order.
func (r *Registry) IDs() []domain.PlatformID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.PlatformID(nil), r.order...)
}

// Detect returns the registered platform serving rawURL.
func (r *Registry) Detect(rawURL string) (domain.PlatformID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for d, id := range r.domains {
		if hostMatches(rawURL, d) {
			return id, true
		}
	}
	return DetectPlatform(rawURL)
}

var knownDomains = map[string]domain.PlatformID{
	"swiggy.com":  domain.PlatformSwiggy,
	"zomato.com":  domain.PlatformZomato,
	"blinkit.com": domain.PlatformBlinkit,
}

// DetectPlatform maps a page URL to the delivery site it belongs to.
func DetectPlatform(rawURL string) (domain.PlatformID, bool) {
	for d, id := range knownDomains {
		if hostMatches(rawURL, d) {
			return id, true
		}
	}
	return "", false
}

func hostMatches(rawURL, d string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return false
		}
	}
	host := strings.ToLower(u.Hostname())
	return host == d || strings.HasSuffix(host, "."+d)
}
