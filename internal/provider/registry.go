package provider

import (
	"fmt"
	"sort"

	"github.com/restockwatch/worker/internal/domain"
)

// Registry maps retailer ids to their adapters. It is built once at startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry over the given adapters.
func NewRegistry(providers map[string]Provider) *Registry {
	return &Registry{providers: providers}
}

// For resolves the adapter for a retailer id.
func (r *Registry) For(retailer string) (Provider, error) {
	p, ok := r.providers[retailer]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedRetailer, retailer)
	}
	return p, nil
}

// Retailers returns the registered retailer ids in sorted order.
func (r *Registry) Retailers() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
