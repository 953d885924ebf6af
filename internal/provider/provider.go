// Package provider contains the retailer adapters that normalise each
// retailer's availability API into a common status shape. Every adapter
// enforces its own request budget; callers never see an unbounded wait.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/restockwatch/worker/internal/domain"
	"golang.org/x/time/rate"
)

// Registered retailer ids.
const (
	RetailerBestBuy = "bestbuy"
	RetailerWalmart = "walmart"
)

// CheckResult is the normalised outcome of a single inventory lookup.
type CheckResult struct {
	Status       domain.AvailabilityState
	ProductURL   string
	AddToCartURL string
	ImageURL     string
	ProductName  string
}

// Store describes a physical store returned by a store lookup.
type Store struct {
	StoreID  string
	Name     string
	City     string
	Distance float64
}

// Provider is the normalised retailer contract. Implementations are safe for
// concurrent use and enforce their configured rate limit internally.
type Provider interface {
	CheckInventory(ctx context.Context, sku string, storeLocations []string) (*CheckResult, error)
	ProductURL(sku string) string
	AddToCartURL(sku string) string
	ValidateSKU(sku string) bool
}

// StoreFinder is the optional store-lookup capability. Adapters for retailers
// without per-store availability simply don't implement it.
type StoreFinder interface {
	FindStores(ctx context.Context, zip string, maxResults int) ([]Store, error)
}

// throttle combines a token bucket (requests/second) with an optional daily
// request cap. Admit blocks no longer than the caller's context allows; an
// exhausted budget surfaces as domain.ErrRateLimited instead of queueing
// indefinitely.
type throttle struct {
	bucket *rate.Limiter

	mu         sync.Mutex
	day        time.Time
	count      int
	dailyLimit int // 0 = no daily cap
}

func newThrottle(rps float64, burst, dailyLimit int) *throttle {
	return &throttle{
		bucket:     rate.NewLimiter(rate.Limit(rps), burst),
		dailyLimit: dailyLimit,
	}
}

func (t *throttle) admit(ctx context.Context) error {
	if t.dailyLimit > 0 {
		t.mu.Lock()
		today := time.Now().UTC().Truncate(24 * time.Hour)
		if !t.day.Equal(today) {
			t.day = today
			t.count = 0
		}
		if t.count >= t.dailyLimit {
			t.mu.Unlock()
			return fmt.Errorf("daily request cap reached: %w", domain.ErrRateLimited)
		}
		t.count++
		t.mu.Unlock()
	}
	if err := t.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("token bucket wait: %w", domain.ErrRateLimited)
	}
	return nil
}

// getJSON performs a GET and decodes the JSON body, mapping HTTP outcomes to
// the domain error taxonomy: 404 → ErrProductNotFound, 429 → ErrRateLimited,
// any other non-2xx or transport failure → ErrProviderUnavailable.
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrProductNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("upstream throttled: %w", domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrProviderUnavailable, err)
	}
	return nil
}
