package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/restockwatch/worker/internal/domain"
)

const walmartBaseURL = "https://developer.api.walmart.com/api-proxy/service/affil/product/v2"

// Walmart item ids are numeric, six to twelve digits.
var walmartSKURe = regexp.MustCompile(`^\d{6,12}$`)

// Walmart is the Walmart affiliate product API adapter. The affiliate API
// only exposes online availability, so this adapter reports no store data
// and does not implement StoreFinder.
type Walmart struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	throttle *throttle
}

// WalmartOptions configures a Walmart adapter.
type WalmartOptions struct {
	APIKey  string
	RPS     float64
	BaseURL string        // override for tests
	Timeout time.Duration // per-request timeout; defaults to 8s
}

// NewWalmart creates a Walmart adapter with its own rate budget.
func NewWalmart(opts WalmartOptions) *Walmart {
	if opts.BaseURL == "" {
		opts.BaseURL = walmartBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	burst := int(opts.RPS)
	if burst < 1 {
		burst = 1
	}
	return &Walmart{
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		client:   &http.Client{Timeout: opts.Timeout},
		throttle: newThrottle(opts.RPS, burst, 0),
	}
}

type walmartItem struct {
	ItemID             int    `json:"itemId"`
	Name               string `json:"name"`
	Stock              string `json:"stock"` // "Available" | "Not available"
	AvailableOnline    bool   `json:"availableOnline"`
	ProductTrackingURL string `json:"productTrackingUrl"`
	LargeImage         string `json:"largeImage"`
}

// CheckInventory looks up the online availability of a Walmart item id.
func (w *Walmart) CheckInventory(ctx context.Context, sku string, _ []string) (*CheckResult, error) {
	if err := w.throttle.admit(ctx); err != nil {
		return nil, err
	}

	var item walmartItem
	u := fmt.Sprintf("%s/items/%s?apiKey=%s", w.baseURL, url.PathEscape(sku), url.QueryEscape(w.apiKey))
	if err := getJSON(ctx, w.client, u, &item); err != nil {
		return nil, err
	}

	available := item.AvailableOnline || item.Stock == "Available"
	res := &CheckResult{
		ProductName:  item.Name,
		ProductURL:   item.ProductTrackingURL,
		AddToCartURL: w.AddToCartURL(sku),
		ImageURL:     item.LargeImage,
		Status: domain.AvailabilityState{
			Online: domain.OnlineAvailability{Available: available},
		},
	}
	if res.ProductURL == "" {
		res.ProductURL = w.ProductURL(sku)
	}
	if available {
		now := time.Now().UTC()
		res.Status.Online.LastKnownAvailable = &now
	}
	return res, nil
}

// ProductURL returns the customer-facing product page for an item id.
func (w *Walmart) ProductURL(sku string) string {
	return fmt.Sprintf("https://www.walmart.com/ip/%s", sku)
}

// AddToCartURL returns the deep link that adds the item to the cart.
func (w *Walmart) AddToCartURL(sku string) string {
	return fmt.Sprintf("https://affil.walmart.com/cart/addToCart?items=%s", sku)
}

// ValidateSKU reports whether sku matches Walmart's numeric item id format.
func (w *Walmart) ValidateSKU(sku string) bool {
	return walmartSKURe.MatchString(sku)
}
