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

const bestBuyBaseURL = "https://api.bestbuy.com/v1"

// Best Buy SKUs are exactly seven digits.
var bestBuySKURe = regexp.MustCompile(`^\d{7}$`)

// BestBuy is the Best Buy products API adapter. It supports both online and
// per-store availability lookups.
type BestBuy struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	throttle *throttle
}

// BestBuyOptions configures a BestBuy adapter.
type BestBuyOptions struct {
	APIKey     string
	RPS        float64
	DailyLimit int
	BaseURL    string        // override for tests; defaults to the public API
	Timeout    time.Duration // per-request timeout; defaults to 8s
}

// NewBestBuy creates a Best Buy adapter with its own rate budget.
func NewBestBuy(opts BestBuyOptions) *BestBuy {
	if opts.BaseURL == "" {
		opts.BaseURL = bestBuyBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	burst := int(opts.RPS)
	if burst < 1 {
		burst = 1
	}
	return &BestBuy{
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		client:   &http.Client{Timeout: opts.Timeout},
		throttle: newThrottle(opts.RPS, burst, opts.DailyLimit),
	}
}

type bestBuyProduct struct {
	SKU                int    `json:"sku"`
	Name               string `json:"name"`
	OnlineAvailability bool   `json:"onlineAvailability"`
	URL                string `json:"url"`
	AddToCartURL       string `json:"addToCartUrl"`
	Image              string `json:"image"`
}

type bestBuyStoreAvailability struct {
	Stores []struct {
		StoreID      string `json:"storeId"`
		Name         string `json:"name"`
		HasInventory bool   `json:"hasInStoreAvailability"`
	} `json:"stores"`
}

type bestBuyStoreSearch struct {
	Stores []struct {
		StoreID  string  `json:"storeId"`
		Name     string  `json:"name"`
		City     string  `json:"city"`
		Distance float64 `json:"distance"`
	} `json:"stores"`
}

// CheckInventory looks up the online availability of a SKU and, when store
// locations are configured, the per-store availability at each of them.
func (b *BestBuy) CheckInventory(ctx context.Context, sku string, storeLocations []string) (*CheckResult, error) {
	if err := b.throttle.admit(ctx); err != nil {
		return nil, err
	}

	var p bestBuyProduct
	u := fmt.Sprintf("%s/products/%s.json?apiKey=%s&show=sku,name,onlineAvailability,url,addToCartUrl,image",
		b.baseURL, url.PathEscape(sku), url.QueryEscape(b.apiKey))
	if err := getJSON(ctx, b.client, u, &p); err != nil {
		return nil, err
	}

	res := &CheckResult{
		ProductName:  p.Name,
		ProductURL:   p.URL,
		AddToCartURL: p.AddToCartURL,
		ImageURL:     p.Image,
	}
	if res.ProductURL == "" {
		res.ProductURL = b.ProductURL(sku)
	}
	if res.AddToCartURL == "" {
		res.AddToCartURL = b.AddToCartURL(sku)
	}
	res.Status.Online.Available = p.OnlineAvailability
	if p.OnlineAvailability {
		now := time.Now().UTC()
		res.Status.Online.LastKnownAvailable = &now
	}

	if len(storeLocations) > 0 {
		stores, err := b.checkStores(ctx, sku, storeLocations)
		if err != nil {
			// Store lookup failure degrades to an online-only verdict rather
			// than failing the whole check.
			return res, nil
		}
		res.Status.Stores = stores
	}
	return res, nil
}

func (b *BestBuy) checkStores(ctx context.Context, sku string, storeIDs []string) ([]domain.StoreAvailability, error) {
	if err := b.throttle.admit(ctx); err != nil {
		return nil, err
	}
	var out bestBuyStoreAvailability
	u := fmt.Sprintf("%s/products/%s/stores.json?apiKey=%s&storeId=%s",
		b.baseURL, url.PathEscape(sku), url.QueryEscape(b.apiKey), url.QueryEscape(strings.Join(storeIDs, ",")))
	if err := getJSON(ctx, b.client, u, &out); err != nil {
		return nil, err
	}
	stores := make([]domain.StoreAvailability, 0, len(out.Stores))
	for _, s := range out.Stores {
		stores = append(stores, domain.StoreAvailability{
			StoreID:   s.StoreID,
			StoreName: s.Name,
			Available: s.HasInventory,
		})
	}
	return stores, nil
}

// FindStores searches for Best Buy stores near a zip code.
func (b *BestBuy) FindStores(ctx context.Context, zip string, maxResults int) ([]Store, error) {
	if err := b.throttle.admit(ctx); err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	var out bestBuyStoreSearch
	u := fmt.Sprintf("%s/stores.json?apiKey=%s&postalCode=%s&pageSize=%d",
		b.baseURL, url.QueryEscape(b.apiKey), url.QueryEscape(zip), maxResults)
	if err := getJSON(ctx, b.client, u, &out); err != nil {
		return nil, err
	}
	stores := make([]Store, 0, len(out.Stores))
	for _, s := range out.Stores {
		stores = append(stores, Store{StoreID: s.StoreID, Name: s.Name, City: s.City, Distance: s.Distance})
	}
	return stores, nil
}

// ProductURL returns the customer-facing product page for a SKU.
func (b *BestBuy) ProductURL(sku string) string {
	return fmt.Sprintf("https://www.bestbuy.com/site/-/%s.p", sku)
}

// AddToCartURL returns the deep link that drops the SKU into the cart.
func (b *BestBuy) AddToCartURL(sku string) string {
	return fmt.Sprintf("https://api.bestbuy.com/click/-/%s/cart", sku)
}

// ValidateSKU reports whether sku matches Best Buy's seven-digit format.
func (b *BestBuy) ValidateSKU(sku string) bool {
	return bestBuySKURe.MatchString(sku)
}
