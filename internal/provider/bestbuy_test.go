package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/restockwatch/worker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBestBuyAgainst(t *testing.T, handler http.HandlerFunc) *BestBuy {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBestBuy(BestBuyOptions{
		APIKey:  "test-key",
		RPS:     1000,
		BaseURL: srv.URL,
	})
}

func TestBestBuy_CheckInventory_OnlineOnly(t *testing.T) {
	b := newBestBuyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/6523167.json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"sku": 6523167,
			"name": "PS5 Console",
			"onlineAvailability": true,
			"url": "https://www.bestbuy.com/site/ps5/6523167.p",
			"addToCartUrl": "https://api.bestbuy.com/click/-/6523167/cart",
			"image": "https://images.bestbuy.com/ps5.jpg"
		}`))
	})

	res, err := b.CheckInventory(context.Background(), "6523167", nil)

	require.NoError(t, err)
	assert.Equal(t, "PS5 Console", res.ProductName)
	assert.True(t, res.Status.Online.Available)
	assert.True(t, res.Status.Overall())
	assert.NotNil(t, res.Status.Online.LastKnownAvailable)
	assert.Empty(t, res.Status.Stores)
	assert.Equal(t, "https://www.bestbuy.com/site/ps5/6523167.p", res.ProductURL)
}

func TestBestBuy_CheckInventory_WithStores(t *testing.T) {
	b := newBestBuyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/products/6523167.json":
			w.Write([]byte(`{"sku": 6523167, "name": "PS5 Console", "onlineAvailability": false}`))
		case "/products/6523167/stores.json":
			assert.Equal(t, "100,200", r.URL.Query().Get("storeId"))
			w.Write([]byte(`{"stores": [
				{"storeId": "100", "name": "Downtown", "hasInStoreAvailability": false},
				{"storeId": "200", "name": "Uptown", "hasInStoreAvailability": true}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	res, err := b.CheckInventory(context.Background(), "6523167", []string{"100", "200"})

	require.NoError(t, err)
	assert.False(t, res.Status.Online.Available)
	require.Len(t, res.Status.Stores, 2)
	assert.Equal(t, "Uptown", res.Status.Stores[1].StoreName)
	assert.True(t, res.Status.Stores[1].Available)
	assert.True(t, res.Status.Overall(), "one store in stock flips the overall verdict")
}

func TestBestBuy_StoreLookupFailureDegradesToOnline(t *testing.T) {
	b := newBestBuyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products/6523167.json" {
			w.Write([]byte(`{"sku": 6523167, "name": "PS5 Console", "onlineAvailability": true}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	res, err := b.CheckInventory(context.Background(), "6523167", []string{"100"})

	require.NoError(t, err, "store lookup failure must not fail the whole check")
	assert.True(t, res.Status.Online.Available)
	assert.Empty(t, res.Status.Stores)
}

func TestBestBuy_NotFound(t *testing.T) {
	b := newBestBuyAgainst(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := b.CheckInventory(context.Background(), "9999999", nil)

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestBestBuy_Throttled(t *testing.T) {
	b := newBestBuyAgainst(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := b.CheckInventory(context.Background(), "6523167", nil)

	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestBestBuy_ServerError(t *testing.T) {
	b := newBestBuyAgainst(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := b.CheckInventory(context.Background(), "6523167", nil)

	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "status 500")
}

func TestBestBuy_DailyCap(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"sku": 6523167, "onlineAvailability": false}`))
	}))
	t.Cleanup(srv.Close)
	b := NewBestBuy(BestBuyOptions{APIKey: "k", RPS: 1000, DailyLimit: 2, BaseURL: srv.URL})

	_, err := b.CheckInventory(context.Background(), "6523167", nil)
	require.NoError(t, err)
	_, err = b.CheckInventory(context.Background(), "6523167", nil)
	require.NoError(t, err)

	_, err = b.CheckInventory(context.Background(), "6523167", nil)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 2, calls, "capped request never reaches the wire")
}

func TestBestBuy_FindStores(t *testing.T) {
	b := newBestBuyAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stores.json", r.URL.Path)
		assert.Equal(t, "98101", r.URL.Query().Get("postalCode"))
		w.Write([]byte(`{"stores": [
			{"storeId": "100", "name": "Downtown", "city": "Seattle", "distance": 1.2}
		]}`))
	})

	stores, err := b.FindStores(context.Background(), "98101", 5)

	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, Store{StoreID: "100", Name: "Downtown", City: "Seattle", Distance: 1.2}, stores[0])
}

func TestBestBuy_ValidateSKU(t *testing.T) {
	b := NewBestBuy(BestBuyOptions{APIKey: "k", RPS: 1})

	assert.True(t, b.ValidateSKU("6523167"))
	assert.False(t, b.ValidateSKU("123456"))
	assert.False(t, b.ValidateSKU("12345678"))
	assert.False(t, b.ValidateSKU("65231a7"))
}

func TestBestBuy_URLs(t *testing.T) {
	b := NewBestBuy(BestBuyOptions{APIKey: "k", RPS: 1})

	assert.Equal(t, "https://www.bestbuy.com/site/-/6523167.p", b.ProductURL("6523167"))
	assert.Equal(t, "https://api.bestbuy.com/click/-/6523167/cart", b.AddToCartURL("6523167"))
}
