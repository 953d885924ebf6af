package provider

import (
	"testing"

	"github.com/restockwatch/worker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_For(t *testing.T) {
	bb := NewBestBuy(BestBuyOptions{APIKey: "k", RPS: 1})
	r := NewRegistry(map[string]Provider{RetailerBestBuy: bb})

	p, err := r.For(RetailerBestBuy)
	require.NoError(t, err)
	assert.Same(t, bb, p)

	_, err = r.For("target")
	assert.ErrorIs(t, err, domain.ErrUnsupportedRetailer)
}

func TestRegistry_RetailersSorted(t *testing.T) {
	r := NewRegistry(map[string]Provider{
		RetailerWalmart: NewWalmart(WalmartOptions{APIKey: "k", RPS: 1}),
		RetailerBestBuy: NewBestBuy(BestBuyOptions{APIKey: "k", RPS: 1}),
	})

	assert.Equal(t, []string{"bestbuy", "walmart"}, r.Retailers())
}
