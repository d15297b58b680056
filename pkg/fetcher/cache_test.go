package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
)

func TestDiskCacheStoreAndLoadRoundTrips(t *testing.T) {
	c := NewDiskCache(t.TempDir())
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	bars := marketdata.Series{{Symbol: "AAPL", Date: from, Open: decimal.NewFromInt(100), High: decimal.NewFromInt(101), Low: decimal.NewFromInt(99), Close: decimal.NewFromInt(100), Volume: 1000}}

	require.NoError(t, c.Store("AAPL", from, to, bars))

	got, ok := c.Load("AAPL", from, to)
	require.True(t, ok)
	require.Len(t, got, 1)
	require.True(t, got[0].Close.Equal(decimal.NewFromInt(100)))
}

func TestDiskCacheMissReturnsFalse(t *testing.T) {
	c := NewDiskCache(t.TempDir())
	_, ok := c.Load("MSFT", time.Now(), time.Now())
	require.False(t, ok)
}

func TestFetchDailyBarsServesFromCacheWithoutNetwork(t *testing.T) {
	cache := NewDiskCache(t.TempDir())
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	seeded := marketdata.Series{{Symbol: "AAPL", Date: from, Open: decimal.NewFromInt(1), High: decimal.NewFromInt(1), Low: decimal.NewFromInt(1), Close: decimal.NewFromInt(1), Volume: 1}}
	require.NoError(t, cache.Store("AAPL", from, to, seeded))

	f := New("unused-key", 1, 60).WithCache(cache)
	got, err := f.FetchDailyBars(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
