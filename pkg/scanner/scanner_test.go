package scanner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/config"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
)

func TestAdmitFiltersOnPriceVolumeBlacklist(t *testing.T) {
	s := New(&config.Config{Blacklist: []string{"BADCO"}})

	require.True(t, s.Admit("AAPL", decimal.NewFromInt(150), 1_000_000))
	require.False(t, s.Admit("BADCO", decimal.NewFromInt(150), 1_000_000), "blacklisted ticker must never be admitted")
	require.False(t, s.Admit("PENNY", decimal.NewFromFloat(0.50), 1_000_000), "below minPrice must be rejected")
	require.False(t, s.Admit("BRK.A", decimal.NewFromInt(600_000), 1_000_000), "above maxPrice must be rejected")
	require.False(t, s.Admit("THIN", decimal.NewFromInt(150), 1), "illiquid volume must be rejected")
}

func TestSelectBestOrdersByScoreDescending(t *testing.T) {
	scored := []ScoredSignal{
		{Signal: orders.Signal{Symbol: "LOW"}, Score: 10},
		{Signal: orders.Signal{Symbol: "HIGH"}, Score: 90},
		{Signal: orders.Signal{Symbol: "MID"}, Score: 50},
	}
	best := SelectBest(scored, 2)
	require.Len(t, best, 2)
	require.Equal(t, "HIGH", best[0].Signal.Symbol)
	require.Equal(t, "MID", best[1].Signal.Symbol)
}

func TestMarketSessionWindows(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	open := time.Date(2024, 6, 10, 10, 0, 0, 0, loc)
	require.True(t, IsMarketOpen(open, loc))
	require.False(t, IsPreMarket(open, loc))
	require.False(t, IsAfterHours(open, loc))

	pre := time.Date(2024, 6, 10, 7, 0, 0, 0, loc)
	require.True(t, IsPreMarket(pre, loc))
	require.False(t, IsMarketOpen(pre, loc))

	after := time.Date(2024, 6, 10, 17, 0, 0, 0, loc)
	require.True(t, IsAfterHours(after, loc))
	require.False(t, IsMarketOpen(after, loc))
}
