package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/db")
	require.Error(t, err)
}

func TestSaveAndFetchRunRoundTrips(t *testing.T) {
	s, err := Open(context.Background(), "sqlite://:memory:")
	require.NoError(t, err)
	defer s.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := RunRecord{
		RunID: "run-1", StartedAt: now, Symbols: "AAPL,MSFT",
		InitialCapital: "100000", FinalEquity: "105000",
	}
	trades := []TradeRecord{{
		RunID: "run-1", Symbol: "AAPL", Direction: "long",
		EntryDate: now, ExitDate: now.AddDate(0, 0, 1),
		EntryPrice: "150.00", ExitPrice: "155.00", Shares: "10",
		GrossPnL: "50.00", Commission: "1.00", NetPnL: "49.00",
		ReturnPct: 3.33, ExitReason: "signal",
	}}

	require.NoError(t, s.SaveRun(context.Background(), run, trades, nil, nil))

	got, err := s.TradesForRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "AAPL", got[0].Symbol)
	require.Equal(t, "49.00", got[0].NetPnL)
}
