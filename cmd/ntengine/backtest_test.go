package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/orders"
)

func TestDirectionString(t *testing.T) {
	require.Equal(t, "long", directionString(orders.Long))
	require.Equal(t, "short", directionString(orders.Short))
}

func TestExitReasonString(t *testing.T) {
	require.Equal(t, "stop_loss", exitReasonString(orders.ExitStopLoss))
	require.Equal(t, "take_profit", exitReasonString(orders.ExitTakeProfit))
	require.Equal(t, "signal", exitReasonString(orders.ExitSignal))
}
