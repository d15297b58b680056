package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/errs"
	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
)

// FetchDailyBars pulls daily aggregate bars for symbol between from/to
// (inclusive), following vendor pagination until next_url is absent.
func (f *Fetcher) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) (marketdata.Series, error) {
	if f.cache != nil {
		if bars, ok := f.cache.Load(symbol, from, to); ok {
			return bars, nil
		}
	}

	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s", symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	reqURL := PolygonURL(path)

	var out marketdata.Series
	for reqURL != "" {
		body, err := f.Get(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		bars, err := parseAggs(symbol, body)
		if err != nil {
			return nil, err
		}
		out = append(out, bars...)

		next, ok := NextURL(body)
		if !ok || next == "" {
			break
		}
		reqURL = withAPIKey(next, f.apiKey)
	}

	if f.cache != nil {
		if err := f.cache.Store(symbol, from, to, out); err != nil {
			f.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to persist bar cache entry")
		}
	}
	return out, nil
}

func parseAggs(symbol string, body map[string]any) (marketdata.Series, error) {
	raw, ok := body["results"].([]any)
	if !ok {
		return nil, nil
	}
	out := make(marketdata.Series, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		bar, err := barFromAgg(symbol, m)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, err)
		}
		out = append(out, bar)
	}
	return out, nil
}

func barFromAgg(symbol string, m map[string]any) (marketdata.Bar, error) {
	ts, _ := m["t"].(float64)
	return marketdata.Bar{
		Symbol: symbol,
		Date:   time.UnixMilli(int64(ts)).UTC(),
		Open:   decFromAny(m["o"]),
		High:   decFromAny(m["h"]),
		Low:    decFromAny(m["l"]),
		Close:  decFromAny(m["c"]),
		Volume: numFromAny(m["v"]),
	}, nil
}

func decFromAny(v any) decimal.Decimal {
	f, _ := v.(float64)
	return decimal.NewFromFloat(f)
}

func numFromAny(v any) float64 {
	f, _ := v.(float64)
	return f
}
