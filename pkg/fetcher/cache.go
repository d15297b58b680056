package fetcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
)

// DiskCache is a JSON file cache of bar series keyed by symbol and date
// range, adapted from the teacher's pkg/feed/cache.go so repeated backtest
// runs over the same window don't re-hit the rate limiter.
type DiskCache struct {
	dir string
}

func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{dir: dir}
}

type cacheEntry struct {
	Symbol    string            `json:"symbol"`
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	FetchedAt time.Time         `json:"fetched_at"`
	Bars      marketdata.Series `json:"bars"`
}

func (c *DiskCache) key(symbol string, from, to time.Time) string {
	return fmt.Sprintf("%s_%s_%s.json", symbol, from.Format("20060102"), to.Format("20060102"))
}

// Load returns cached bars for the exact symbol/range, or ok=false on miss.
func (c *DiskCache) Load(symbol string, from, to time.Time) (marketdata.Series, bool) {
	path := filepath.Join(c.dir, c.key(symbol, from, to))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return entry.Bars, true
}

// Store persists bars for the given symbol/range.
func (c *DiskCache) Store(symbol string, from, to time.Time, bars marketdata.Series) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	entry := cacheEntry{Symbol: symbol, From: from, To: to, FetchedAt: time.Now(), Bars: bars}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, c.key(symbol, from, to)), data, 0o644)
}
