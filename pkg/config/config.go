// Package config loads process configuration from environment variables
// (optionally seeded from a local .env file), generalizing the teacher's
// getEnv/parseCommaList pattern onto viper so every recognized option has a
// documented default and type.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full set of environment-driven options this platform
// recognizes, spanning trading risk defaults, the admin HTTP surface, and
// the market-data fetcher.
type Config struct {
	// Risk defaults (RiskParameters seed values; see pkg/risk).
	MaxRiskPerTradePct    decimal.Decimal
	MaxPortfolioRiskPct   decimal.Decimal
	MaxPositionSizePct    decimal.Decimal
	DefaultStopLossPct    decimal.Decimal
	DefaultTakeProfitPct  decimal.Decimal
	TrailingStopEnabled   bool
	TrailingStopPct       decimal.Decimal
	MinConfidence         float64
	DailyLossLimitPct     decimal.Decimal
	MaxConsecutiveLosses  int
	DrawdownLimitPct      decimal.Decimal

	Blacklist       []string
	BacktestTickers []string

	// Admin HTTP surface (pkg/security).
	AuthMaxFailures      int
	AuthFailureWindow    time.Duration
	AuthLockout          time.Duration
	AdminIPAllowlist     []*net.IPNet
	EnableHSTS           bool

	// Market-data fetcher (pkg/fetcher).
	PolygonAPIKey         string
	PolygonMaxConcurrent  int
	PolygonRatePerMinute  int

	// Persistence (pkg/store).
	DatabaseURL string

	LogLevel string
}

// Load reads configuration from the environment, optionally seeded by a
// ".env" file in the working directory (ignored if absent, matching the
// teacher's main.go behavior).
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("max_risk_per_trade_pct", "1.0")
	v.SetDefault("max_portfolio_risk_pct", "6.0")
	v.SetDefault("max_position_size_pct", "20.0")
	v.SetDefault("default_stop_loss_pct", "5.0")
	v.SetDefault("default_take_profit_pct", "10.0")
	v.SetDefault("trailing_stop_enabled", true)
	v.SetDefault("trailing_stop_pct", "5.0")
	v.SetDefault("min_confidence", 0.5)
	v.SetDefault("daily_loss_limit_pct", "5.0")
	v.SetDefault("max_consecutive_losses", 3)
	v.SetDefault("drawdown_limit_pct", "15.0")
	v.SetDefault("blacklist", "")
	v.SetDefault("backtest_tickers", "")

	v.SetDefault("auth_max_failures", 5)
	v.SetDefault("auth_failure_window_secs", 300)
	v.SetDefault("auth_lockout_secs", 900)
	v.SetDefault("admin_ip_allowlist", "")
	v.SetDefault("enable_hsts", false)

	v.SetDefault("polygon_api_key", "")
	v.SetDefault("polygon_max_concurrent", 5)
	v.SetDefault("polygon_rate_per_minute", 60)

	v.SetDefault("database_url", "sqlite://ntengine.db")
	v.SetDefault("log_level", "info")

	cfg := &Config{
		MaxRiskPerTradePct:   mustDecimal(v.GetString("max_risk_per_trade_pct")),
		MaxPortfolioRiskPct:  mustDecimal(v.GetString("max_portfolio_risk_pct")),
		MaxPositionSizePct:   mustDecimal(v.GetString("max_position_size_pct")),
		DefaultStopLossPct:   mustDecimal(v.GetString("default_stop_loss_pct")),
		DefaultTakeProfitPct: mustDecimal(v.GetString("default_take_profit_pct")),
		TrailingStopEnabled:  v.GetBool("trailing_stop_enabled"),
		TrailingStopPct:      mustDecimal(v.GetString("trailing_stop_pct")),
		MinConfidence:        v.GetFloat64("min_confidence"),
		DailyLossLimitPct:    mustDecimal(v.GetString("daily_loss_limit_pct")),
		MaxConsecutiveLosses: v.GetInt("max_consecutive_losses"),
		DrawdownLimitPct:     mustDecimal(v.GetString("drawdown_limit_pct")),
		Blacklist:            parseCommaList(v.GetString("blacklist")),
		BacktestTickers:      parseCommaList(v.GetString("backtest_tickers")),

		AuthMaxFailures:   v.GetInt("auth_max_failures"),
		AuthFailureWindow: time.Duration(v.GetInt("auth_failure_window_secs")) * time.Second,
		AuthLockout:       time.Duration(v.GetInt("auth_lockout_secs")) * time.Second,
		EnableHSTS:        v.GetBool("enable_hsts"),

		PolygonAPIKey:        v.GetString("polygon_api_key"),
		PolygonMaxConcurrent: v.GetInt("polygon_max_concurrent"),
		PolygonRatePerMinute: v.GetInt("polygon_rate_per_minute"),

		DatabaseURL: v.GetString("database_url"),
		LogLevel:    v.GetString("log_level"),
	}

	allowlist, err := parseAllowlist(v.GetString("admin_ip_allowlist"))
	if err != nil {
		return nil, fmt.Errorf("parsing ADMIN_IP_ALLOWLIST: %w", err)
	}
	cfg.AdminIPAllowlist = allowlist

	// Percentage caps mirror the teacher's safety clamp on risk knobs: a
	// misconfigured env var cannot push the daily loss limit past 10%; the
	// other percentage knobs are not clamped.
	if cfg.DailyLossLimitPct.GreaterThan(decimal.NewFromInt(10)) {
		cfg.DailyLossLimitPct = decimal.NewFromInt(10)
	}

	return cfg, nil
}

// Validate checks preconditions that only matter once trading (as opposed
// to, say, scanning) is about to start.
func (c *Config) Validate(liveTrading bool) error {
	if liveTrading && c.PolygonAPIKey == "" {
		return fmt.Errorf("POLYGON_API_KEY is required for live trading")
	}
	return nil
}

func (c *Config) IsInBlacklist(ticker string) bool {
	for _, b := range c.Blacklist {
		if strings.EqualFold(b, ticker) {
			return true
		}
	}
	return false
}

func parseCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowlist(s string) ([]*net.IPNet, error) {
	cidrs := parseCommaList(s)
	if len(cidrs) == 0 {
		return nil, nil
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			// bare IP, not a CIDR block
			if ip := net.ParseIP(c); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				_, ipnet, _ = net.ParseCIDR(fmt.Sprintf("%s/%d", c, bits))
				nets = append(nets, ipnet)
				continue
			}
			return nil, fmt.Errorf("invalid CIDR %q: %w", c, err)
		}
		nets = append(nets, ipnet)
	}
	return nets, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
