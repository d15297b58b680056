// Package store persists completed backtest/live runs: trades, equity
// curve points, and data-quality issues. Grounded on the teacher-adjacent
// eve-flipper repo's internal/db (versioned schema_version migrations
// applied in order, modernc.org/sqlite driver) generalized to run against
// either SQLite or Postgres (lib/pq) selected by the DATABASE_URL scheme,
// and scanned through jmoiron/sqlx instead of raw database/sql, matching
// the original portfolio-manager's sqlx::FromRow row model.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect distinguishes the two supported backends; money columns are
// TEXT on SQLite (no native decimal type) and NUMERIC on Postgres.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open connects using databaseURL, selecting the driver and dialect by
// scheme: "sqlite://path" or "postgres://...".
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	driver, dsn, dialect, err := parseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}
	if dialect == Postgres {
		db.SetMaxOpenConns(20)
	} else {
		db.SetMaxOpenConns(5)
	}
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

func parseURL(raw string) (driver, dsn string, dialect Dialect, err error) {
	switch {
	case strings.HasPrefix(raw, "sqlite://"):
		return "sqlite", strings.TrimPrefix(raw, "sqlite://"), SQLite, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return "postgres", raw, Postgres, nil
	default:
		return "", "", 0, fmt.Errorf("unrecognized DATABASE_URL scheme in %q (want sqlite:// or postgres://)", raw)
	}
}

func (s *Store) Close() error { return s.db.Close() }

// moneyColumn returns the column type used for decimal-valued fields,
// carried as TEXT (exact string round-trip) on SQLite and NUMERIC on
// Postgres.
func (s *Store) moneyColumn() string {
	if s.dialect == Postgres {
		return "NUMERIC"
	}
	return "TEXT"
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	_ = s.db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	// First run: schema_version itself doesn't exist yet, so the SELECT
	// above errors and version stays its zero value — that's fine, v1
	// below creates the table before anything else needs it.

	money := s.moneyColumn()
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == Postgres {
		pk = "SERIAL PRIMARY KEY"
	}

	if version < 1 {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS backtest_runs (
				id %s,
				run_id TEXT NOT NULL,
				started_at TIMESTAMP NOT NULL,
				symbols TEXT NOT NULL,
				initial_capital %s NOT NULL,
				final_equity %s NOT NULL
			)`, pk, money, money),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS trades (
				id %s,
				run_id TEXT NOT NULL,
				symbol TEXT NOT NULL,
				direction TEXT NOT NULL,
				entry_date TIMESTAMP NOT NULL,
				exit_date TIMESTAMP NOT NULL,
				entry_price %s NOT NULL,
				exit_price %s NOT NULL,
				shares %s NOT NULL,
				gross_pnl %s NOT NULL,
				commission %s NOT NULL,
				net_pnl %s NOT NULL,
				return_pct DOUBLE PRECISION NOT NULL,
				exit_reason TEXT NOT NULL
			)`, pk, money, money, money, money, money, money),
			`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS equity_points (
				id %s,
				run_id TEXT NOT NULL,
				date TIMESTAMP NOT NULL,
				equity %s NOT NULL
			)`, pk, money),
			`CREATE INDEX IF NOT EXISTS idx_equity_run ON equity_points(run_id)`,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS data_quality_issues (
				id %s,
				run_id TEXT NOT NULL,
				symbol TEXT NOT NULL,
				date TIMESTAMP NOT NULL,
				kind TEXT NOT NULL,
				detail TEXT NOT NULL
			)`, pk),
			`INSERT INTO schema_version (version) VALUES (1)`,
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration v1: %w", err)
			}
		}
	}
	return nil
}

// RunRecord is the header row for one persisted backtest.
type RunRecord struct {
	RunID          string    `db:"run_id"`
	StartedAt      time.Time `db:"started_at"`
	Symbols        string    `db:"symbols"`
	InitialCapital string    `db:"initial_capital"`
	FinalEquity    string    `db:"final_equity"`
}

// TradeRecord mirrors backtest.Trade, decimals carried as strings.
type TradeRecord struct {
	RunID      string    `db:"run_id"`
	Symbol     string    `db:"symbol"`
	Direction  string    `db:"direction"`
	EntryDate  time.Time `db:"entry_date"`
	ExitDate   time.Time `db:"exit_date"`
	EntryPrice string    `db:"entry_price"`
	ExitPrice  string    `db:"exit_price"`
	Shares     string    `db:"shares"`
	GrossPnL   string    `db:"gross_pnl"`
	Commission string    `db:"commission"`
	NetPnL     string    `db:"net_pnl"`
	ReturnPct  float64   `db:"return_pct"`
	ExitReason string    `db:"exit_reason"`
}

// SaveRun persists a run header, its trades, equity curve, and
// data-quality issues inside a single transaction.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, trades []TradeRecord, equity []EquityPointRecord, issues []DataQualityIssueRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO backtest_runs (run_id, started_at, symbols, initial_capital, final_equity)
		 VALUES (:run_id, :started_at, :symbols, :initial_capital, :final_equity)`, run); err != nil {
		return fmt.Errorf("inserting run header: %w", err)
	}

	for _, t := range trades {
		if _, err := tx.NamedExecContext(ctx, insertTradeSQL, t); err != nil {
			return fmt.Errorf("inserting trade: %w", err)
		}
	}
	for _, e := range equity {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO equity_points (run_id, date, equity) VALUES (:run_id, :date, :equity)`, e); err != nil {
			return fmt.Errorf("inserting equity point: %w", err)
		}
	}
	for _, iss := range issues {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO data_quality_issues (run_id, symbol, date, kind, detail) VALUES (:run_id, :symbol, :date, :kind, :detail)`, iss); err != nil {
			return fmt.Errorf("inserting data quality issue: %w", err)
		}
	}
	return tx.Commit()
}

const insertTradeSQL = `INSERT INTO trades
	(run_id, symbol, direction, entry_date, exit_date, entry_price, exit_price, shares, gross_pnl, commission, net_pnl, return_pct, exit_reason)
	VALUES
	(:run_id, :symbol, :direction, :entry_date, :exit_date, :entry_price, :exit_price, :shares, :gross_pnl, :commission, :net_pnl, :return_pct, :exit_reason)`

// EquityPointRecord mirrors backtest.EquityPoint.
type EquityPointRecord struct {
	RunID  string    `db:"run_id"`
	Date   time.Time `db:"date"`
	Equity string    `db:"equity"`
}

// DataQualityIssueRecord mirrors backtest.DataQualityIssue.
type DataQualityIssueRecord struct {
	RunID  string    `db:"run_id"`
	Symbol string    `db:"symbol"`
	Date   time.Time `db:"date"`
	Kind   string    `db:"kind"`
	Detail string    `db:"detail"`
}

// TradesForRun returns every trade recorded under runID, oldest first.
func (s *Store) TradesForRun(ctx context.Context, runID string) ([]TradeRecord, error) {
	query := s.db.Rebind(
		`SELECT run_id, symbol, direction, entry_date, exit_date, entry_price, exit_price, shares, gross_pnl, commission, net_pnl, return_pct, exit_reason
		 FROM trades WHERE run_id = ? ORDER BY exit_date ASC`)
	var out []TradeRecord
	err := s.db.SelectContext(ctx, &out, query, runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return out, err
}
