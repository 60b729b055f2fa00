// Package storage persists evaluated signals and trade outcomes to
// PostgreSQL. The pipeline works without it; persistence is optional.
package storage

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/quantflow/fxengine/models"
)

// DB wraps the PostgreSQL connection for the trade journal.
type DB struct {
	*sql.DB
}

// TradeRecord is one persisted evaluation outcome.
type TradeRecord struct {
	ID             string
	Pair           string
	Direction      models.Direction
	State          string
	Score          float64
	WinProbability float64
	Entry          float64
	StopLoss       float64
	TakeProfit     float64
	PositionSize   float64
	RiskFraction   float64
	CreatedAt      time.Time
	ClosedAt       sql.NullTime
	Outcome        sql.NullString // win, loss, scratch
}

// New opens the connection and ensures the schema exists.
func New(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trade_journal (
			id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			direction TEXT NOT NULL,
			state TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			win_probability DOUBLE PRECISION NOT NULL,
			entry DOUBLE PRECISION,
			stop_loss DOUBLE PRECISION,
			take_profit DOUBLE PRECISION,
			position_size DOUBLE PRECISION,
			risk_fraction DOUBLE PRECISION,
			created_at TIMESTAMP NOT NULL,
			closed_at TIMESTAMP,
			outcome TEXT
		)
	`)
	return err
}

// SaveTrade inserts or refreshes a journal entry.
func (db *DB) SaveTrade(rec TradeRecord) error {
	_, err := db.Exec(`
		INSERT INTO trade_journal (
			id, pair, direction, state, score, win_probability,
			entry, stop_loss, take_profit, position_size, risk_fraction, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id)
		DO UPDATE SET
			state = EXCLUDED.state,
			score = EXCLUDED.score,
			win_probability = EXCLUDED.win_probability
	`,
		rec.ID, rec.Pair, rec.Direction, rec.State, rec.Score, rec.WinProbability,
		rec.Entry, rec.StopLoss, rec.TakeProfit, rec.PositionSize, rec.RiskFraction, rec.CreatedAt)

	return err
}

// CloseTrade records the outcome of a finished trade.
func (db *DB) CloseTrade(id, outcome string) error {
	_, err := db.Exec(`
		UPDATE trade_journal
		SET closed_at = NOW(), outcome = $1
		WHERE id = $2
	`, outcome, id)

	return err
}

// GetTrade fetches one journal entry; nil when absent.
func (db *DB) GetTrade(id string) (*TradeRecord, error) {
	var rec TradeRecord

	err := db.QueryRow(`
		SELECT
			id, pair, direction, state, score, win_probability,
			entry, stop_loss, take_profit, position_size, risk_fraction,
			created_at, closed_at, outcome
		FROM trade_journal
		WHERE id = $1
	`, id).Scan(
		&rec.ID, &rec.Pair, &rec.Direction, &rec.State, &rec.Score, &rec.WinProbability,
		&rec.Entry, &rec.StopLoss, &rec.TakeProfit, &rec.PositionSize, &rec.RiskFraction,
		&rec.CreatedAt, &rec.ClosedAt, &rec.Outcome,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &rec, nil
}

// PairStats aggregates historical outcomes for one pair and direction over
// the trailing window. The ultra filter uses it to validate new signals
// against realized performance.
func (db *DB) PairStats(pair string, direction models.Direction, since time.Time) (wins, total int, err error) {
	err = db.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE outcome = 'win'),
			COUNT(*) FILTER (WHERE outcome IS NOT NULL)
		FROM trade_journal
		WHERE pair = $1 AND direction = $2 AND created_at >= $3
	`, pair, direction, since).Scan(&wins, &total)

	return wins, total, err
}
