package risk

import (
	"sync"
	"time"

	"github.com/quantflow/fxengine/models"
)

// Ledger tracks open trades and the risk spent today. Safe for concurrent
// use; the daily budget rolls over at UTC midnight.
type Ledger struct {
	mu         sync.RWMutex
	trades     map[string]models.ActiveTrade
	riskSpent  float64
	budgetDate string // YYYY-MM-DD in UTC
}

// NewLedger creates an empty in-memory trade ledger.
func NewLedger() *Ledger {
	return &Ledger{trades: make(map[string]models.ActiveTrade)}
}

// Open registers a trade and charges its risk fraction to today's budget.
func (l *Ledger) Open(trade models.ActiveTrade, riskFraction float64, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(now)
	l.trades[trade.ID] = trade
	l.riskSpent += riskFraction
}

// Close removes a trade. Spent budget is not refunded; the daily budget
// accounts for risk taken, not risk still open.
func (l *Ledger) Close(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.trades, id)
}

// Active returns a snapshot of the open trades.
func (l *Ledger) Active() []models.ActiveTrade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.ActiveTrade, 0, len(l.trades))
	for _, t := range l.trades {
		out = append(out, t)
	}
	return out
}

// RiskSpent returns today's spent risk fraction, rolling the budget first.
func (l *Ledger) RiskSpent(now time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(now)
	return l.riskSpent
}

func (l *Ledger) rollover(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day != l.budgetDate {
		l.budgetDate = day
		l.riskSpent = 0
	}
}
