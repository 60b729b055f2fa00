package models

import (
	"fmt"
	"time"
)

// Timeframe identifies a candle aggregation period.
type Timeframe string

const (
	TimeframeM15 Timeframe = "M15"
	TimeframeH1  Timeframe = "H1"
	TimeframeH4  Timeframe = "H4"
	TimeframeD1  Timeframe = "D1"
)

// ParseTimeframe validates a timeframe name on ingest. An unsupported name is
// malformed caller input and fails loudly.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeM15, TimeframeH1, TimeframeH4, TimeframeD1:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

// Duration returns the bar period.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TimeframeM15:
		return 15 * time.Minute
	case TimeframeH1:
		return time.Hour
	case TimeframeH4:
		return 4 * time.Hour
	case TimeframeD1:
		return 24 * time.Hour
	}
	return 0
}

// FusionWeight returns the weight of this timeframe in the multi-timeframe
// fusion. Weights sum to 1 across the four supported timeframes.
func (tf Timeframe) FusionWeight() float64 {
	switch tf {
	case TimeframeM15:
		return 0.20
	case TimeframeH1:
		return 0.25
	case TimeframeH4:
		return 0.25
	case TimeframeD1:
		return 0.30
	}
	return 0
}
