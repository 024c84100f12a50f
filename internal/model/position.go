package model

import "time"

// Position tracks the hypothetical take-profit ladder and stop-loss of one instrument.
type Position struct {
	Instrument     string
	Timeframe      string
	SignalID       string
	EntryPrice     float64
	TakeProfits    []float64 // strictly increasing
	StopLoss       float64
	HitTakeProfits []float64 // subset of TakeProfits, ladder order
	OpenedAt       time.Time
	AlertReference string
}

// IsHit reports whether the ladder rung tp has already triggered.
func (p *Position) IsHit(tp float64) bool {
	for _, h := range p.HitTakeProfits {
		if h == tp {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of the ledger.
func (p *Position) Clone() Position {
	c := *p
	c.TakeProfits = append([]float64(nil), p.TakeProfits...)
	c.HitTakeProfits = append([]float64(nil), p.HitTakeProfits...)
	return c
}
