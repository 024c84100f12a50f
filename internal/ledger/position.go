package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"SignalSentinel/internal/model"
)

// Ladder configures the take-profit rungs and the stop-loss distance as fractions of entry.
type Ladder struct {
	TakeProfitPcts []float64
	StopLossPct    float64
}

// DefaultLadder is +5/10/20/50% with a 7.5% stop.
func DefaultLadder() Ladder {
	return Ladder{
		TakeProfitPcts: []float64{0.05, 0.10, 0.20, 0.50},
		StopLossPct:    0.075,
	}
}

// Validate checks the ladder is strictly increasing and the stop lies below entry.
func (l Ladder) Validate() error {
	if len(l.TakeProfitPcts) == 0 {
		return errors.New("take-profit ladder is empty")
	}
	prev := 0.0
	for i, pct := range l.TakeProfitPcts {
		if pct <= prev {
			return fmt.Errorf("take-profit %d (%v) must be positive and above the previous rung", i, pct)
		}
		prev = pct
	}
	if l.StopLossPct <= 0 || l.StopLossPct >= 1 {
		return fmt.Errorf("stop-loss pct %v must be in (0, 1)", l.StopLossPct)
	}
	return nil
}

// NewPosition builds an open position with its ladder and stop derived from entry.
// Prices are rounded to 4 decimals, or more for sub-unit prices so rungs stay distinct.
func NewPosition(instrument, timeframe string, entry float64, openedAt time.Time, ladder Ladder) (model.Position, error) {
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return model.Position{}, fmt.Errorf("invalid entry price %v", entry)
	}
	if err := ladder.Validate(); err != nil {
		return model.Position{}, err
	}

	places := pricePlaces(entry)
	e := decimal.NewFromFloat(entry)
	one := decimal.NewFromInt(1)

	tps := make([]float64, len(ladder.TakeProfitPcts))
	for i, pct := range ladder.TakeProfitPcts {
		tps[i] = e.Mul(one.Add(decimal.NewFromFloat(pct))).Round(places).InexactFloat64()
		if i > 0 && tps[i] <= tps[i-1] {
			return model.Position{}, fmt.Errorf("take-profit rungs collapse at entry %v", entry)
		}
	}
	stop := e.Mul(one.Sub(decimal.NewFromFloat(ladder.StopLossPct))).Round(places).InexactFloat64()
	if stop >= entry {
		return model.Position{}, fmt.Errorf("stop loss %v not below entry %v", stop, entry)
	}

	return model.Position{
		Instrument:     instrument,
		Timeframe:      timeframe,
		EntryPrice:     entry,
		TakeProfits:    tps,
		StopLoss:       stop,
		HitTakeProfits: []float64{},
		OpenedAt:       openedAt,
	}, nil
}

// pricePlaces keeps at least 6 significant digits for prices below 1.
func pricePlaces(price float64) int32 {
	places := int32(4)
	if price < 1 {
		if p := int32(-math.Floor(math.Log10(price))) + 5; p > places {
			places = p
		}
	}
	return places
}
