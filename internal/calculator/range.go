package calculator

import (
	"errors"
	"math"

	"SignalSentinel/internal/model"
)

// CalculateRange scans the most recent lastN bars and returns the highest high and lowest low.
func CalculateRange(bars []model.OHLCV, lastN int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	n := len(bars)
	start := n - lastN
	if start < 0 || lastN <= 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// CalculateMaxVolume returns the largest volume among the most recent lastN bars.
func CalculateMaxVolume(bars []model.OHLCV, lastN int) float64 {
	start := len(bars) - lastN
	if start < 0 || lastN <= 0 {
		start = 0
	}
	max := 0.0
	for i := start; i < len(bars); i++ {
		if bars[i].Volume > max {
			max = bars[i].Volume
		}
	}
	return max
}
