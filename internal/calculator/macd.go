package calculator

import (
	"errors"
	"math"
)

// MACD periods used by the signal pipeline.
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MACDSeries holds the trend line, its signal line and the per-bar cross sign.
type MACDSeries struct {
	Line   []float64
	Signal []float64
	Cross  []int
}

// CalculateMACDSeries computes EMA(fast) - EMA(slow) and its EMA(signal).
// The signal EMA is seeded on the first `signal` defined trend-line values,
// so Signal[i] is defined from index slow+signal-2 onward.
func CalculateMACDSeries(closes []float64, fast, slow, signal int) (*MACDSeries, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, errors.New("periods must be positive")
	}
	if fast >= slow {
		return nil, errors.New("fast period must be shorter than slow period")
	}

	fastEMA, err := CalculateEMASeries(closes, 0, fast)
	if err != nil {
		return nil, err
	}
	slowEMA, err := CalculateEMASeries(closes, 0, slow)
	if err != nil {
		return nil, err
	}

	n := len(closes)
	line := make([]float64, n)
	for i := range line {
		line[i] = fastEMA[i] - slowEMA[i] // NaN propagates until slow is seeded
	}

	sig, err := CalculateEMASeries(line, slow-1, signal)
	if err != nil {
		return nil, err
	}

	cross := make([]int, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(line[i]) || math.IsNaN(sig[i]) {
			continue
		}
		switch {
		case line[i] > sig[i]:
			cross[i] = 1
		case line[i] < sig[i]:
			cross[i] = -1
		}
	}
	return &MACDSeries{Line: line, Signal: sig, Cross: cross}, nil
}
