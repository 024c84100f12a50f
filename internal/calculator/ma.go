package calculator

import (
	"errors"
	"math"

	"SignalSentinel/internal/model"
)

// CalculateEMASeries computes an exponential moving average with smoothing
// factor 2/(period+1). Values before start are ignored; the average is seeded
// with the simple mean of values[start:start+period]. Entries that have no
// defined value are NaN.
func CalculateEMASeries(values []float64, start, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if start < 0 {
		return nil, errors.New("start must not be negative")
	}
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	seedEnd := start + period - 1
	if seedEnd >= len(values) {
		return out, nil
	}

	sum := 0.0
	for i := start; i <= seedEnd; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[seedEnd] = ema

	alpha := 2.0 / float64(period+1)
	for i := seedEnd + 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = ema
	}
	return out, nil
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func extractVolumes(bars []model.OHLCV) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	return vols
}
