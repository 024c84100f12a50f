package calculator

import (
	talib "github.com/markcheno/go-talib"
)

// VolumeWindow is the rolling window of the volume average.
const VolumeWindow = 20

// CalculateVolumeAverage returns the simple rolling mean of the last `window`
// volumes per bar and whether it is defined (index >= window-1).
func CalculateVolumeAverage(volumes []float64, window int) (avg []float64, valid []bool) {
	avg = make([]float64, len(volumes))
	valid = make([]bool, len(volumes))
	if window <= 0 || len(volumes) < window {
		return avg, valid
	}
	sma := talib.Sma(volumes, window)
	for i := window - 1; i < len(volumes) && i < len(sma); i++ {
		avg[i] = sma[i]
		valid[i] = true
	}
	return avg, valid
}

// IsVolumeSpike reports whether volume exceeds multiplier times the average.
func IsVolumeSpike(volume, avg float64, valid bool, multiplier float64) bool {
	return valid && avg > 0 && volume > multiplier*avg
}
