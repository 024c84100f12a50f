package gate

import "SignalSentinel/internal/model"

// DefaultRSIMax is the overbought ceiling for a bullish candidate.
const DefaultRSIMax = 70.0

// Qualifies reports whether the latest bar is a bullish candidate: at least one
// pattern, an upward MACD cross, RSI below rsiMax and a volume spike.
func Qualifies(latest model.EnrichedBar, patterns []string, rsiMax float64) bool {
	if len(patterns) == 0 {
		return false
	}
	if !latest.RSIValid || !latest.MACDValid {
		return false
	}
	return latest.MACDCross == 1 && latest.RSI < rsiMax && latest.VolumeSpike
}
