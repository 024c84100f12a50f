package model

// EnrichedBar is a bar plus the indicator values derived from it and its predecessors.
type EnrichedBar struct {
	OHLCV

	RSI      float64
	RSIValid bool

	MACD       float64
	MACDSignal float64
	MACDCross  int // +1, 0, -1
	MACDValid  bool

	AvgVolume20    float64
	AvgVolumeValid bool
	VolumeSpike    bool
}

// EnrichedSeries holds a fetched series with per-bar indicators.
type EnrichedSeries struct {
	Instrument string
	Timeframe  string
	Bars       []EnrichedBar
}

// Latest returns the most recent bar. The series must not be empty.
func (s *EnrichedSeries) Latest() EnrichedBar {
	return s.Bars[len(s.Bars)-1]
}

// Key returns the pair key of the series.
func (s *EnrichedSeries) Key() PairKey {
	return PairKey{Instrument: s.Instrument, Timeframe: s.Timeframe}
}
