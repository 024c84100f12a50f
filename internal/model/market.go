package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PairKey identifies one polled (instrument, timeframe) series.
type PairKey struct {
	Instrument string
	Timeframe  string
}

// String returns the "instrument_timeframe" form used in the alerts snapshot.
func (k PairKey) String() string {
	return k.Instrument + "_" + k.Timeframe
}
