package model

import "time"

// SignalType labels a row in the audit log.
type SignalType string

const (
	SignalBuy        SignalType = "BUY"
	SignalTakeProfit SignalType = "TP"
	SignalStopLoss   SignalType = "SL"
)

// Signal is a qualifying condition that passed the gate.
type Signal struct {
	ID          string
	Instrument  string
	Timeframe   string
	Price       float64
	RSI         float64
	MACD        float64
	MACDSignal  float64
	Volume      float64
	VolumeSpike bool
	Patterns    []string
	BarTime     time.Time
	EmittedAt   time.Time
	TakeProfits []float64
	StopLoss    float64
}
