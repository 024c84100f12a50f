package calculator

import (
	"fmt"
	"math"

	"SignalSentinel/internal/fault"
	"SignalSentinel/internal/model"
)

const (
	// RSIPeriod is the Wilder lookback.
	RSIPeriod = 14
	// MinBars is the shortest series that seeds the slow EMA and the signal EMA.
	MinBars = MACDSlow + MACDSignal
	// DefaultVolumeMultiplier flags a spike at twice the rolling average.
	DefaultVolumeMultiplier = 2.0
)

// Pipeline turns raw bars into an enriched series.
type Pipeline struct {
	VolumeMultiplier float64
}

// NewPipeline creates a pipeline; a non-positive multiplier falls back to the default.
func NewPipeline(volumeMultiplier float64) *Pipeline {
	if volumeMultiplier <= 0 {
		volumeMultiplier = DefaultVolumeMultiplier
	}
	return &Pipeline{VolumeMultiplier: volumeMultiplier}
}

// Enrich computes RSI, MACD, MACD cross and volume-spike fields for every bar.
// Series shorter than MinBars are rejected with an InsufficientHistory fault.
func (p *Pipeline) Enrich(instrument, timeframe string, bars []model.OHLCV) (*model.EnrichedSeries, error) {
	op := fmt.Sprintf("enrich %s %s", instrument, timeframe)
	if len(bars) < MinBars {
		return nil, fault.New(fault.InsufficientHistory, op,
			fmt.Errorf("need %d bars, got %d", MinBars, len(bars)))
	}

	closes := extractCloses(bars)
	rsi, err := CalculateRSISeries(closes, RSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("%s: rsi: %w", op, err)
	}
	macd, err := CalculateMACDSeries(closes, MACDFast, MACDSlow, MACDSignal)
	if err != nil {
		return nil, fmt.Errorf("%s: macd: %w", op, err)
	}
	avgVol, avgValid := CalculateVolumeAverage(extractVolumes(bars), VolumeWindow)

	series := &model.EnrichedSeries{
		Instrument: instrument,
		Timeframe:  timeframe,
		Bars:       make([]model.EnrichedBar, len(bars)),
	}
	for i, b := range bars {
		eb := model.EnrichedBar{OHLCV: b}
		if !math.IsNaN(rsi[i]) {
			eb.RSI, eb.RSIValid = rsi[i], true
		}
		if !math.IsNaN(macd.Line[i]) && !math.IsNaN(macd.Signal[i]) {
			eb.MACD, eb.MACDSignal, eb.MACDValid = macd.Line[i], macd.Signal[i], true
			eb.MACDCross = macd.Cross[i]
		}
		eb.AvgVolume20, eb.AvgVolumeValid = avgVol[i], avgValid[i]
		eb.VolumeSpike = IsVolumeSpike(b.Volume, avgVol[i], avgValid[i], p.VolumeMultiplier)
		series.Bars[i] = eb
	}
	return series, nil
}
