package collector

import (
	"context"
	"fmt"
	"time"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/model"
)

// DefaultBarLimit is how many bars are fetched per pair.
const DefaultBarLimit = 100

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	Bars      map[model.PairKey][]model.OHLCV
	Symbols   []string
	Err       error
	FetchHook func(instrument, timeframe string)
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, instrument, timeframe string, limit int) ([]model.OHLCV, error) {
	if m.FetchHook != nil {
		m.FetchHook(instrument, timeframe)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if bars, ok := m.Bars[model.PairKey{Instrument: instrument, Timeframe: timeframe}]; ok {
		return bars, nil
	}
	return generateMockBars(m.Price, limit), nil
}

func (m *MockFetcher) ListInstruments(_ context.Context, _ string) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Symbols, nil
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   time.Now().Add(-time.Duration(count-i) * time.Hour),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Collector orchestrates data fetching and indicator computation.
type Collector struct {
	Fetcher  Fetcher
	Pipeline *calculator.Pipeline
	BarLimit int
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, pipeline *calculator.Pipeline, barLimit int) *Collector {
	if barLimit <= 0 {
		barLimit = DefaultBarLimit
	}
	return &Collector{Fetcher: fetcher, Pipeline: pipeline, BarLimit: barLimit}
}

// Collect fetches bars for one pair and computes all indicators.
// Fetch failures carry a TransientIO fault, short series an InsufficientHistory fault.
func (c *Collector) Collect(ctx context.Context, instrument, timeframe string) (*model.EnrichedSeries, error) {
	bars, err := c.Fetcher.FetchBars(ctx, instrument, timeframe, c.BarLimit)
	if err != nil {
		return nil, fmt.Errorf("collect %s %s: %w", instrument, timeframe, err)
	}
	return c.Pipeline.Enrich(instrument, timeframe, bars)
}

// Instruments returns the configured list, or discovers symbols quoted in quote when none are configured.
func (c *Collector) Instruments(ctx context.Context, configured []string, quote string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	return c.Fetcher.ListInstruments(ctx, quote)
}
