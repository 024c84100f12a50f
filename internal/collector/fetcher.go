package collector

import (
	"context"

	"SignalSentinel/internal/model"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchBars returns up to limit bars in chronological order.
	FetchBars(ctx context.Context, instrument, timeframe string, limit int) ([]model.OHLCV, error)
	// ListInstruments returns the tradable instruments quoted in quote.
	ListInstruments(ctx context.Context, quote string) ([]string, error)
	Name() string
}
