package recorder

import (
	"context"
	"strconv"
	"strings"
	"time"

	"SignalSentinel/internal/model"
)

// AuditRow is one line of the signal log.
type AuditRow struct {
	SignalID    string
	Instrument  string
	Timeframe   string
	Price       float64
	RSI         float64
	MACD        float64
	MACDSignal  float64
	Volume      float64
	VolumeSpike bool
	Timestamp   time.Time
	SignalType  model.SignalType
	TakeProfits []float64
	StopLoss    float64
}

// SignalRow builds the BUY row for an emitted signal.
func SignalRow(sig *model.Signal) AuditRow {
	return AuditRow{
		SignalID:    sig.ID,
		Instrument:  sig.Instrument,
		Timeframe:   sig.Timeframe,
		Price:       sig.Price,
		RSI:         sig.RSI,
		MACD:        sig.MACD,
		MACDSignal:  sig.MACDSignal,
		Volume:      sig.Volume,
		VolumeSpike: sig.VolumeSpike,
		Timestamp:   sig.EmittedAt,
		SignalType:  model.SignalBuy,
		TakeProfits: sig.TakeProfits,
		StopLoss:    sig.StopLoss,
	}
}

// PositionRow builds a TP or SL row for a watcher event on pos.
func PositionRow(pos *model.Position, typ model.SignalType, price float64, at time.Time) AuditRow {
	return AuditRow{
		SignalID:    pos.SignalID,
		Instrument:  pos.Instrument,
		Timeframe:   pos.Timeframe,
		Price:       price,
		Timestamp:   at,
		SignalType:  typ,
		TakeProfits: pos.TakeProfits,
		StopLoss:    pos.StopLoss,
	}
}

// Recorder appends audit rows to the signal log.
// Failures are reported to the caller, which logs them and moves on.
type Recorder interface {
	AppendRow(ctx context.Context, row AuditRow) error
	Recent(ctx context.Context, limit int) ([]AuditRow, error)
	Close() error
}

func joinLadder(tps []float64) string {
	parts := make([]string, len(tps))
	for i, tp := range tps {
		parts[i] = strconv.FormatFloat(tp, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func splitLadder(s string) []float64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}
