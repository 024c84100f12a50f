package notifier

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"SignalSentinel/internal/model"
)

// FormatSignal formats a new bullish signal alert.
func FormatSignal(sig *model.Signal) string {
	var b strings.Builder
	b.WriteString("📈 <b>Bullish Signal Detected!</b>\n")
	b.WriteString(fmt.Sprintf("🔸 <b>Coin:</b> %s\n", html.EscapeString(sig.Instrument)))
	b.WriteString(fmt.Sprintf("⏱ <b>Timeframe:</b> %s\n", html.EscapeString(sig.Timeframe)))
	b.WriteString(fmt.Sprintf("💵 <b>Entry Price:</b> %s\n", formatPrice(sig.Price)))
	b.WriteString(fmt.Sprintf("🎯 <b>TP Levels:</b> %s\n", joinPrices(sig.TakeProfits)))
	b.WriteString(fmt.Sprintf("🛡 <b>Stop Loss:</b> %s\n", formatPrice(sig.StopLoss)))
	b.WriteString(fmt.Sprintf("📊 RSI: %.2f | MACD: %.4f/%.4f | Volume Spike: %v\n",
		sig.RSI, sig.MACD, sig.MACDSignal, sig.VolumeSpike))
	b.WriteString(fmt.Sprintf("🔎 <b>Pattern:</b> %s\n", html.EscapeString(strings.Join(sig.Patterns, ", "))))
	b.WriteString(fmt.Sprintf("🕒 <b>Time:</b> %s", sig.BarTime.UTC().Format("2006-01-02 15:04 MST")))
	return b.String()
}

// FormatTakeProfit formats a take-profit hit notice.
func FormatTakeProfit(pos *model.Position, tp, price float64) string {
	rung := 0
	for i, v := range pos.TakeProfits {
		if v == tp {
			rung = i + 1
		}
	}
	return fmt.Sprintf("🎯 <b>Take Profit %d/%d hit</b> for %s at %s (price %s)",
		rung, len(pos.TakeProfits), html.EscapeString(pos.Instrument), formatPrice(tp), formatPrice(price))
}

// FormatStopLoss formats a stop-loss notice.
func FormatStopLoss(pos *model.Position, price float64) string {
	return fmt.Sprintf("🔴 <b>Stop Loss hit</b> for %s at %s (price %s, %d/%d TPs hit)",
		html.EscapeString(pos.Instrument), formatPrice(pos.StopLoss), formatPrice(price),
		len(pos.HitTakeProfits), len(pos.TakeProfits))
}

// FormatPositions lists the open positions.
func FormatPositions(positions []model.Position) string {
	if len(positions) == 0 {
		return "📭 No open positions"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📂 <b>Open positions</b> (%d)\n", len(positions)))
	for _, p := range positions {
		b.WriteString(fmt.Sprintf("\n<b>%s</b> %s | entry %s | SL %s\n",
			html.EscapeString(p.Instrument), html.EscapeString(p.Timeframe),
			formatPrice(p.EntryPrice), formatPrice(p.StopLoss)))
		b.WriteString(fmt.Sprintf("  TPs: %s | hit %d/%d | since %s\n",
			joinPrices(p.TakeProfits), len(p.HitTakeProfits), len(p.TakeProfits),
			p.OpenedAt.UTC().Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatStatus summarizes throttle state and the last cycle.
func FormatStatus(openPositions, windowCount, globalCap int, lastCycle time.Time, lastCycleDur time.Duration) string {
	var b strings.Builder
	b.WriteString("🛰 <b>SignalSentinel status</b>\n\n")
	b.WriteString(fmt.Sprintf("Open positions: %d\n", openPositions))
	b.WriteString(fmt.Sprintf("Signals in last 24h: %d/%d\n", windowCount, globalCap))
	if lastCycle.IsZero() {
		b.WriteString("Last cycle: never\n")
	} else {
		b.WriteString(fmt.Sprintf("Last cycle: %s (%s)\n", lastCycle.UTC().Format("2006-01-02 15:04:05"), lastCycleDur.Round(time.Millisecond)))
	}
	return b.String()
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func joinPrices(ps []float64) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = formatPrice(p)
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
