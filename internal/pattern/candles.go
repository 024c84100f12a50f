package pattern

import (
	"errors"
	"math"

	talib "github.com/markcheno/go-talib"

	"SignalSentinel/internal/model"
)

// Pattern names reported by CandleOracle.
const (
	Hammer             = "Hammer"
	InvertedHammer     = "Inverted Hammer"
	BullishEngulfing   = "Bullish Engulfing"
	PiercingLine       = "Piercing Line"
	MorningStar        = "Morning Star"
	ThreeWhiteSoldiers = "Three White Soldiers"
)

const (
	atrLen          = 14
	longBodyAtrMul  = 0.6
	smallBodyAtrMul = 0.3
	trendLookback   = 4
)

// CandleOracle detects classic bullish candlestick reversals on the last bars.
type CandleOracle struct{}

func NewCandleOracle() *CandleOracle { return &CandleOracle{} }

type candle struct{ o, h, l, c float64 }

func (k candle) body() float64        { return math.Abs(k.c - k.o) }
func (k candle) rng() float64         { return k.h - k.l }
func (k candle) upperShadow() float64 { return k.h - math.Max(k.o, k.c) }
func (k candle) lowerShadow() float64 { return math.Min(k.o, k.c) - k.l }
func (k candle) bullish() bool        { return k.c > k.o }
func (k candle) bearish() bool        { return k.c < k.o }
func (k candle) mid() float64         { return (k.o + k.c) / 2 }

// Classify returns the patterns found on the latest bar, in a fixed order.
func (CandleOracle) Classify(series *model.EnrichedSeries) ([]string, error) {
	n := len(series.Bars)
	if n < atrLen+trendLookback+1 {
		return nil, errors.New("not enough bars for pattern detection")
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	ks := make([]candle, n)
	for i, b := range series.Bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
		ks[i] = candle{o: b.Open, h: b.High, l: b.Low, c: b.Close}
	}
	atr := talib.Atr(highs, lows, closes, atrLen)[n-1]
	if atr <= 0 {
		return nil, nil
	}

	i := n - 1
	cur, p1, p2 := ks[i], ks[i-1], ks[i-2]
	// Reversal patterns need a preceding decline.
	declining := closes[i-1] < closes[i-1-trendLookback]

	var found []string
	if declining && cur.rng() > 0 &&
		cur.body() <= smallBodyAtrMul*cur.rng() &&
		cur.lowerShadow() >= 2*cur.body() && cur.lowerShadow() >= 0.6*cur.rng() &&
		cur.upperShadow() <= 0.1*cur.rng() {
		found = append(found, Hammer)
	}
	if declining && cur.rng() > 0 &&
		cur.body() <= smallBodyAtrMul*cur.rng() &&
		cur.upperShadow() >= 2*cur.body() && cur.upperShadow() >= 0.6*cur.rng() &&
		cur.lowerShadow() <= 0.1*cur.rng() {
		found = append(found, InvertedHammer)
	}
	if p1.bearish() && cur.bullish() &&
		cur.o <= p1.c && cur.c >= p1.o && cur.body() > p1.body() {
		found = append(found, BullishEngulfing)
	}
	if declining && p1.bearish() && p1.body() >= longBodyAtrMul*atr && cur.bullish() &&
		cur.o < p1.c && cur.c > p1.mid() && cur.c < p1.o {
		found = append(found, PiercingLine)
	}
	if p2.bearish() && p2.body() >= longBodyAtrMul*atr &&
		p1.body() <= smallBodyAtrMul*atr && math.Max(p1.o, p1.c) <= p2.c+smallBodyAtrMul*atr &&
		cur.bullish() && cur.body() >= longBodyAtrMul*atr && cur.c > p2.mid() {
		found = append(found, MorningStar)
	}
	if p2.bullish() && p1.bullish() && cur.bullish() &&
		p1.c > p2.c && cur.c > p1.c &&
		p1.o > p2.o && p1.o <= p2.c && cur.o > p1.o && cur.o <= p1.c &&
		p2.body() >= 0.5*atr && p1.body() >= 0.5*atr && cur.body() >= 0.5*atr &&
		cur.upperShadow() <= 0.3*cur.body() {
		found = append(found, ThreeWhiteSoldiers)
	}
	return found, nil
}
