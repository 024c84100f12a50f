package pattern

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"SignalSentinel/internal/model"
)

func seriesOf(ks []candle) *model.EnrichedSeries {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &model.EnrichedSeries{Instrument: "BTCUSDT", Timeframe: "4h"}
	for i, k := range ks {
		s.Bars = append(s.Bars, model.EnrichedBar{OHLCV: model.OHLCV{
			Time: start.Add(time.Duration(i) * 4 * time.Hour),
			Open: k.o, High: k.h, Low: k.l, Close: k.c, Volume: 1000,
		}})
	}
	return s
}

// declining returns n small bearish bars closing at 200, 199, ...
func declining(n int) []candle {
	ks := make([]candle, n)
	for i := range ks {
		c := 200 - float64(i)
		ks[i] = candle{o: c + 0.5, h: c + 1, l: c - 0.5, c: c}
	}
	return ks
}

func TestCandleOracle_Hammer(t *testing.T) {
	ks := declining(39)
	ks = append(ks, candle{o: 160, h: 160.35, l: 157, c: 160.3})

	got, err := NewCandleOracle().Classify(seriesOf(ks))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{Hammer}) {
		t.Errorf("expected [Hammer], got %v", got)
	}
}

func TestCandleOracle_BullishEngulfing(t *testing.T) {
	ks := declining(39)
	ks = append(ks, candle{o: 160.5, h: 163.2, l: 160.3, c: 163})

	got, _ := NewCandleOracle().Classify(seriesOf(ks))
	if !reflect.DeepEqual(got, []string{BullishEngulfing}) {
		t.Errorf("expected [Bullish Engulfing], got %v", got)
	}
}

func TestCandleOracle_ThreeWhiteSoldiers(t *testing.T) {
	ks := make([]candle, 37)
	for i := range ks {
		c := 100 + float64(i)
		ks[i] = candle{o: c - 0.5, h: c + 0.2, l: c - 0.7, c: c}
	}
	ks = append(ks,
		candle{o: 140, h: 141.6, l: 139.9, c: 141.5},
		candle{o: 141, h: 142.7, l: 140.9, c: 142.6},
		candle{o: 142, h: 143.9, l: 141.9, c: 143.8},
	)

	got, _ := NewCandleOracle().Classify(seriesOf(ks))
	if !reflect.DeepEqual(got, []string{ThreeWhiteSoldiers}) {
		t.Errorf("expected [Three White Soldiers], got %v", got)
	}
}

func TestCandleOracle_NoPattern(t *testing.T) {
	got, err := NewCandleOracle().Classify(seriesOf(declining(40)))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no pattern, got %v", got)
	}
}

func TestCandleOracle_ShortSeries(t *testing.T) {
	if _, err := NewCandleOracle().Classify(seriesOf(declining(10))); err == nil {
		t.Error("expected error for short series")
	}
}

func TestSafeClassify(t *testing.T) {
	s := seriesOf(declining(40))

	panicky := OracleFunc(func(*model.EnrichedSeries) ([]string, error) { panic("boom") })
	got, err := SafeClassify(panicky, s)
	if err == nil || got != nil {
		t.Errorf("panic must become no pattern + error, got %v, %v", got, err)
	}

	failing := OracleFunc(func(*model.EnrichedSeries) ([]string, error) {
		return []string{"ignored"}, errors.New("model offline")
	})
	got, err = SafeClassify(failing, s)
	if err == nil || got != nil {
		t.Errorf("error must become no pattern, got %v", got)
	}
}
