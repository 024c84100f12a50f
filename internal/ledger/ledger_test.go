package ledger

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/store"
)

var opened = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func openAt100(t *testing.T, l *Ledger) model.Position {
	t.Helper()
	pos, err := NewPosition("BTCUSDT", "4h", 100, opened, DefaultLadder())
	if err != nil {
		t.Fatal(err)
	}
	pos.SignalID = "sig-1"
	l.Open(pos)
	return pos
}

func TestNewPosition_DefaultLadder(t *testing.T) {
	pos, err := NewPosition("BTCUSDT", "4h", 100, opened, DefaultLadder())
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{105, 110, 120, 150}; !reflect.DeepEqual(pos.TakeProfits, want) {
		t.Errorf("expected ladder %v, got %v", want, pos.TakeProfits)
	}
	if pos.StopLoss != 92.5 {
		t.Errorf("expected stop 92.5, got %v", pos.StopLoss)
	}
	if len(pos.HitTakeProfits) != 0 {
		t.Error("new position must have no hits")
	}
}

func TestNewPosition_SubUnitPriceKeepsRungsDistinct(t *testing.T) {
	pos, err := NewPosition("SHIBUSDT", "1d", 0.00001234, opened, DefaultLadder())
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(pos.TakeProfits); i++ {
		if pos.TakeProfits[i] <= pos.TakeProfits[i-1] {
			t.Fatalf("ladder not increasing: %v", pos.TakeProfits)
		}
	}
	if pos.StopLoss <= 0 || pos.StopLoss >= pos.EntryPrice {
		t.Errorf("bad stop %v", pos.StopLoss)
	}
}

func TestNewPosition_Invalid(t *testing.T) {
	if _, err := NewPosition("X", "4h", 0, opened, DefaultLadder()); err == nil {
		t.Error("expected error for zero entry")
	}
	bad := Ladder{TakeProfitPcts: []float64{0.1, 0.05}, StopLossPct: 0.075}
	if _, err := NewPosition("X", "4h", 100, opened, bad); err == nil {
		t.Error("expected error for decreasing ladder")
	}
	bad = Ladder{TakeProfitPcts: []float64{0.05}, StopLossPct: 1.2}
	if _, err := NewPosition("X", "4h", 100, opened, bad); err == nil {
		t.Error("expected error for stop pct >= 1")
	}
}

func TestEvaluate_StepwiseHitsThenStop(t *testing.T) {
	st := store.NewMemoryStore()
	l := New(st)
	openAt100(t, l)

	res, ok := l.Evaluate("BTCUSDT", 106)
	if !ok || !reflect.DeepEqual(res.NewHits, []float64{105}) || res.StopLossHit {
		t.Fatalf("tick1: unexpected result %+v", res)
	}

	res, _ = l.Evaluate("BTCUSDT", 111)
	if !reflect.DeepEqual(res.NewHits, []float64{110}) {
		t.Fatalf("tick2: expected [110], got %v", res.NewHits)
	}
	if !reflect.DeepEqual(res.Position.HitTakeProfits, []float64{105, 110}) {
		t.Fatalf("tick2: expected cumulative hits [105 110], got %v", res.Position.HitTakeProfits)
	}

	res, _ = l.Evaluate("BTCUSDT", 90)
	if !res.StopLossHit || len(res.NewHits) != 0 {
		t.Fatalf("tick3: expected stop loss only, got %+v", res)
	}
	if _, ok := l.Get("BTCUSDT"); ok {
		t.Error("position must be removed after stop loss")
	}
	if _, ok := st.Positions["BTCUSDT"]; ok {
		t.Error("removal must be persisted")
	}
	if _, ok := l.Evaluate("BTCUSDT", 200); ok {
		t.Error("no position: evaluate must report ok=false")
	}
}

func TestEvaluate_GapMoveReportsEveryRung(t *testing.T) {
	l := New(store.NewMemoryStore())
	openAt100(t, l)

	res, _ := l.Evaluate("BTCUSDT", 125)
	if want := []float64{105, 110, 120}; !reflect.DeepEqual(res.NewHits, want) {
		t.Fatalf("expected %v, got %v", want, res.NewHits)
	}
	res, _ = l.Evaluate("BTCUSDT", 125)
	if len(res.NewHits) != 0 || res.Changed() {
		t.Errorf("repeat tick must not re-report hits: %v", res.NewHits)
	}
}

func TestEvaluate_TakeProfitAndStopSameTick(t *testing.T) {
	l := New(store.NewMemoryStore())
	pos := openAt100(t, l)

	// Stop above the first rung so one price satisfies both checks.
	pos.StopLoss = 106
	l.Open(pos)

	res, _ := l.Evaluate("BTCUSDT", 105.5)
	if !reflect.DeepEqual(res.NewHits, []float64{105}) || !res.StopLossHit {
		t.Fatalf("expected TP 105 and stop loss on the same tick, got %+v", res)
	}
}

func TestEvaluate_FullLadderStaysOpenUntilStop(t *testing.T) {
	l := New(store.NewMemoryStore())
	openAt100(t, l)

	res, _ := l.Evaluate("BTCUSDT", 160)
	if len(res.NewHits) != 4 || res.StopLossHit {
		t.Fatalf("expected all 4 rungs, got %+v", res)
	}
	if _, ok := l.Get("BTCUSDT"); !ok {
		t.Fatal("exhausted ladder must not close the position")
	}
	res, _ = l.Evaluate("BTCUSDT", 92.5)
	if !res.StopLossHit {
		t.Fatal("stop loss must still be checked after the ladder is exhausted")
	}
	if len(l.List()) != 0 {
		t.Error("ledger should be empty")
	}
}

func TestEvaluate_HitsNeverShrink(t *testing.T) {
	l := New(store.NewMemoryStore())
	openAt100(t, l)

	prev := 0
	for _, price := range []float64{101, 106, 104, 111, 99, 121, 95, 151, 100} {
		res, ok := l.Evaluate("BTCUSDT", price)
		if !ok {
			t.Fatalf("position vanished at %v", price)
		}
		if n := len(res.Position.HitTakeProfits); n < prev {
			t.Fatalf("hit set shrank from %d to %d at %v", prev, n, price)
		} else {
			prev = n
		}
	}
}

func TestLedger_PersistsAfterEachMutationAndRestores(t *testing.T) {
	st := store.NewMemoryStore()
	l := New(st)
	openAt100(t, l)
	l.SetAlertReference("BTCUSDT", "sig-1", "777")
	saves := st.Saves

	l.Evaluate("BTCUSDT", 101) // no change
	if st.Saves != saves {
		t.Error("unchanged tick must not persist")
	}
	l.Evaluate("BTCUSDT", 111)
	if st.Saves != saves+1 {
		t.Errorf("expected one save after a hit, got %d", st.Saves-saves)
	}

	restored := New(st)
	pos, ok := restored.Get("BTCUSDT")
	if !ok {
		t.Fatal("expected restored position")
	}
	if !reflect.DeepEqual(pos.HitTakeProfits, []float64{105, 110}) || pos.AlertReference != "777" {
		t.Errorf("unexpected restored position %+v", pos)
	}
}

func TestSetAlertReference_IgnoresStaleSignal(t *testing.T) {
	l := New(store.NewMemoryStore())
	openAt100(t, l)
	l.SetAlertReference("BTCUSDT", "other-signal", "1")
	if pos, _ := l.Get("BTCUSDT"); pos.AlertReference != "" {
		t.Error("reference for a replaced signal must be ignored")
	}
}

func TestLedger_SaveFailureKeepsMemoryState(t *testing.T) {
	st := store.NewMemoryStore()
	st.Err = errors.New("read-only filesystem")
	l := New(st)
	openAt100(t, l)
	if _, ok := l.Get("BTCUSDT"); !ok {
		t.Error("in-memory ledger must stay authoritative")
	}
}

func TestLedger_ConcurrentTicks(t *testing.T) {
	l := New(store.NewMemoryStore())
	openAt100(t, l)

	var wg sync.WaitGroup
	var mu sync.Mutex
	reported := map[float64]int{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := l.Evaluate("BTCUSDT", 130)
			mu.Lock()
			for _, tp := range res.NewHits {
				reported[tp]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	for _, tp := range []float64{105, 110, 120} {
		if reported[tp] != 1 {
			t.Errorf("rung %v reported %d times", tp, reported[tp])
		}
	}
}
