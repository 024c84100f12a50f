package ledger

import (
	"log"
	"sort"
	"sync"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/store"
)

// TickResult describes what a price tick did to a position.
type TickResult struct {
	Instrument  string
	Price       float64
	NewHits     []float64 // ascending
	StopLossHit bool
	Position    model.Position // state after the tick; last state if removed
}

// Changed reports whether the tick mutated the ledger.
func (r TickResult) Changed() bool {
	return len(r.NewHits) > 0 || r.StopLossHit
}

// Ledger holds at most one open position per instrument.
// Mutations for one instrument are serialized; the full ledger is persisted after each one.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*model.Position

	locks  sync.Map // instrument -> *sync.Mutex
	saveMu sync.Mutex
	store  store.Store
}

// New creates a Ledger, restoring positions from st. A malformed or unreadable
// snapshot is logged and the ledger starts empty.
func New(st store.Store) *Ledger {
	l := &Ledger{positions: make(map[string]*model.Position), store: st}
	loaded, err := st.LoadPositions()
	if err != nil {
		log.Printf("[WARN] load active positions, starting empty: %v", err)
		return l
	}
	for instrument, p := range loaded {
		p := p
		p.Instrument = instrument
		l.positions[instrument] = &p
	}
	log.Printf("[INFO] active positions loaded: %d", len(l.positions))
	return l
}

// Open records a new position, replacing any open one for the same instrument.
// Returns true if a position was replaced.
func (l *Ledger) Open(pos model.Position) bool {
	unlock := l.lock(pos.Instrument)
	defer unlock()

	p := pos.Clone()
	l.mu.Lock()
	_, replaced := l.positions[pos.Instrument]
	l.positions[pos.Instrument] = &p
	l.mu.Unlock()

	if replaced {
		log.Printf("[WARN] %s: new signal replaces the open position", pos.Instrument)
	}
	l.save()
	return replaced
}

// SetAlertReference threads the id of the originating alert into the position.
func (l *Ledger) SetAlertReference(instrument, signalID, ref string) {
	unlock := l.lock(instrument)
	defer unlock()

	l.mu.Lock()
	p, ok := l.positions[instrument]
	if !ok || p.SignalID != signalID || p.AlertReference == ref {
		l.mu.Unlock()
		return
	}
	p.AlertReference = ref
	l.mu.Unlock()
	l.save()
}

// Evaluate applies a close price to the instrument's open position.
// Newly crossed take-profits are recorded in ladder order; then, independently,
// a price at or below the stop removes the position. ok is false when there is
// no open position.
func (l *Ledger) Evaluate(instrument string, price float64) (res TickResult, ok bool) {
	unlock := l.lock(instrument)
	defer unlock()

	l.mu.Lock()
	p, exists := l.positions[instrument]
	if !exists {
		l.mu.Unlock()
		return TickResult{}, false
	}

	res = TickResult{Instrument: instrument, Price: price}
	for _, tp := range p.TakeProfits {
		if price >= tp && !p.IsHit(tp) {
			res.NewHits = append(res.NewHits, tp)
		}
	}
	if len(res.NewHits) > 0 {
		p.HitTakeProfits = append(p.HitTakeProfits, res.NewHits...)
		sort.Float64s(p.HitTakeProfits)
	}
	if price <= p.StopLoss {
		res.StopLossHit = true
		delete(l.positions, instrument)
	}
	res.Position = p.Clone()
	l.mu.Unlock()

	if res.Changed() {
		l.save()
	}
	return res, true
}

// Get returns a copy of the instrument's open position.
func (l *Ledger) Get(instrument string) (model.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[instrument]
	if !ok {
		return model.Position{}, false
	}
	return p.Clone(), true
}

// List returns copies of all open positions ordered by instrument.
func (l *Ledger) List() []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// Instruments returns the instruments with an open position.
func (l *Ledger) Instruments() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.positions))
	for k := range l.positions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) lock(instrument string) func() {
	v, _ := l.locks.LoadOrStore(instrument, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// save snapshots and writes under saveMu so the last write always carries the latest state.
func (l *Ledger) save() {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.RLock()
	snap := make(map[string]model.Position, len(l.positions))
	for k, p := range l.positions {
		snap[k] = p.Clone()
	}
	l.mu.RUnlock()

	if err := l.store.SavePositions(snap); err != nil {
		log.Printf("[ERROR] failed to save active positions: %v", err)
	}
}
