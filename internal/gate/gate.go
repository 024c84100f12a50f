package gate

import (
	"log"
	"sort"
	"sync"
	"time"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/store"
)

// Decision is the outcome of a gate check.
type Decision int

const (
	Passed Decision = iota
	RejectedGlobalCap
	RejectedCooldown
)

func (d Decision) String() string {
	switch d {
	case Passed:
		return "passed"
	case RejectedGlobalCap:
		return "rejected: global cap"
	case RejectedCooldown:
		return "rejected: cooldown"
	default:
		return "unknown"
	}
}

// Limits configures the two throttles.
type Limits struct {
	Cooldown     time.Duration // per (instrument, timeframe)
	GlobalCap    int           // signals per window
	GlobalWindow time.Duration
}

// DefaultLimits returns 2h cooldown and at most 5 signals per 24h.
func DefaultLimits() Limits {
	return Limits{Cooldown: 2 * time.Hour, GlobalCap: 5, GlobalWindow: 24 * time.Hour}
}

// Gate throttles emitted signals. A single mutex covers prune, check and record.
type Gate struct {
	mu          sync.Mutex
	limits      Limits
	lastAlertAt map[model.PairKey]float64
	window      []float64 // accepted signal times, ascending
	store       store.Store
}

// Snapshot is a read-only copy of the throttle state.
type Snapshot struct {
	LastAlertAt  map[string]float64
	WindowCount  int
	GlobalCap    int
	CooldownSecs float64
}

// New creates a Gate, loading per-key alert times from st. A malformed or
// unreadable snapshot is logged and the gate starts empty. The global window
// is not persisted and always starts empty.
func New(st store.Store, limits Limits) *Gate {
	alerts, err := st.LoadAlerts()
	if err != nil {
		log.Printf("[WARN] load last alerts, starting empty: %v", err)
		alerts = make(map[model.PairKey]float64)
	} else {
		log.Printf("[INFO] last alerts loaded: %d keys", len(alerts))
	}
	return &Gate{
		limits:      limits,
		lastAlertAt: alerts,
		store:       st,
	}
}

// TryPass decides whether a qualifying candidate for key may fire at now and,
// if so, records it. A rejection has no side effects.
func (g *Gate) TryPass(key model.PairKey, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := epochSeconds(now)

	g.prune(ts)
	if len(g.window) >= g.limits.GlobalCap {
		return RejectedGlobalCap
	}

	if last, ok := g.lastAlertAt[key]; ok && ts-last < g.limits.Cooldown.Seconds() {
		return RejectedCooldown
	}

	g.window = append(g.window, ts)
	if n := len(g.window); n > 1 && g.window[n-2] > ts {
		sort.Float64s(g.window)
	}
	g.lastAlertAt[key] = ts
	g.save()
	return Passed
}

// Snapshot returns a copy of the throttle state for display.
func (g *Gate) Snapshot(now time.Time) Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(epochSeconds(now))
	last := make(map[string]float64, len(g.lastAlertAt))
	for k, v := range g.lastAlertAt {
		last[k.String()] = v
	}
	return Snapshot{
		LastAlertAt:  last,
		WindowCount:  len(g.window),
		GlobalCap:    g.limits.GlobalCap,
		CooldownSecs: g.limits.Cooldown.Seconds(),
	}
}

// prune drops window entries older than the trailing window. Caller holds mu.
func (g *Gate) prune(ts float64) {
	limit := g.limits.GlobalWindow.Seconds()
	i := sort.Search(len(g.window), func(i int) bool { return ts-g.window[i] <= limit })
	if i > 0 {
		g.window = append(g.window[:0], g.window[i:]...)
	}
}

func (g *Gate) save() {
	if err := g.store.SaveAlerts(g.lastAlertAt); err != nil {
		log.Printf("[ERROR] failed to save last alerts: %v", err)
	}
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
