package scheduler

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"SignalSentinel/internal/chart"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/fault"
	"SignalSentinel/internal/gate"
	"SignalSentinel/internal/ledger"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/pattern"
	"SignalSentinel/internal/recorder"
)

// ErrCycleRunning is returned when a cycle is requested while one is in progress.
var ErrCycleRunning = errors.New("poll cycle already running")

// Options controls what a cycle polls and how signals are sized.
type Options struct {
	Instruments []string // empty means discover by QuoteAsset
	QuoteAsset  string
	Timeframes  []string
	Workers     int
	Ladder      ledger.Ladder
	RSIMax      float64
	ChartBars   int
}

// Deps are the collaborators of the scheduler.
type Deps struct {
	Collector *collector.Collector
	Oracle    pattern.Oracle
	Gate      *gate.Gate
	Ledger    *ledger.Ledger
	Notifier  notifier.Sender
	Recorder  recorder.Recorder
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	Jobs     int
	Skipped  int
	Signals  int
	Duration time.Duration
}

// Scheduler runs the poll cycle on a cron cadence and owns the signal and watcher flow.
type Scheduler struct {
	Cron *cron.Cron
	Deps
	Options Options
	Ctx     context.Context

	now   func() time.Time
	newID func() string

	running atomic.Bool
	manual  sync.WaitGroup

	mu        sync.Mutex
	stopped   bool
	lastCycle time.Time
	lastStats CycleStats
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, deps Deps, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RSIMax <= 0 {
		opts.RSIMax = gate.DefaultRSIMax
	}
	if opts.ChartBars <= 0 {
		opts.ChartBars = chart.DefaultBars
	}
	return &Scheduler{
		Cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log.Default())),
			cron.SkipIfStillRunning(cron.PrintfLogger(log.Default())),
		)),
		Deps:    deps,
		Options: opts,
		Ctx:     ctx,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Register schedules the poll cycle every cadence.
func (s *Scheduler) Register(cadence time.Duration) error {
	spec := fmt.Sprintf("@every %s", cadence)
	if _, err := s.Cron.AddFunc(spec, s.cycleTask); err != nil {
		return fmt.Errorf("register poll cycle %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running cycles to finish,
// including those started by RunNow.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	<-s.Cron.Stop().Done()
	s.manual.Wait()
	log.Println("[INFO] scheduler stopped")
}

// RunNow starts one cycle in the background (for /scan and RUN_ON_START).
// It does nothing once Stop has been called.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		s.cycleTask()
	}()
}

func (s *Scheduler) cycleTask() {
	stats, err := s.RunCycle(s.Ctx)
	if err != nil {
		if errors.Is(err, ErrCycleRunning) {
			log.Println("[INFO] previous cycle still running, skipping")
			return
		}
		log.Printf("[ERROR] poll cycle: %v", err)
		return
	}
	log.Printf("[INFO] cycle done: %d jobs, %d skipped, %d signals in %s",
		stats.Jobs, stats.Skipped, stats.Signals, stats.Duration.Round(time.Millisecond))
}

type job struct {
	instrument string
	timeframe  string
}

// RunCycle polls every instrument×timeframe pair once. Jobs for one instrument
// always run on the same worker, in timeframe order.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return CycleStats{}, ErrCycleRunning
	}
	defer s.running.Store(false)

	start := s.now()
	instruments, err := s.Collector.Instruments(ctx, s.Options.Instruments, s.Options.QuoteAsset)
	if err != nil {
		return CycleStats{}, fmt.Errorf("resolve instruments: %w", err)
	}

	workers := s.Options.Workers
	queues := make([]chan job, workers)
	for i := range queues {
		queues[i] = make(chan job, 16)
	}

	var (
		wg      sync.WaitGroup
		skipped atomic.Int64
		signals atomic.Int64
	)
	for i := range queues {
		wg.Add(1)
		go func(q <-chan job) {
			defer wg.Done()
			for j := range q {
				if ctx.Err() != nil {
					skipped.Add(1)
					continue
				}
				emitted, err := s.processPair(ctx, j.instrument, j.timeframe)
				if err != nil {
					skipped.Add(1)
					logSkip(j, err)
				}
				if emitted {
					signals.Add(1)
				}
			}
		}(queues[i])
	}

	jobs := 0
	for _, inst := range instruments {
		q := queues[shardFor(inst, workers)]
		for _, tf := range s.Options.Timeframes {
			q <- job{instrument: inst, timeframe: tf}
			jobs++
		}
	}
	for _, q := range queues {
		close(q)
	}
	wg.Wait()

	stats := CycleStats{
		Jobs:     jobs,
		Skipped:  int(skipped.Load()),
		Signals:  int(signals.Load()),
		Duration: s.now().Sub(start),
	}
	s.mu.Lock()
	s.lastCycle = start
	s.lastStats = stats
	s.mu.Unlock()
	return stats, nil
}

// processPair runs detection and the watcher for one pair. A returned error
// means the pair was skipped for this cycle.
func (s *Scheduler) processPair(ctx context.Context, instrument, timeframe string) (bool, error) {
	series, err := s.Collector.Collect(ctx, instrument, timeframe)
	if err != nil {
		return false, err
	}
	latest := series.Latest()

	patterns, err := pattern.SafeClassify(s.Oracle, series)
	if err != nil {
		log.Printf("[WARN] pattern oracle %s %s: %v", instrument, timeframe, err)
	}

	emitted := false
	if gate.Qualifies(latest, patterns, s.Options.RSIMax) {
		emitted = s.emit(ctx, series, patterns)
	}

	s.watch(ctx, instrument, latest.Close)
	return emitted, nil
}

// emit passes a qualifying candidate through the gate and, if accepted, opens
// the position and sends the alert.
func (s *Scheduler) emit(ctx context.Context, series *model.EnrichedSeries, patterns []string) bool {
	latest := series.Latest()
	now := s.now()

	pos, err := ledger.NewPosition(series.Instrument, series.Timeframe, latest.Close, now, s.Options.Ladder)
	if err != nil {
		log.Printf("[ERROR] build position %s: %v", series.Instrument, err)
		return false
	}

	if d := s.Gate.TryPass(series.Key(), now); d != gate.Passed {
		log.Printf("[INFO] %s candidate rejected: %s", series.Key(), d)
		return false
	}

	pos.SignalID = s.newID()
	s.Ledger.Open(pos)

	sig := &model.Signal{
		ID:          pos.SignalID,
		Instrument:  series.Instrument,
		Timeframe:   series.Timeframe,
		Price:       latest.Close,
		RSI:         latest.RSI,
		MACD:        latest.MACD,
		MACDSignal:  latest.MACDSignal,
		Volume:      latest.Volume,
		VolumeSpike: latest.VolumeSpike,
		Patterns:    patterns,
		BarTime:     latest.Time,
		EmittedAt:   now,
		TakeProfits: pos.TakeProfits,
		StopLoss:    pos.StopLoss,
	}
	log.Printf("[INFO] signal %s %s %s at %v (%s)", sig.ID, sig.Instrument, sig.Timeframe, sig.Price, strings.Join(patterns, ", "))

	img, err := chart.RenderCandles(series, s.Options.ChartBars)
	if err != nil {
		log.Printf("[WARN] render chart %s: %v", series.Key(), err)
	}
	ref, err := s.Notifier.Send(ctx, notifier.Message{Text: notifier.FormatSignal(sig), Image: img})
	if err != nil {
		log.Printf("[ERROR] send signal alert %s: %v", series.Key(), err)
	} else if ref != "" {
		s.Ledger.SetAlertReference(sig.Instrument, sig.ID, ref)
	}

	s.record(ctx, recorder.SignalRow(sig))
	return true
}

// watch applies one price tick to the instrument's position and reports what changed.
func (s *Scheduler) watch(ctx context.Context, instrument string, price float64) {
	res, ok := s.Ledger.Evaluate(instrument, price)
	if !ok || !res.Changed() {
		return
	}
	pos := &res.Position
	now := s.now()

	for _, tp := range res.NewHits {
		log.Printf("[INFO] %s take profit %v hit at %v", instrument, tp, price)
		s.send(ctx, notifier.Message{Text: notifier.FormatTakeProfit(pos, tp, price), ReplyTo: pos.AlertReference})
		s.record(ctx, recorder.PositionRow(pos, model.SignalTakeProfit, price, now))
	}
	if res.StopLossHit {
		log.Printf("[INFO] %s stop loss %v hit at %v, position closed", instrument, pos.StopLoss, price)
		s.send(ctx, notifier.Message{Text: notifier.FormatStopLoss(pos, price), ReplyTo: pos.AlertReference})
		s.record(ctx, recorder.PositionRow(pos, model.SignalStopLoss, price, now))
	}
}

// HandleTick feeds a live price into the watcher.
func (s *Scheduler) HandleTick(instrument string, price float64) {
	s.watch(s.Ctx, instrument, price)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/positions":
		return notifier.FormatPositions(s.Ledger.List())
	case "/status":
		snap := s.Gate.Snapshot(s.now())
		s.mu.Lock()
		last, stats := s.lastCycle, s.lastStats
		s.mu.Unlock()
		return notifier.FormatStatus(len(s.Ledger.List()), snap.WindowCount, snap.GlobalCap, last, stats.Duration)
	case "/scan":
		if s.running.Load() {
			return "⏳ A scan is already running"
		}
		s.RunNow()
		return "🔄 Scan started"
	default:
		return "Available commands:\n• /positions open positions\n• /status throttle and last cycle\n• /scan run a cycle now"
	}
}

func (s *Scheduler) send(ctx context.Context, msg notifier.Message) {
	if _, err := s.Notifier.Send(ctx, msg); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

func (s *Scheduler) record(ctx context.Context, row recorder.AuditRow) {
	if err := s.Recorder.AppendRow(ctx, row); err != nil {
		log.Printf("[ERROR] record %s %s: %v", row.SignalType, row.Instrument, err)
	}
}

func logSkip(j job, err error) {
	switch fault.KindOf(err) {
	case fault.InsufficientHistory:
		log.Printf("[INFO] skip %s %s: %v", j.instrument, j.timeframe, err)
	default:
		log.Printf("[WARN] skip %s %s (%s): %v", j.instrument, j.timeframe, fault.KindOf(err), err)
	}
}

func shardFor(instrument string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(instrument))
	return int(h.Sum32() % uint32(n))
}
