package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"SignalSentinel/internal/api"
	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/gate"
	"SignalSentinel/internal/ledger"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/pattern"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/scheduler"
	"SignalSentinel/internal/store"
	"SignalSentinel/internal/stream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] SignalSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init snapshots, gate and ledger
	st, err := store.NewFileStore(cfg.Storage.PositionsFile, cfg.Storage.AlertsFile)
	if err != nil {
		log.Fatalf("[FATAL] init store: %v", err)
	}
	gt := gate.New(st, gate.Limits{
		Cooldown:     cfg.Signal.Cooldown,
		GlobalCap:    cfg.Signal.GlobalCap,
		GlobalWindow: cfg.Signal.GlobalWindow,
	})
	led := ledger.New(st)
	log.Printf("[INFO] restored %d open positions", len(led.List()))

	// Init fetcher and collector
	fetcher := collector.NewBinanceFetcher(cfg.DataSource.BaseURL, cfg.Proxy)
	log.Printf("[INFO] data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, calculator.NewPipeline(cfg.Signal.VolumeMultiplier), cfg.DataSource.BarLimit)

	// Init notifier
	var (
		sender notifier.Sender
		tn     *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		log.Println("[WARN] telegram not configured, alerts will only be logged")
		sender = notifier.NewNoopNotifier()
	}

	// Init recorder
	var rec recorder.Recorder
	switch {
	case cfg.Database.PostgresURL != "":
		pr, err := recorder.NewPostgresRecorder(ctx, cfg.Database.PostgresURL)
		if err != nil {
			log.Printf("[WARN] init postgres recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = pr
		}
	case cfg.Database.SQLitePath != "":
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	default:
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Collector: col,
		Oracle:    pattern.NewCandleOracle(),
		Gate:      gt,
		Ledger:    led,
		Notifier:  sender,
		Recorder:  rec,
	}, scheduler.Options{
		Instruments: cfg.DataSource.Instruments,
		QuoteAsset:  cfg.DataSource.QuoteAsset,
		Timeframes:  cfg.DataSource.Timeframes,
		Workers:     cfg.Schedule.Workers,
		Ladder: ledger.Ladder{
			TakeProfitPcts: cfg.Signal.TakeProfitPcts,
			StopLossPct:    cfg.Signal.StopLossPct,
		},
		RSIMax: cfg.Signal.RSIMax,
	})
	if err := sched.Register(cfg.Schedule.Cadence); err != nil {
		log.Fatalf("[FATAL] register poll cycle: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional live price stream for open positions
	if cfg.Stream.Enabled {
		ps := stream.New(cfg.Stream.URL, led.Instruments, sched.HandleTick)
		go ps.Run(ctx)
		log.Println("[INFO] price stream started")
	}

	// Optional status API
	if cfg.HTTP.Addr != "" {
		srv := api.NewServer(led, gt, rec)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTP.Addr); err != nil {
				log.Printf("[ERROR] status API: %v", err)
			}
		}()
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing poll cycle now")
		sched.RunNow()
	}

	if tn != nil {
		if err := tn.SendWithRetry(ctx, "🟢 SignalSentinel started", 3); err != nil {
			log.Printf("[WARN] startup notice: %v", err)
		}
	}

	log.Println("[INFO] SignalSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] SignalSentinel stopped")
}
