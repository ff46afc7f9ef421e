// Package main provides the retrace daemon entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/retracehq/retrace/internal/capture"
	"github.com/retracehq/retrace/internal/classify"
	"github.com/retracehq/retrace/internal/config"
	"github.com/retracehq/retrace/internal/db"
	"github.com/retracehq/retrace/internal/enrich"
	"github.com/retracehq/retrace/internal/platform"
	"github.com/retracehq/retrace/internal/policy"
	"github.com/retracehq/retrace/internal/watcher"
	"github.com/retracehq/retrace/internal/worker"
	"github.com/retracehq/retrace/internal/worker/sse"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	listen := flag.Int("listen", 0, "Listen port (default: settings/env)")
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.retrace)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	noScheduler := flag.Bool("no-scheduler", false, "Do not start the capture timer")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directories")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	dbPath := cfg.DBPath
	rulesPath := cfg.RulesPath
	screenshotsDir := cfg.ScreenshotsDir
	if *dataDir != "" {
		dbPath = filepath.Join(*dataDir, "retrace.db")
		rulesPath = filepath.Join(*dataDir, "rules.yaml")
		screenshotsDir = filepath.Join(*dataDir, "screenshots")
	}

	port := config.GetListenPort()
	if *listen > 0 {
		port = *listen
	}

	store, err := db.NewStore(db.Config{
		Path:     dbPath,
		MaxConns: cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer store.Close()

	eventStore := db.NewEventStore(store)
	queueStore := db.NewQueueStore(store)

	rules, err := policy.LoadRules(rulesPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load automation rules, using none")
		rules = &policy.RuleSet{}
	}

	enricher := enrich.New(time.Duration(cfg.ProviderTimeoutMs) * time.Millisecond)
	enricher.Register(enrich.NewBrowserProvider(platform.NoPageSource{}))
	enricher.Register(enrich.NewMediaProvider(platform.NoNowPlayingSource{}))

	router := classify.NewRouter()
	router.Register(classify.NewLLMProvider(cfg.LLMEndpoint))
	router.Register(classify.NewRulesProvider())

	broadcaster := sse.NewBroadcaster()
	notifier := worker.NewSSENotifier(broadcaster)

	engine := capture.NewEngine(eventStore, queueStore, capture.OSFileOps{}, notifier)

	scheduler := capture.NewScheduler(capture.SchedulerDeps{
		Capturer: platform.UnsupportedCapturer{},
		Tracker:  platform.NewStaticTracker(nil),
		Enricher: enricher,
		Engine:   engine,
		Events:   eventStore,
		Notifier: notifier,
		Rules:    rules,
	})

	svc := worker.New(worker.Deps{
		Version:     Version,
		Config:      cfg,
		Store:       store,
		Events:      eventStore,
		Queue:       queueStore,
		Scheduler:   scheduler,
		Router:      router,
		Broadcaster: broadcaster,
	})

	startWatchers(dbPath, screenshotsDir, notifier)

	if !*noScheduler {
		scheduler.Start(cfg.CaptureIntervalMinutes)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		scheduler.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	}()

	log.Info().Str("version", Version).Str("db", dbPath).Msg("Starting retrace daemon")
	if err := svc.Start(port); err != nil {
		log.Fatal().Err(err).Msg("Worker service error")
	}
}

// startWatchers reacts to on-disk state disappearing under the daemon.
func startWatchers(dbPath, screenshotsDir string, notifier *worker.SSENotifier) {
	for _, target := range []string{dbPath, screenshotsDir} {
		target := target
		w, err := watcher.New(target, func() {
			log.Warn().Str("path", target).Msg("Data path deleted while running")
			notifier.EventsChanged()
		})
		if err != nil {
			log.Warn().Err(err).Str("path", target).Msg("Failed to create watcher")
			continue
		}
		if err := w.Start(); err != nil {
			log.Warn().Err(err).Str("path", target).Msg("Failed to start watcher")
		}
	}
}
