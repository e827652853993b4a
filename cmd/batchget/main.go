package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ostrel/batchget/internal/adapter/filesystem"
	"github.com/ostrel/batchget/internal/adapter/netprobe"
	"github.com/ostrel/batchget/internal/adapter/progress"
	"github.com/ostrel/batchget/internal/adapter/sqlite"
	"github.com/ostrel/batchget/internal/config"
	"github.com/ostrel/batchget/internal/logger"
	"github.com/ostrel/batchget/internal/port"
	"github.com/ostrel/batchget/internal/service/fetcher"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	noProgress := flag.Bool("no-progress", false, "Disable console progress bars")
	cleanAge := flag.Duration("clean-partials", 0, "Remove partial files older than this age before downloading (0 keeps them)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting batchget",
		zap.String("version", version),
		zap.String("config", *configPath))

	urls := flag.Args()
	if len(urls) == 0 {
		urls = cfg.URLs
	}
	if len(urls) == 0 {
		log.Error("no URLs to download; pass them as arguments or set urls in the config")
		os.Exit(1)
	}

	fsManager, err := filesystem.NewManager(cfg.Download.Dir, cfg.Download.TempDir)
	if err != nil {
		log.Fatal("failed to create filesystem manager", zap.Error(err))
	}

	if *cleanAge > 0 {
		removed, err := fsManager.CleanOldPartials(*cleanAge)
		if err != nil {
			log.Warn("failed to clean old partial files", zap.Error(err))
		} else if removed > 0 {
			log.Info("removed old partial files",
				zap.Int("count", removed),
				zap.Duration("older_than", *cleanAge))
		}
	}

	if usage, err := fsManager.DiskUsage(); err != nil {
		log.Warn("failed to get disk stats", zap.Error(err))
	} else {
		log.Info("download volume",
			zap.Uint64("free_bytes", usage.Free),
			zap.Float64("used_pct", usage.UsedPct))
		if usage.UsedPct > 90 {
			log.Warn("download volume is nearly full",
				zap.Uint64("free_bytes", usage.Free))
		}
	}

	history, err := sqlite.Open(cfg.HistoryPath())
	if err != nil {
		log.Fatal("failed to open history database",
			zap.Error(err),
			zap.String("path", cfg.HistoryPath()))
	}
	defer history.Close()

	prober := netprobe.New(cfg.Probe.URL, cfg.Probe.GetTimeout(), log)

	var sink port.ProgressSink = progress.Nop{}
	var bars *progress.MultiBar
	if !*noProgress {
		bars = progress.NewMultiBar(os.Stdout)
		sink = bars
	}

	fetchCfg := &fetcher.Config{
		DownloadDir:      cfg.Download.Dir,
		TempDir:          cfg.Download.TempDir,
		Workers:          cfg.Download.Workers,
		MaxRetries:       cfg.Download.MaxRetries,
		RetryDelay:       cfg.Download.GetRetryDelay(),
		RequestTimeout:   cfg.Download.GetRequestTimeout(),
		ChunkSize:        cfg.Download.GetChunkSize(),
		ProgressInterval: cfg.Download.GetProgressInterval(),
	}
	f := fetcher.New(fetchCfg, fsManager, prober, sink, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warn("shutdown signal received, aborting downloads",
			zap.String("signal", sig.String()))
		cancel()
	}()

	tasks, rejected := f.BuildTasks(urls)

	runID := uuid.NewString()
	started := time.Now()
	if err := history.CreateRun(runID, started, len(tasks)+len(rejected)); err != nil {
		log.Warn("failed to record run start", zap.Error(err))
	}

	results := f.Run(ctx, tasks)
	results = append(results, rejected...)

	if bars != nil {
		bars.Wait()
	}

	completed, failed := 0, 0
	for _, res := range results {
		if res.Succeeded() {
			completed++
		} else {
			failed++
			log.Error("download failed",
				zap.String("url", res.Task.URL),
				zap.String("status", res.Status),
				zap.String("reason", res.Reason()))
		}
		if err := history.RecordResult(runID, res); err != nil {
			log.Warn("failed to record task result", zap.Error(err))
		}
	}
	if err := history.FinishRun(runID, time.Now(), completed, failed); err != nil {
		log.Warn("failed to record run end", zap.Error(err))
	}

	log.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(started).Round(time.Millisecond)))

	if failed > 0 {
		os.Exit(1)
	}
}
