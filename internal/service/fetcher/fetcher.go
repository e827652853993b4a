package fetcher

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ostrel/batchget/internal/domain"
	"github.com/ostrel/batchget/internal/port"
)

// Config contains fetcher configuration
type Config struct {
	DownloadDir      string
	TempDir          string
	Workers          int
	MaxRetries       int
	RetryDelay       time.Duration
	RequestTimeout   time.Duration
	ChunkSize        int
	ProgressInterval time.Duration
}

// DefaultConfig returns default fetcher configuration
func DefaultConfig() *Config {
	return &Config{
		DownloadDir:      "downloads",
		TempDir:          "temp",
		Workers:          5,
		MaxRetries:       10,
		RetryDelay:       5 * time.Second,
		RequestTimeout:   30 * time.Second,
		ChunkSize:        8 * 1024,
		ProgressInterval: 500 * time.Millisecond,
	}
}

// Fetcher downloads a fixed set of URLs to completion with bounded
// concurrency, one supervised task per file.
type Fetcher struct {
	config   *Config
	store    port.PartialStore
	progress port.ProgressSink
	logger   *zap.Logger
	client   *http.Client

	supervisor *Supervisor
}

// New creates a new Fetcher
func New(
	cfg *Config,
	store port.PartialStore,
	prober port.Prober,
	progress port.ProgressSink,
	logger *zap.Logger,
) *Fetcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	// No overall client timeout: large files may stream for longer than any
	// sane request deadline. Stalls are handled per chunk by the transfer.
	client := &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.RequestTimeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   cfg.Workers,
		},
	}

	f := &Fetcher{
		config:   cfg,
		store:    store,
		progress: progress,
		logger:   logger,
		client:   client,
	}

	transfer := NewTransfer(client, store, logger, cfg.ChunkSize, cfg.RequestTimeout, cfg.ProgressInterval)
	f.supervisor = NewSupervisor(transfer, store, prober, progress, logger, cfg.MaxRetries, cfg.RetryDelay)

	return f
}

// BuildTasks converts raw URLs into download tasks. Malformed URLs become
// immediate fatal results. Tasks are keyed 1:1 by destination: a URL whose
// destination collides with an earlier one is dropped, keeping every
// partial file single-writer.
func (f *Fetcher) BuildTasks(urls []string) ([]domain.DownloadTask, []domain.TaskResult) {
	var tasks []domain.DownloadTask
	var failed []domain.TaskResult
	seen := make(map[string]string)

	for _, rawURL := range urls {
		task, err := domain.NewTask(rawURL, f.config.DownloadDir, f.config.TempDir)
		if err != nil {
			f.logger.Error("rejecting URL",
				zap.String("url", rawURL),
				zap.Error(err))
			failed = append(failed, domain.TaskResult{
				Task:       domain.DownloadTask{URL: rawURL},
				Status:     domain.StatusFailedFatal,
				TotalBytes: domain.TotalUnknown,
				Err:        err,
			})
			continue
		}
		if prev, ok := seen[task.DestPath]; ok {
			f.logger.Warn("skipping duplicate destination",
				zap.String("url", rawURL),
				zap.String("kept_url", prev),
				zap.String("dest", task.DestPath))
			continue
		}
		seen[task.DestPath] = rawURL
		tasks = append(tasks, task)
	}
	return tasks, failed
}

// Run executes every task to a terminal status and returns the result set.
// Results are unordered across tasks; a failing task never cancels its
// siblings.
func (f *Fetcher) Run(ctx context.Context, tasks []domain.DownloadTask) []domain.TaskResult {
	f.logger.Info("starting batch",
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", f.config.Workers))

	results := make([]domain.TaskResult, len(tasks))

	g := new(errgroup.Group)
	g.SetLimit(f.config.Workers)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = f.runTask(ctx, task)
			return nil
		})
	}
	g.Wait()

	return results
}

// runTask handles one task's full lifecycle inside a worker slot.
func (f *Fetcher) runTask(ctx context.Context, task domain.DownloadTask) domain.TaskResult {
	total := f.expectedSize(ctx, task.URL)

	// A destination already holding the advertised byte count is a finished
	// download from an earlier run.
	if total != domain.TotalUnknown {
		if destSize, err := f.store.DestSize(task.DestPath); err == nil && destSize == total && total > 0 {
			f.logger.Info("file already downloaded",
				zap.String("task", task.Name),
				zap.Int64("size", total))
			f.progress.Start(task.Name, total, total)
			f.progress.Done(task.Name, domain.StatusCompleted)
			return domain.TaskResult{
				Task:       task,
				Status:     domain.StatusCompleted,
				BytesDone:  total,
				TotalBytes: total,
			}
		}
	}

	prior, err := f.store.PartialSize(task.PartialPath)
	if err != nil {
		prior = 0
	}
	f.logger.Info("starting download",
		zap.String("task", task.Name),
		zap.Int64("expected_size", total),
		zap.Int64("already_downloaded", prior))
	f.progress.Start(task.Name, prior, total)

	return f.supervisor.Run(ctx, task)
}

// expectedSize asks the server for the file's size up front so progress
// totals are known before the first byte arrives. Failure is tolerated; the
// transfer learns the size from its own response.
func (f *Fetcher) expectedSize(ctx context.Context, url string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return domain.TotalUnknown
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("failed to get file size",
			zap.String("url", url),
			zap.Error(err))
		return domain.TotalUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
		return domain.TotalUnknown
	}
	return resp.ContentLength
}
