package fetcher

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/ostrel/batchget/internal/domain"
	"github.com/ostrel/batchget/internal/port"
)

// Supervisor drives one task through bounded retries. Every retry waits out
// the backoff delay and then polls the prober until the network answers, so
// attempts are not burned during an extended outage. Fatal failures are
// never retried; the first attempt never waits.
type Supervisor struct {
	transfer   *Transfer
	store      port.PartialStore
	prober     port.Prober
	progress   port.ProgressSink
	logger     *zap.Logger
	maxRetries uint
	retryDelay time.Duration
}

// NewSupervisor creates a Supervisor
func NewSupervisor(
	transfer *Transfer,
	store port.PartialStore,
	prober port.Prober,
	progress port.ProgressSink,
	logger *zap.Logger,
	maxRetries int,
	retryDelay time.Duration,
) *Supervisor {
	if maxRetries <= 0 {
		maxRetries = 10
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &Supervisor{
		transfer:   transfer,
		store:      store,
		prober:     prober,
		progress:   progress,
		logger:     logger,
		maxRetries: uint(maxRetries),
		retryDelay: retryDelay,
	}
}

// Run drives task to a terminal status. On success the partial file is
// promoted to its destination; on any failure it is retained as a resume
// point for a future run.
func (s *Supervisor) Run(ctx context.Context, task domain.DownloadTask) domain.TaskResult {
	result := domain.TaskResult{Task: task, TotalBytes: domain.TotalUnknown}
	attempts := 0
	allowRange := true

	err := retry.Do(
		func() error {
			attempts++
			s.logger.Info("attempt started",
				zap.String("task", task.Name),
				zap.String("url", task.URL),
				zap.Int("attempt", attempts),
				zap.Bool("range_allowed", allowRange))

			res, err := s.transfer.Run(ctx, task, allowRange, s.progress)
			result.BytesDone = res.BytesOnDisk
			if res.TotalBytes != domain.TotalUnknown {
				result.TotalBytes = res.TotalBytes
			}
			if !res.RangeSupported {
				allowRange = false
			}
			if err != nil {
				s.logger.Warn("attempt failed",
					zap.String("task", task.Name),
					zap.Int("attempt", attempts),
					zap.String("reason", domain.FailureReason(err)),
					zap.Error(err))
				if domain.IsFatal(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.maxRetries),
		retry.LastErrorOnly(true),
		retry.RetryIf(domain.IsRecoverable),
		retry.DelayType(func(uint, error, *retry.Config) time.Duration { return 0 }),
		retry.OnRetry(func(n uint, err error) {
			// n is the zero-based failed attempt; the hook also fires after
			// the final one, when no retry follows and waiting would only
			// delay the terminal result.
			if n+1 >= s.maxRetries {
				return
			}
			s.logger.Info("retry scheduled",
				zap.String("task", task.Name),
				zap.Uint("failed_attempt", n+1),
				zap.Duration("delay", s.retryDelay))
			s.waitForNetwork(ctx, task.Name)
		}),
	)

	result.Attempts = attempts

	switch {
	case err == nil:
		if perr := s.store.Promote(task.PartialPath, task.DestPath); perr != nil {
			result.Status = domain.StatusFailedFatal
			result.Err = domain.NewFatalError(perr, "finalize failed")
			s.logger.Error("task failed",
				zap.String("task", task.Name),
				zap.Error(result.Err))
		} else {
			result.Status = domain.StatusCompleted
			s.logger.Info("task succeeded",
				zap.String("task", task.Name),
				zap.Int64("bytes", result.BytesDone),
				zap.Int("attempts", attempts))
		}
	case domain.IsFatal(err):
		// A classified final failure stands even when the run is shutting
		// down at the same moment; only unclassified context errors abort.
		result.Status = domain.StatusFailedFatal
		result.Err = err
		s.logger.Error("task failed",
			zap.String("task", task.Name),
			zap.String("reason", domain.FailureReason(err)),
			zap.Error(err))
	case ctx.Err() != nil && !domain.IsRecoverable(err):
		result.Status = domain.StatusAborted
		result.Err = err
		s.logger.Warn("task aborted",
			zap.String("task", task.Name),
			zap.Int64("bytes_on_disk", result.BytesDone))
	default:
		result.Status = domain.StatusFailedExhausted
		result.Err = err
		s.logger.Error("task retries exhausted",
			zap.String("task", task.Name),
			zap.Int("attempts", attempts),
			zap.Error(err))
	}

	s.progress.Done(task.Name, result.Status)
	return result
}

// waitForNetwork sleeps the retry delay, then keeps polling the prober at
// that same interval until it reports the network reachable or the context
// is cancelled.
func (s *Supervisor) waitForNetwork(ctx context.Context, taskName string) {
	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	for !s.prober.Online(ctx) {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("network unreachable, delaying retry",
			zap.String("task", taskName),
			zap.Duration("delay", s.retryDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}
