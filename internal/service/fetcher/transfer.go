package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ostrel/batchget/internal/domain"
	"github.com/ostrel/batchget/internal/port"
	"github.com/ostrel/batchget/internal/util/throttle"
)

// Transfer performs single download attempts with byte-range resume.
type Transfer struct {
	client           *http.Client
	store            port.PartialStore
	logger           *zap.Logger
	chunkSize        int
	stallTimeout     time.Duration
	progressInterval time.Duration
}

// TransferResult describes a finished attempt, successful or not.
type TransferResult struct {
	// BytesOnDisk is the partial file's size after the attempt, always a
	// valid resume point for the next one.
	BytesOnDisk int64

	// TotalBytes is the server-advertised full size, domain.TotalUnknown
	// when no length was reported.
	TotalBytes int64

	// Resumed is true when the attempt appended to an existing partial file.
	Resumed bool

	// RangeSupported is false once the server has shown it ignores range
	// requests; later attempts must then restart from scratch.
	RangeSupported bool
}

// NewTransfer creates a Transfer
func NewTransfer(client *http.Client, store port.PartialStore, logger *zap.Logger, chunkSize int, stallTimeout, progressInterval time.Duration) *Transfer {
	if client == nil {
		client = http.DefaultClient
	}
	if chunkSize <= 0 {
		chunkSize = 8 * 1024
	}
	if stallTimeout <= 0 {
		stallTimeout = 30 * time.Second
	}
	if progressInterval <= 0 {
		progressInterval = 500 * time.Millisecond
	}
	return &Transfer{
		client:           client,
		store:            store,
		logger:           logger,
		chunkSize:        chunkSize,
		stallTimeout:     stallTimeout,
		progressInterval: progressInterval,
	}
}

// Run performs one attempt for task. Prior bytes come from the partial file
// itself; with allowRange false the attempt always restarts from scratch.
// A nil error means the partial file is byte-complete. Any other outcome
// leaves the partial file at its last flushed length.
func (t *Transfer) Run(ctx context.Context, task domain.DownloadTask, allowRange bool, progress port.ProgressSink) (TransferResult, error) {
	res := TransferResult{TotalBytes: domain.TotalUnknown, RangeSupported: true}

	prior, err := t.store.PartialSize(task.PartialPath)
	if err != nil {
		return res, domain.NewFatalError(fmt.Errorf("stat partial file: %w", err), "local filesystem")
	}
	res.BytesOnDisk = prior

	// A stalled body read cancels only the attempt, not the whole task.
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return res, domain.NewFatalError(fmt.Errorf("build request: %w", err), "malformed URL")
	}

	wantResume := prior > 0 && allowRange
	if wantResume {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", prior))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("transfer aborted: %w", ctx.Err())
		}
		return res, domain.NewRecoverableError(fmt.Errorf("request %s: %w", task.URL, err), "request failed")
	}
	defer resp.Body.Close()

	var resume bool
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		resume = wantResume
	case resp.StatusCode == http.StatusOK:
		// Either a fresh download, or the server ignored the range header
		// and sent the full file from byte zero. Appending the full body to
		// the partial file would corrupt it, so resume only when a
		// Content-Range proves the body starts at our offset.
		resume = wantResume && honorsRange(resp, prior)
	case resp.StatusCode >= 400:
		return res, domain.ClassifyStatus(resp.StatusCode, task.URL)
	default:
		return res, domain.NewRecoverableError(
			fmt.Errorf("%s: unexpected status %d", task.URL, resp.StatusCode), "unexpected response")
	}

	if strings.EqualFold(resp.Header.Get("Accept-Ranges"), "none") || (wantResume && !resume) {
		res.RangeSupported = false
	}
	res.Resumed = resume

	total := domain.TotalUnknown
	if resume {
		if full, ok := contentRangeTotal(resp.Header.Get("Content-Range")); ok {
			total = full
		} else if resp.ContentLength >= 0 {
			total = prior + resp.ContentLength
		}
	} else if resp.ContentLength >= 0 {
		total = resp.ContentLength
	}
	res.TotalBytes = total

	if wantResume && !resume {
		t.logger.Info("server ignored range request, restarting from scratch",
			zap.String("task", task.Name),
			zap.Int64("discarded_bytes", prior))
	}

	out, err := t.store.OpenPartial(task.PartialPath, resume)
	if err != nil {
		return res, domain.NewFatalError(err, "local filesystem")
	}

	written := int64(0)
	if resume {
		written = prior
	}
	res.BytesOnDisk = written
	progress.Update(task.Name, written, total)

	// Cancel the attempt when the body stalls for too long; each chunk read
	// rearms the watchdog.
	watchdog := time.AfterFunc(t.stallTimeout, cancel)
	defer watchdog.Stop()

	reportGate := throttle.New(t.progressInterval)
	buf := make([]byte, t.chunkSize)
	for {
		if ctx.Err() != nil {
			out.Close()
			res.BytesOnDisk = written
			return res, fmt.Errorf("transfer aborted: %w", ctx.Err())
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				res.BytesOnDisk = written
				return res, domain.NewFatalError(fmt.Errorf("write partial file: %w", werr), "local write failed")
			}
			written += int64(n)
			res.BytesOnDisk = written
			watchdog.Reset(t.stallTimeout)
			if reportGate.Allow() {
				progress.Update(task.Name, written, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			res.BytesOnDisk = written
			if ctx.Err() != nil {
				return res, fmt.Errorf("transfer aborted: %w", ctx.Err())
			}
			return res, domain.NewRecoverableError(fmt.Errorf("read body: %w", rerr), "connection lost")
		}
	}

	if err := out.Close(); err != nil {
		return res, domain.NewFatalError(fmt.Errorf("close partial file: %w", err), "local write failed")
	}
	progress.Update(task.Name, written, total)

	if total != domain.TotalUnknown && written != total {
		// The server closed the stream early. Everything written is
		// flushed, so the partial file remains a valid resume point.
		return res, domain.NewRecoverableError(
			fmt.Errorf("%s: got %d of %d bytes", task.URL, written, total), "incomplete body")
	}
	return res, nil
}

// honorsRange reports whether a 200 response actually starts at the
// requested offset, proven by its Content-Range header.
func honorsRange(resp *http.Response, offset int64) bool {
	var start, end, total int64
	cr := resp.Header.Get("Content-Range")
	if cr == "" {
		return false
	}
	if _, err := fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total); err != nil {
		return false
	}
	return start == offset
}

// contentRangeTotal extracts the full resource size from a Content-Range
// header of the form "bytes start-end/total".
func contentRangeTotal(cr string) (int64, bool) {
	var start, end, total int64
	if cr == "" {
		return 0, false
	}
	if _, err := fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total); err != nil {
		return 0, false
	}
	return total, true
}
