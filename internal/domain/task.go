package domain

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
)

// PartialSuffix is appended to a task's file name inside the temp directory.
const PartialSuffix = ".part"

// Terminal task statuses
const (
	StatusCompleted       = "completed"
	StatusFailedExhausted = "failed_exhausted"
	StatusFailedFatal     = "failed_fatal"
	StatusAborted         = "aborted"
)

// TotalUnknown marks an expected size the server never reported.
const TotalUnknown int64 = -1

// DownloadTask identifies one file to fetch. Immutable once built.
type DownloadTask struct {
	URL         string
	Name        string
	DestPath    string
	PartialPath string
}

// NewTask derives a task from a source URL. The file name comes from the last
// URL path segment; the finished file lives in downloadDir and the partial
// file in tempDir. A URL that cannot yield a task is a fatal failure.
func NewTask(rawURL, downloadDir, tempDir string) (DownloadTask, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DownloadTask{}, NewFatalError(fmt.Errorf("parse url %q: %w", rawURL, err), "malformed URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return DownloadTask{}, NewFatalError(fmt.Errorf("unsupported scheme %q in %q", u.Scheme, rawURL), "malformed URL")
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return DownloadTask{}, NewFatalError(fmt.Errorf("no file name in url %q", rawURL), "malformed URL")
	}
	return DownloadTask{
		URL:         rawURL,
		Name:        name,
		DestPath:    filepath.Join(downloadDir, name),
		PartialPath: filepath.Join(tempDir, name+PartialSuffix),
	}, nil
}

// TaskResult is the final per-task outcome of a run.
type TaskResult struct {
	Task       DownloadTask
	Status     string
	Attempts   int
	BytesDone  int64
	TotalBytes int64
	Err        error
}

// Succeeded reports whether the task reached its destination file.
func (r TaskResult) Succeeded() bool {
	return r.Status == StatusCompleted
}

// Reason returns a human-readable failure reason, empty on success.
func (r TaskResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	if reason := FailureReason(r.Err); reason != "" {
		return reason
	}
	return r.Err.Error()
}
