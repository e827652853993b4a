package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ostrel/batchget/internal/domain"
	"github.com/ostrel/batchget/internal/port"
)

// Manager handles partial and destination files on local disk.
type Manager struct {
	downloadDir string
	tempDir     string
}

// Ensure Manager implements port.PartialStore
var _ port.PartialStore = (*Manager)(nil)

// NewManager creates a filesystem manager, creating both directories if
// needed.
func NewManager(downloadDir, tempDir string) (*Manager, error) {
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &Manager{
		downloadDir: downloadDir,
		tempDir:     tempDir,
	}, nil
}

// DownloadDir returns the directory holding finished files
func (m *Manager) DownloadDir() string {
	return m.downloadDir
}

// TempDir returns the directory holding partial files
func (m *Manager) TempDir() string {
	return m.tempDir
}

// PartialSize returns the partial file's size, 0 when it does not exist.
// This size is the sole resume state for a task.
func (m *Manager) PartialSize(partialPath string) (int64, error) {
	info, err := os.Stat(partialPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// DestSize returns the destination file's size, 0 when it does not exist
func (m *Manager) DestSize(destPath string) (int64, error) {
	info, err := os.Stat(destPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// OpenPartial opens the partial file for writing. Append mode preserves
// previously flushed bytes for resume; otherwise the file is truncated.
// Writes go straight to the file descriptor so every completed chunk write
// is a valid resume point.
func (m *Manager) OpenPartial(partialPath string, resume bool) (io.WriteCloser, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(partialPath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open partial file: %w", err)
	}
	return f, nil
}

// Promote renames the byte-complete partial file onto the destination path.
// A rename within one filesystem is atomic for readers of the destination
// directory and overwrites any stale copy left by an earlier run.
func (m *Manager) Promote(partialPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination dir: %w", err)
	}
	if err := os.Rename(partialPath, destPath); err != nil {
		return fmt.Errorf("failed to promote partial file: %w", err)
	}
	return nil
}

// CleanOldPartials removes partial files older than the specified duration.
// Exposed to operators through the -clean-partials flag; never run
// automatically, since old partials are still valid resume points.
func (m *Manager) CleanOldPartials(olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(m.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, domain.PartialSuffix) && info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}
