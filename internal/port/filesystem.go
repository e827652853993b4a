package port

import "io"

// PartialStore owns a task's partial and destination files on disk. Resume
// state is derived entirely from the partial file's size; there is no
// separate metadata journal.
type PartialStore interface {
	// PartialSize returns the partial file's current size, 0 when absent.
	PartialSize(partialPath string) (int64, error)

	// OpenPartial opens the partial file for writing. With resume true the
	// file is opened append-only, preserving previously flushed bytes;
	// otherwise it is truncated.
	OpenPartial(partialPath string, resume bool) (io.WriteCloser, error)

	// DestSize returns the destination file's size, 0 when absent.
	DestSize(destPath string) (int64, error)

	// Promote atomically moves a byte-complete partial file onto destPath,
	// overwriting any stale copy from an earlier run.
	Promote(partialPath, destPath string) error
}
