package port

// ProgressSink receives per-task download progress for rendering.
// Implementations must tolerate concurrent calls for different task names;
// each task only ever updates its own entry. A total of domain.TotalUnknown
// means the server never reported a content length.
type ProgressSink interface {
	// Start announces a task before its first attempt, with any bytes
	// already on disk from a previous run.
	Start(name string, prior, total int64)

	// Update reports confirmed bytes on disk. bytesDone may drop back when
	// a server ignores a range request and the download restarts from zero.
	Update(name string, bytesDone, total int64)

	// Done marks a task terminal with one of the domain statuses.
	Done(name, status string)
}
