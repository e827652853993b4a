package progress

import "github.com/ostrel/batchget/internal/port"

// Nop discards all progress updates. Used for non-interactive runs.
type Nop struct{}

var _ port.ProgressSink = Nop{}

func (Nop) Start(string, int64, int64)  {}
func (Nop) Update(string, int64, int64) {}
func (Nop) Done(string, string)         {}
