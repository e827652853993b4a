package progress

import (
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/ostrel/batchget/internal/domain"
	"github.com/ostrel/batchget/internal/port"
)

// MultiBar renders one progress bar per task, like a stack of terminal
// download meters. Safe for concurrent updates from different tasks.
type MultiBar struct {
	p *mpb.Progress

	mu   sync.Mutex
	bars map[string]*mpb.Bar
}

// Ensure MultiBar implements port.ProgressSink
var _ port.ProgressSink = (*MultiBar)(nil)

// NewMultiBar creates a console progress renderer writing to out.
func NewMultiBar(out io.Writer) *MultiBar {
	return &MultiBar{
		p: mpb.New(
			mpb.WithOutput(out),
			mpb.WithWidth(64),
			mpb.WithRefreshRate(180*time.Millisecond),
		),
		bars: make(map[string]*mpb.Bar),
	}
}

// Start registers a bar for the task, pre-filled with bytes already on disk.
func (m *MultiBar) Start(name string, prior, total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bars[name]; ok {
		return
	}

	barTotal := total
	if total == domain.TotalUnknown {
		barTotal = 0
	}
	bar := m.p.New(barTotal,
		mpb.BarStyle(),
		mpb.PrependDecorators(
			decor.Name(name, decor.WCSyncSpaceR),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	if prior > 0 {
		bar.IncrInt64(prior)
	}
	m.bars[name] = bar
}

// Update sets the task's confirmed byte count. SetCurrent handles the
// restart-from-zero case when a server ignored a range request.
func (m *MultiBar) Update(name string, bytesDone, total int64) {
	m.mu.Lock()
	bar := m.bars[name]
	m.mu.Unlock()
	if bar == nil {
		return
	}
	if total != domain.TotalUnknown {
		bar.SetTotal(total, false)
	}
	bar.SetCurrent(bytesDone)
}

// Done finishes or aborts the task's bar.
func (m *MultiBar) Done(name, status string) {
	m.mu.Lock()
	bar := m.bars[name]
	m.mu.Unlock()
	if bar == nil {
		return
	}
	if status == domain.StatusCompleted {
		bar.SetTotal(-1, true)
	} else {
		bar.Abort(false)
	}
}

// Wait blocks until every bar has rendered its final state.
func (m *MultiBar) Wait() {
	m.p.Wait()
}
