package port

import (
	"time"

	"github.com/ostrel/batchget/internal/domain"
)

// HistoryRepository journals terminal task outcomes per run. It is a
// write-mostly record for later inspection; resume never reads it.
type HistoryRepository interface {
	CreateRun(id string, startedAt time.Time, totalTasks int) error
	RecordResult(runID string, res domain.TaskResult) error
	FinishRun(id string, finishedAt time.Time, completed, failed int) error
}
