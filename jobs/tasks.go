package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-aging/internal/profile"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueReports carries report generation, which can hold a worker for a while.
	QueueReports = "reports"

	// TaskAgingReportGenerate builds an aging report from a folder or Postgres
	// and writes it to disk.
	TaskAgingReportGenerate = "aging:report:generate"
	// TaskAgingCacheInvalidate bumps the report cache version.
	TaskAgingCacheInvalidate = "aging:cache:invalidate"
)

// AgingReportPayload carries the report profile. An empty as_of is resolved to
// the worker's current date, which lets a scheduled task age "as of today".
type AgingReportPayload struct {
	Profile profile.Profile `json:"profile"`
}

// NewAgingReportTask constructs an Asynq task for the given profile.
func NewAgingReportTask(p profile.Profile) (*asynq.Task, error) {
	data, err := json.Marshal(AgingReportPayload{Profile: p})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAgingReportGenerate, data,
		asynq.Queue(QueueReports),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	), nil
}

// NewAgingCacheInvalidateTask constructs the cache bump task.
func NewAgingCacheInvalidateTask() *asynq.Task {
	return asynq.NewTask(TaskAgingCacheInvalidate, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
