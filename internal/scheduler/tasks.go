package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskAnalysisCleanup = "analysis.cleanup"

// AnalysisCleanupPayload carries the retention cutoffs for one cleanup run.
// Cutoffs are computed at enqueue time so a delayed task still deletes the
// same window it was scheduled for.
type AnalysisCleanupPayload struct {
	FailedBefore    time.Time `json:"failedBefore"`
	CompletedBefore time.Time `json:"completedBefore"`
}

func NewAnalysisCleanupTask(payload AnalysisCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalysisCleanup, data), nil
}

func ParseAnalysisCleanupPayload(task *asynq.Task) (AnalysisCleanupPayload, error) {
	var payload AnalysisCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AnalysisCleanupPayload{}, err
	}
	return payload, nil
}
