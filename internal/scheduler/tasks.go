package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskLeadSyncBatch = "leadsync.batch"

// LeadSyncBatchPayload identifies one scheduled batch run. RequestedAt
// marks when the tick fired, which distinguishes delayed deliveries in
// worker logs.
type LeadSyncBatchPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

func NewLeadSyncBatchTask(payload LeadSyncBatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadSyncBatch, data), nil
}

func ParseLeadSyncBatchPayload(task *asynq.Task) (LeadSyncBatchPayload, error) {
	var payload LeadSyncBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadSyncBatchPayload{}, err
	}
	return payload, nil
}
