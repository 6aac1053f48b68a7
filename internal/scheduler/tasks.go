package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskJournalizeBatch = "journalize.batch"

type JournalizeBatchPayload struct {
	WebformID string `json:"webformId"`
}

func NewJournalizeBatchTask(payload JournalizeBatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalizeBatch, data), nil
}

func ParseJournalizeBatchPayload(task *asynq.Task) (JournalizeBatchPayload, error) {
	var payload JournalizeBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return JournalizeBatchPayload{}, err
	}
	return payload, nil
}
