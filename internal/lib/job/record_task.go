package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskRecordChanged is enqueued after every successful record mutation.
	TaskRecordChanged = "record:changed"
)

// Operations carried by RecordChangedPayload.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// RecordChangedPayload describes a mutation. Record is empty for deletes.
type RecordChangedPayload struct {
	Family     string         `json:"family"`
	ID         int64          `json:"id"`
	Operation  string         `json:"operation"`
	Record     map[string]any `json:"record,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewRecordChangedTask builds the asynq task for p.
func NewRecordChangedTask(p RecordChangedPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRecordChanged,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue("default"),
		asynq.Timeout(30*time.Second),
	), nil
}
