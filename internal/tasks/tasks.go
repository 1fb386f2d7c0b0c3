package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypePurgeExpiredSessions = "session:purge_expired"
)

// PurgePayload is the payload of a purge task
type PurgePayload struct {
	// Before is the cutoff; sessions expiring at or before it are removed
	Before time.Time `json:"before"`
}

// NewPurgeExpiredSessionsTask creates a task that removes sessions expired at before
func NewPurgeExpiredSessionsTask(before time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(PurgePayload{Before: before.UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypePurgeExpiredSessions, payload, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

// ParsePurgePayload parses task payload from Asynq task
func ParsePurgePayload(task *asynq.Task) (PurgePayload, error) {
	var payload PurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
