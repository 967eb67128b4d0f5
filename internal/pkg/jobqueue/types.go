package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeLedgerSync JobType = "ledger_sync"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// LedgerSyncJobPayload carries one ledger sync task
type LedgerSyncJobPayload struct {
	Op         string `json:"op"`
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	UserID     uint   `json:"user_id"`
}

// NewLedgerSyncJobPayload builds the payload for task
func NewLedgerSyncJobPayload(task ledgersync.Task) LedgerSyncJobPayload {
	return LedgerSyncJobPayload{
		Op:         string(task.Op),
		EntityType: task.EntityType,
		EntityID:   task.EntityID,
		UserID:     task.UserID,
	}
}

// Task converts the payload back into a ledger task
func (p LedgerSyncJobPayload) Task() ledgersync.Task {
	return ledgersync.Task{
		Op:         ledgersync.Op(p.Op),
		EntityType: p.EntityType,
		EntityID:   p.EntityID,
		UserID:     p.UserID,
	}
}

// ToMap converts the payload to a map for storage
func (p LedgerSyncJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"op":          p.Op,
		"entity_type": p.EntityType,
		"entity_id":   p.EntityID,
		"user_id":     p.UserID,
	}
}

// LedgerSyncJobPayloadFromMap creates a payload from a map
func LedgerSyncJobPayloadFromMap(data map[string]interface{}) (*LedgerSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload LedgerSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried automatically
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// ResetForManualRetry puts a failed job back into its initial state
func (j *Job) ResetForManualRetry() {
	j.Status = JobStatusPending
	j.UpdatedAt = time.Now()
	j.ProcessedAt = nil
	j.RetryCount = 0
}
