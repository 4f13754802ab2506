package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskExpiryScan finds memberships and grants whose windows close soon.
	TaskExpiryScan = "raps:expiry_scan"
	// TaskCacheWarmup pre-resolves permissions for active members.
	TaskCacheWarmup = "raps:cache_warmup"
	// TaskAuditRetention removes audit rows past the retention period.
	TaskAuditRetention = "raps:audit_retention"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: deliver through SMTP once the relay is provisioned.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// ExpiryScanPayload bounds the scan window in days.
type ExpiryScanPayload struct {
	HorizonDays int `json:"horizon_days"`
}

// NewExpiryScanTask constructs an expiry scan task.
func NewExpiryScanTask(payload ExpiryScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, data), nil
}

// NewCacheWarmupTask constructs a cache warmup task.
func NewCacheWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskCacheWarmup, nil)
}

// AuditRetentionPayload carries the retention period in days.
type AuditRetentionPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditRetentionTask constructs a retention sweep task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
