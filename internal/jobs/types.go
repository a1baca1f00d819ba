// Package jobs runs slip extraction in the background so a client can upload
// a slip, go away, and poll for the draft later.
package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/slip"
)

type JobType string

// JobTypeExtractSlip is the only job type.
const JobTypeExtractSlip JobType = "extract_slip"

// JobStatus moves pending -> running -> completed | failed. Failed jobs are
// not retried: the client falls back to manual entry.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Finished reports whether s is a terminal status.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SlipJob is one uploaded slip and, once done, its extraction result.
type SlipJob struct {
	JobID string `json:"job_id"`

	// DataURI is the uploaded image. Stores drop it once the job finishes.
	DataURI string `json:"-"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	Result *slip.Result             `json:"result,omitempty"`
	Draft  *domain.TransactionInput `json:"draft,omitempty"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *SlipJob) GetID() string        { return j.JobID }
func (j *SlipJob) GetType() JobType     { return JobTypeExtractSlip }
func (j *SlipJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues slip jobs.
type Publisher interface {
	PublishSlip(ctx context.Context, job *SlipJob) error
	Close() error
}

// Consumer feeds queued jobs to a handler until stopped.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for running jobs, or for ctx.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state so results can be polled.
type JobStore interface {
	SaveJob(ctx context.Context, job *SlipJob) error

	// GetJob returns a domain.ErrNotFound error for unknown ids.
	GetJob(ctx context.Context, jobID string) (*SlipJob, error)

	// ListJobs returns jobs newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SlipJob, error)

	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero values match everything; Limit 0 means no limit.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
