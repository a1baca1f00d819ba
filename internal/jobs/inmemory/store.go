package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/jobs"
)

// DefaultRetention is how long finished jobs stay readable.
const DefaultRetention = time.Hour

// Store is an in-memory JobStore. Jobs are lost on restart.
//
// Finished jobs drop their slip image and are evicted once they are older
// than the retention period, so an idle server does not hold every upload.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*jobs.SlipJob
	retention time.Duration
	now       func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetention overrides DefaultRetention. Zero or negative keeps finished
// jobs forever.
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) { s.retention = d }
}

// WithStoreClock replaces time.Now for eviction.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty job store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs:      make(map[string]*jobs.SlipJob),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveJob stores a copy of job and evicts expired finished jobs.
func (s *Store) SaveJob(ctx context.Context, job *jobs.SlipJob) error {
	if job.JobID == "" {
		return domain.Validationf("job id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	if jobCopy.Status.Finished() {
		jobCopy.DataURI = ""
	}
	s.jobs[job.JobID] = &jobCopy
	s.evictLocked()

	return nil
}

// evictLocked drops finished jobs past retention. Must be called with s.mu held.
func (s *Store) evictLocked() {
	if s.retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	for id, job := range s.jobs {
		if job.Status.Finished() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

// GetJob returns a copy of the job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.SlipJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, domain.NotFoundf("job %q", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns copies of the matching jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.SlipJob, error) {
	s.mu.RLock()
	matched := lo.FilterMap(lo.Values(s.jobs), func(job *jobs.SlipJob, _ int) (*jobs.SlipJob, bool) {
		if filter.Status != "" && job.Status != filter.Status {
			return nil, false
		}
		jobCopy := *job
		return &jobCopy, true
	})
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return []*jobs.SlipJob{}, nil
	}
	matched = matched[offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// UpdateJobStatus sets the status and, when non-empty, the error message.
// Moving a job to a finished status stamps CompletedAt if unset.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return domain.NotFoundf("job %q", jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if status.Finished() {
		job.DataURI = ""
		if job.CompletedAt == nil {
			now := s.now()
			job.CompletedAt = &now
		}
	}

	return nil
}

var _ jobs.JobStore = (*Store)(nil)
