package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-ai/internal/jobs"
)

// ErrQueueClosed is returned by PublishSlip and Start after Stop.
var ErrQueueClosed = errors.New("job queue is closed")

// Queue is a channel-backed Publisher and Consumer. Jobs only live as long as
// the process, so the API server runs the workers itself.
type Queue struct {
	pending chan *jobs.SlipJob
	done    chan struct{}
	wg      sync.WaitGroup
	store   jobs.JobStore
	workers int
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding up to bufferSize pending jobs, drained by
// workers goroutines once Start is called. store may be nil.
func NewQueue(bufferSize, workers int, store jobs.JobStore, log zerolog.Logger) *Queue {
	return &Queue{
		pending: make(chan *jobs.SlipJob, bufferSize),
		done:    make(chan struct{}),
		store:   store,
		workers: max(workers, 1),
		log:     log,
	}
}

// PublishSlip assigns an id if needed, records the job as pending and hands
// it to the workers. It blocks while the buffer is full.
func (q *Queue) PublishSlip(ctx context.Context, job *jobs.SlipJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = jobs.JobStatusPending

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return errors.Wrapf(err, "PublishSlip: save job %s", job.JobID)
		}
	}

	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Start launches the workers. Each runs handler for one job at a time until
// ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case job := <-q.pending:
					q.run(ctx, job, handler)
				}
			}
		}()
	}

	q.log.Info().Int("workers", q.workers).Msg("Job queue started")
	return nil
}

func (q *Queue) run(ctx context.Context, job *jobs.SlipJob, handler jobs.JobHandler) {
	started := time.Now()
	job.StartedAt = &started
	job.Status = jobs.JobStatusRunning
	q.save(ctx, job)

	err := handler(ctx, job)

	finished := time.Now()
	job.CompletedAt = &finished

	if err != nil {
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.log.Debug().Str("job_id", job.JobID).Dur("duration", finished.Sub(started)).Msg("Job completed")
	}

	q.save(ctx, job)
}

// save records job state. A failed save only costs pollers a stale status.
func (q *Queue) save(ctx context.Context, job *jobs.SlipJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop refuses new jobs and waits for running ones, or for ctx.
// Pending jobs that no worker picked up are dropped.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
