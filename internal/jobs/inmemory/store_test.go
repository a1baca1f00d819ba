package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-ai/internal/domain"
	"github.com/dvloznov/ledger-ai/internal/jobs"
)

func TestStore_SaveGetList(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveJob(ctx, &jobs.SlipJob{
			JobID:     id,
			Status:    jobs.JobStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.Error(t, s.SaveJob(ctx, &jobs.SlipJob{}))

	require.NoError(t, s.UpdateJobStatus(ctx, "b", jobs.JobStatusFailed, "model error"))

	got, err := s.GetJob(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "model error", got.Error)

	got.Status = jobs.JobStatusCompleted
	again, _ := s.GetJob(ctx, "b")
	assert.Equal(t, jobs.JobStatusFailed, again.Status, "GetJob returns a copy")

	all, err := s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].JobID)

	pending, err := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending, Limit: 1})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].JobID)

	page, err := s.ListJobs(ctx, jobs.JobFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = s.GetJob(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""), domain.ErrNotFound))
}

func TestStore_RetentionEvictsFinishedJobs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithRetention(time.Hour), WithStoreClock(func() time.Time { return now }))

	old := now.Add(-2 * time.Hour)
	require.NoError(t, s.SaveJob(ctx, &jobs.SlipJob{JobID: "old", Status: jobs.JobStatusCompleted, CreatedAt: old, CompletedAt: &old}))
	require.NoError(t, s.SaveJob(ctx, &jobs.SlipJob{JobID: "stuck", Status: jobs.JobStatusRunning, CreatedAt: old}))
	require.NoError(t, s.SaveJob(ctx, &jobs.SlipJob{JobID: "fresh", Status: jobs.JobStatusPending, CreatedAt: now, DataURI: "data:image/png;base64,AAAA"}))

	_, err := s.GetJob(ctx, "old")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = s.GetJob(ctx, "stuck")
	assert.NoError(t, err, "unfinished jobs are never evicted")

	got, err := s.GetJob(ctx, "fresh")
	require.NoError(t, err)
	assert.NotEmpty(t, got.DataURI)

	require.NoError(t, s.UpdateJobStatus(ctx, "fresh", jobs.JobStatusCompleted, ""))
	got, err = s.GetJob(ctx, "fresh")
	require.NoError(t, err)
	assert.Empty(t, got.DataURI, "finished jobs drop the image")
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, now, *got.CompletedAt)
}
