package queue

import (
	"context"
	"fmt"
	"testing"

	"gfi-bot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) *PostgresQueue {
	ctx := context.Background()
	pg, err := testutil.NewTestPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pg.Close(ctx))
	})

	q, err := NewPostgresQueue(pg.DB)
	require.NoError(t, err)
	return q
}

func syncJob(owner, name string) *Job {
	return &Job{
		Type:    JobTypeResync,
		Payload: []byte(fmt.Sprintf(`{"owner":%q,"name":%q}`, owner, name)),
	}
}

// retireBackoff marks a failed job's retry window as already elapsed so the
// test does not have to sleep through the backoff.
func retireBackoff(t *testing.T, q *PostgresQueue, jobID string) {
	t.Helper()
	_, err := q.db.Exec(
		`UPDATE jobs SET next_retry_at = CURRENT_TIMESTAMP - interval '1 second' WHERE id = $1`,
		jobID,
	)
	require.NoError(t, err)
}

func TestFailedJobsAreRetried(t *testing.T) {
	q := setupQueue(t)

	job := syncJob("octocat", "Hello-World")
	require.NoError(t, q.Enqueue(job))

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)

	require.NoError(t, q.Fail(got.ID, fmt.Errorf("upstream unavailable")))

	// The backoff window has not elapsed yet.
	got, err = q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, got)

	retireBackoff(t, q, job.ID)

	got, err = q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, 1, got.RetryCount)
}

func TestFailedJobsStopAfterMaxRetries(t *testing.T) {
	q := setupQueue(t)

	job := syncJob("octocat", "Hello-World")
	job.MaxRetries = 2
	require.NoError(t, q.Enqueue(job))

	for attempt := 0; attempt < 2; attempt++ {
		got, err := q.Dequeue()
		require.NoError(t, err)
		require.NotNil(t, got, "attempt %d", attempt)
		require.NoError(t, q.Fail(got.ID, fmt.Errorf("still broken")))
		retireBackoff(t, q, job.ID)
	}

	// retry_count has reached max_retries; the job stays failed.
	got, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, got)

	status, err := q.GetStatus(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, status)
}

func TestHasPendingSync(t *testing.T) {
	q := setupQueue(t)

	job := syncJob("octocat", "Hello-World")
	require.NoError(t, q.Enqueue(job))

	pending, err := q.HasPendingSync("octocat", "Hello-World")
	require.NoError(t, err)
	assert.True(t, pending)

	pending, err = q.HasPendingSync("octocat", "Spoon-Knife")
	require.NoError(t, err)
	assert.False(t, pending)

	// Running jobs still count as in flight.
	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)

	pending, err = q.HasPendingSync("octocat", "Hello-World")
	require.NoError(t, err)
	assert.True(t, pending)

	// A failed job with retries left is going to run again.
	require.NoError(t, q.Fail(got.ID, fmt.Errorf("transient")))
	pending, err = q.HasPendingSync("octocat", "Hello-World")
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, q.Complete(got.ID))
	pending, err = q.HasPendingSync("octocat", "Hello-World")
	require.NoError(t, err)
	assert.False(t, pending)
}
