package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gfi-bot/internal/queue"
	"gfi-bot/internal/service"

	"github.com/rs/zerolog"
)

// Pool runs a fixed set of workers draining the job queue.
type Pool struct {
	queue    queue.Queue
	service  *service.Service
	workers  int
	log      zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPool creates a new worker pool
func NewPool(q queue.Queue, svc *service.Service, workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 5 // default number of workers
	}
	return &Pool{
		queue:    q,
		service:  svc,
		workers:  workers,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start starts the worker pool
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop stops the worker pool and waits for in-flight jobs
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.log.Info().Int("worker", id).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Int("worker", id).Msg("Worker stopping")
			return
		case <-p.stopChan:
			p.log.Info().Int("worker", id).Msg("Worker stopping")
			return
		default:
			idle, err := p.processNextJob(ctx)
			if err != nil {
				p.log.Error().Err(err).Int("worker", id).Msg("Failed to process job")
			}
			if idle || err != nil {
				// Small delay to prevent a tight loop on an empty queue.
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				case <-p.stopChan:
					return
				}
			}
		}
	}
}

// processNextJob claims and runs one job. idle reports an empty queue.
func (p *Pool) processNextJob(ctx context.Context) (idle bool, err error) {
	job, err := p.queue.Dequeue()
	if err != nil {
		return false, fmt.Errorf("failed to dequeue job: %w", err)
	}
	if job == nil {
		return true, nil
	}

	p.log.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Int("retry_count", job.RetryCount).
		Msg("Processing job")

	var processErr error
	switch job.Type {
	case queue.JobTypeSync:
		processErr = p.handleSyncJob(ctx, job)
	case queue.JobTypeResync:
		processErr = p.handleResyncJob(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		p.log.Error().
			Err(processErr).
			Str("job_id", job.ID).
			Str("type", string(job.Type)).
			Int("retry_count", job.RetryCount).
			Msg("Job failed")
		if failErr := p.queue.Fail(job.ID, processErr); failErr != nil {
			return false, fmt.Errorf("failed to mark job failed: %w", failErr)
		}
		return false, nil
	}

	p.log.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Msg("Job completed")
	return false, p.queue.Complete(job.ID)
}

// handleSyncJob performs a full-history sync of the payload repository.
func (p *Pool) handleSyncJob(ctx context.Context, job *queue.Job) error {
	var payload queue.SyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal sync payload: %w", err)
	}
	return p.service.SyncRepository(ctx, payload.Owner, payload.Name, time.Time{})
}

// handleResyncJob refreshes a repository incrementally from its last sync.
func (p *Pool) handleResyncJob(ctx context.Context, job *queue.Job) error {
	var payload queue.SyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal resync payload: %w", err)
	}

	since := time.Time{}
	if repo, err := p.service.DB().GetRepository(ctx, payload.Owner, payload.Name); err == nil && repo != nil && repo.LastSyncedAt.Valid {
		since = repo.LastSyncedAt.Time
	}
	return p.service.SyncRepository(ctx, payload.Owner, payload.Name, since)
}
