package worker

import (
	"context"
	"encoding/json"
	"time"

	"gfi-bot/internal/queue"
	"gfi-bot/internal/service"

	"github.com/rs/zerolog"
)

// SyncWorker periodically scans onboarded repositories and enqueues a
// resync job for each one whose update-config cadence has elapsed. The
// actual syncing happens in the pool.
type SyncWorker struct {
	service         *service.Service
	queue           queue.Queue
	scanInterval    time.Duration
	defaultInterval time.Duration
	log             zerolog.Logger
	stop            chan struct{}
}

// NewSyncWorker creates a new sync worker. scanInterval is how often the
// schedule is evaluated; defaultInterval substitutes for repositories whose
// configured interval is missing or non-positive.
func NewSyncWorker(svc *service.Service, q queue.Queue, scanInterval, defaultInterval time.Duration, log zerolog.Logger) *SyncWorker {
	if scanInterval <= 0 {
		scanInterval = time.Hour
	}
	if defaultInterval <= 0 {
		defaultInterval = 24 * time.Hour
	}
	return &SyncWorker{
		service:         svc,
		queue:           q,
		scanInterval:    scanInterval,
		defaultInterval: defaultInterval,
		log:             log,
		stop:            make(chan struct{}),
	}
}

// Start begins the background scheduling loop
func (w *SyncWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.scanInterval)
	defer ticker.Stop()

	// Initial scan
	w.scanOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.scanOnce(ctx)
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		}
	}
}

// Stop stops the background scheduling loop
func (w *SyncWorker) Stop() {
	close(w.stop)
}

// scanOnce enqueues resync jobs for every repository that is due.
func (w *SyncWorker) scanOnce(ctx context.Context) {
	targets, err := w.service.DB().ListSyncTargets(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to list sync targets")
		return
	}

	now := time.Now().UTC()
	enqueued := 0
	for _, target := range targets {
		if !w.due(target.Interval, target.BeginTime, target.LastSyncedAt.Time, target.LastSyncedAt.Valid, now) {
			continue
		}

		// A due repository whose previous job has not finished yet keeps
		// its place in the queue instead of getting a duplicate.
		pending, err := w.queue.HasPendingSync(target.Owner, target.Name)
		if err != nil {
			w.log.Error().Err(err).
				Str("owner", target.Owner).
				Str("name", target.Name).
				Msg("Failed to check for pending sync jobs")
			continue
		}
		if pending {
			continue
		}

		payload, err := json.Marshal(queue.SyncPayload{Owner: target.Owner, Name: target.Name})
		if err != nil {
			w.log.Error().Err(err).
				Str("owner", target.Owner).
				Str("name", target.Name).
				Msg("Failed to marshal sync payload")
			continue
		}

		job := &queue.Job{Type: queue.JobTypeResync, Payload: payload}
		if err := w.queue.Enqueue(job); err != nil {
			w.log.Error().Err(err).
				Str("owner", target.Owner).
				Str("name", target.Name).
				Msg("Failed to enqueue resync job")
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		w.log.Info().
			Int("enqueued", enqueued).
			Int("targets", len(targets)).
			Msg("Scheduled repository resyncs")
	}
}

// due reports whether a repository should be resynced now. intervalSeconds
// comes from the repository's update config.
func (w *SyncWorker) due(intervalSeconds int, beginTime, lastSynced time.Time, synced bool, now time.Time) bool {
	if now.Before(beginTime) {
		return false
	}

	interval := time.Duration(intervalSeconds) * time.Second
	if interval <= 0 {
		interval = w.defaultInterval
	}

	if !synced {
		return true
	}
	return !now.Before(lastSynced.Add(interval))
}
