package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"memeforge/internal/service"
)

// Scheduler enqueues recurring maintenance work onto the task stream. The
// worker binary consumes it; the api binary only produces.
type Scheduler struct {
	cron  *cron.Cron
	queue *redis.Client
	log   zerolog.Logger
}

func NewScheduler(queue *redis.Client, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		queue: queue,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	// Sweep for memes saved without a finalized preview.
	if _, err := s.cron.AddFunc("0 */5 * * * *", s.enqueuePreviewSweep); err != nil {
		return err
	}
	// Purge soft-deleted rows past retention.
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.enqueuePurge); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	_, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		s.cron.Stop()
		cancel()
	}()
	return cancel
}

func (s *Scheduler) enqueuePreviewSweep() {
	if err := s.enqueueTask(map[string]any{
		"type": service.TaskFinalizePreview,
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue preview sweep failed")
	}
}

func (s *Scheduler) enqueuePurge() {
	if err := s.enqueueTask(map[string]any{
		"type": service.TaskPurgeDeleted,
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue purge failed")
	}
}

func (s *Scheduler) enqueueTask(payload map[string]any) error {
	if s.queue == nil {
		return nil
	}
	_, err := s.queue.XAdd(context.Background(), &redis.XAddArgs{
		Stream: service.TaskStream,
		Values: payload,
	}).Result()
	return err
}
