// Package offline persists pending save requests to a durable local log and
// replays them when connectivity returns.
package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"memeforge/internal/config"
	"memeforge/internal/errs"
	"memeforge/internal/retry"
)

// Sender replays a queued operation against the backend.
type Sender interface {
	Invoke(ctx context.Context, name string, body json.RawMessage) error
}

// Item is one pending operation. Body is the raw request payload; its
// embedded idempotencyKey makes re-enqueues replace rather than duplicate.
type Item struct {
	Name       string          `json:"name"`
	Body       json.RawMessage `json:"body"`
	EnqueuedAt int64           `json:"enqueuedAt"`
}

type Queue struct {
	cfg    config.OfflineQueueConfig
	sender Sender
	log    zerolog.Logger
	online func() bool

	mu         sync.Mutex // guards the backing file
	processing atomic.Bool
	now        func() time.Time
}

func New(cfg config.OfflineQueueConfig, sender Sender, log zerolog.Logger) *Queue {
	return &Queue{
		cfg:    cfg,
		sender: sender,
		log:    log.With().Str("component", "offline_queue").Logger(),
		online: func() bool { return true },
		now:    time.Now,
	}
}

// SetOnlineProbe installs the connectivity check consulted before a flush.
func (q *Queue) SetOnlineProbe(probe func() bool) {
	if probe != nil {
		q.online = probe
	}
}

// Enqueue appends an operation, replacing any stored item with the same
// (name, idempotencyKey) so retried saves never duplicate.
func (q *Queue) Enqueue(name string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(errs.KindSerialization, "encode queue item", err)
	}
	item := Item{Name: name, Body: raw, EnqueuedAt: q.now().UnixMilli()}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.loadLocked()
	if err != nil {
		q.log.Warn().Err(err).Msg("queue load failed, starting fresh")
		items = nil
	}
	items = upsert(items, item)
	if err := q.saveLocked(items); err != nil {
		return err
	}
	q.log.Info().Str("op", name).Int("size", len(items)).Msg("enqueued")
	return nil
}

// Len reports the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, _ := q.loadLocked()
	return len(items)
}

// Process flushes the queue head-first. It is re-entrant safe: concurrent
// calls are no-ops while a flush is running. Network-class failures stop the
// flush preserving order; non-network failures drop the item so one
// permanently broken request cannot block the queue.
func (q *Queue) Process(ctx context.Context) {
	if !q.processing.CompareAndSwap(false, true) {
		return
	}
	defer q.processing.Store(false)

	if !q.online() {
		q.log.Debug().Msg("offline, flush deferred")
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		q.mu.Lock()
		items, err := q.loadLocked()
		q.mu.Unlock()
		if err != nil || len(items) == 0 {
			return
		}

		head := items[0]
		sendErr := q.send(ctx, head)
		switch {
		case sendErr == nil:
			q.drop(head)
			q.log.Info().Str("op", head.Name).Int("remaining", len(items)-1).Msg("flushed item")
		case errs.IsNetwork(sendErr):
			q.log.Warn().Err(sendErr).Msg("network failure, flush stopped")
			return
		default:
			// Cannot ever succeed; drop and keep the queue moving.
			q.log.Error().Err(sendErr).Str("op", head.Name).Msg("dropping item after non-network failure")
			q.drop(head)
		}
	}
}

func (q *Queue) send(ctx context.Context, item Item) error {
	return retry.Do(ctx, q.log, "flush "+item.Name, retry.Options{
		MaxAttempts: q.cfg.FlushAttempts,
		BaseDelay:   q.cfg.FlushDelay,
		Backoff:     true,
	}, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, q.cfg.FlushTimeout)
		defer cancel()
		return q.sender.Invoke(attemptCtx, item.Name, item.Body)
	})
}

// drop removes exactly the sent item. An Enqueue that replaced the head's
// payload mid-send must survive the drop and be flushed on the next pass.
func (q *Queue) drop(sent Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, err := q.loadLocked()
	if err != nil {
		return
	}
	for i, item := range items {
		if item.Name == sent.Name && item.EnqueuedAt == sent.EnqueuedAt && bytes.Equal(item.Body, sent.Body) {
			if err := q.saveLocked(append(items[:i], items[i+1:]...)); err != nil {
				q.log.Error().Err(err).Msg("queue rewrite failed")
			}
			return
		}
	}
}

func upsert(items []Item, item Item) []Item {
	key := idempotencyKey(item.Body)
	if key == "" {
		return append(items, item)
	}
	for i, existing := range items {
		if existing.Name == item.Name && idempotencyKey(existing.Body) == key {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func idempotencyKey(body json.RawMessage) string {
	var probe struct {
		IdempotencyKey string `json:"idempotencyKey"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.IdempotencyKey
}

func (q *Queue) loadLocked() ([]Item, error) {
	data, err := os.ReadFile(q.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return items, nil
}

// saveLocked rewrites the log atomically so a crash mid-write cannot corrupt
// the queue; recovery is just re-reading the file.
func (q *Queue) saveLocked(items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	tmp := q.cfg.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(q.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("queue dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	if err := os.Rename(tmp, q.cfg.Path); err != nil {
		return fmt.Errorf("replace queue: %w", err)
	}
	return nil
}
