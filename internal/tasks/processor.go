package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"memeforge/internal/errs"
	"memeforge/internal/models"
	"memeforge/internal/service"
	"memeforge/internal/storage"
)

const (
	sweepBatchSize = 50
	purgeAfterDays = 30
)

// Finalizer resolves a pending preview into a stored public URL.
type Finalizer interface {
	FinalizePreview(ctx context.Context, memeID string) (string, error)
}

// MemeMaintenance is the repository slice the background tasks need.
type MemeMaintenance interface {
	ListPendingPreviews(ctx context.Context, limit int) ([]models.Meme, error)
	PurgeDeleted(ctx context.Context, olderThanDays int) ([]string, error)
}

// ObjectRemover deletes stored preview objects.
type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
}

type Processor struct {
	finalizer Finalizer
	memes     MemeMaintenance
	store     ObjectRemover
	log       zerolog.Logger
}

type TaskPayload struct {
	Type   string `json:"type"`
	MemeID string `json:"memeId"`
}

func NewProcessor(finalizer Finalizer, memes MemeMaintenance, store ObjectRemover, log zerolog.Logger) *Processor {
	return &Processor{
		finalizer: finalizer,
		memes:     memes,
		store:     store,
		log:       log,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case service.TaskFinalizePreview:
		return p.handleFinalize(ctx, payload)
	case service.TaskPurgeDeleted:
		return p.handlePurge(ctx)
	default:
		p.log.Warn().Str("type", payload.Type).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

// handleFinalize finalizes one meme when the payload names it, otherwise
// sweeps the oldest pending previews.
func (p *Processor) handleFinalize(ctx context.Context, payload TaskPayload) error {
	if payload.MemeID != "" {
		return p.finalizeOne(ctx, payload.MemeID)
	}

	pending, err := p.memes.ListPendingPreviews(ctx, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	for _, meme := range pending {
		if err := p.finalizeOne(ctx, meme.ID); err != nil {
			p.log.Warn().Err(err).Str("meme_id", meme.ID).Msg("finalize failed")
		}
	}
	return nil
}

func (p *Processor) finalizeOne(ctx context.Context, memeID string) error {
	url, err := p.finalizer.FinalizePreview(ctx, memeID)
	if err != nil {
		var appErr *errs.Error
		// Still pending is normal; the next sweep picks it up.
		if errors.As(err, &appErr) && appErr.Kind == errs.KindNotFound {
			p.log.Debug().Str("meme_id", memeID).Msg("preview not ready")
			return nil
		}
		return err
	}
	p.log.Info().Str("meme_id", memeID).Str("url", url).Msg("preview finalized")
	return nil
}

func (p *Processor) handlePurge(ctx context.Context) error {
	shortIDs, err := p.memes.PurgeDeleted(ctx, purgeAfterDays)
	if err != nil {
		return fmt.Errorf("purge deleted: %w", err)
	}
	for _, idShort := range shortIDs {
		// The preview may live under any of the exporter's formats.
		for _, key := range storage.PreviewKeys(idShort) {
			if err := p.store.Remove(ctx, key); err != nil {
				p.log.Warn().Err(err).Str("key", key).Msg("remove preview failed")
			}
		}
	}
	if len(shortIDs) > 0 {
		p.log.Info().Int("count", len(shortIDs)).Msg("purged deleted memes")
	}
	return nil
}
