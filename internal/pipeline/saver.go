// Package pipeline drives the export-and-save flow: rasterize the canvas,
// derive a deterministic idempotency key, and persist through the backend
// with retries and an offline fallback.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"memeforge/internal/client"
	"memeforge/internal/config"
	"memeforge/internal/errs"
	"memeforge/internal/export"
	"memeforge/internal/layer"
	"memeforge/internal/retry"
)

// Status reports how a save attempt ended.
type Status string

const (
	// StatusSaved means the backend acknowledged the meme.
	StatusSaved Status = "saved"
	// StatusQueued means the request was written to the offline queue and
	// will be replayed on the next flush.
	StatusQueued Status = "queued"
)

// Input is everything needed to persist one composition.
type Input struct {
	TelegramUserID int64
	TemplateKey    string
	Layers         []layer.Layer
}

// Outcome is the result of Save: either the stored meme or a queued marker.
type Outcome struct {
	Status         Status
	IdempotencyKey string
	MemeID         string
	IDShort        string
	URL            string
}

// Backend is the slice of the API client the saver needs.
type Backend interface {
	SaveMeme(ctx context.Context, req client.SaveRequest) (client.SaveResponse, error)
}

// Enqueuer defers a request for later replay.
type Enqueuer interface {
	Enqueue(name string, body any) error
}

// Saver serializes saves per session and deduplicates identical payloads
// in flight via their idempotency key.
type Saver struct {
	cfg      config.SaveConfig
	log      zerolog.Logger
	exporter *export.Exporter
	backend  Backend
	queue    Enqueuer

	group singleflight.Group

	mu       sync.Mutex
	inFlight map[string]bool // session id -> save running
}

func NewSaver(cfg config.SaveConfig, exporter *export.Exporter, backend Backend, queue Enqueuer, log zerolog.Logger) *Saver {
	return &Saver{
		cfg:      cfg,
		log:      log.With().Str("component", "saver").Logger(),
		exporter: exporter,
		backend:  backend,
		queue:    queue,
		inFlight: make(map[string]bool),
	}
}

// Save exports the canvas, hashes the canonical payload and sends it to the
// backend. A second call for the same session while one is running is
// rejected; identical payloads from different sessions share one flight.
func (s *Saver) Save(ctx context.Context, sessionID string, src export.Rasterizer, in Input) (*Outcome, error) {
	if !s.acquire(sessionID) {
		return nil, errs.New(errs.KindValidation, "save already in progress")
	}
	defer s.release(sessionID)

	if err := layer.ValidateAll(in.Layers); err != nil {
		return nil, err
	}

	layers := layer.CompactContent(layer.SanitizeAll(in.Layers))

	result, err := s.exporter.Export(ctx, src)
	if err != nil {
		return nil, errs.Wrap(errs.KindExport, "export canvas", err)
	}
	image := result.DataURL()

	key, err := IdempotencyKey(in.TelegramUserID, in.TemplateKey, layers, image)
	if err != nil {
		return nil, err
	}

	req := client.SaveRequest{
		TelegramUserID: in.TelegramUserID,
		TemplateKey:    in.TemplateKey,
		LayersPayload:  layers,
		Image:          image,
		IdempotencyKey: key,
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.send(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	out := v.(*Outcome)
	if shared {
		s.log.Debug().Str("key", key).Msg("save deduplicated in flight")
	}
	return out, nil
}

func (s *Saver) send(ctx context.Context, req client.SaveRequest) (*Outcome, error) {
	var resp client.SaveResponse
	err := retry.Do(ctx, s.log, "save meme", retry.Options{
		MaxAttempts: s.cfg.MaxAttempts,
		BaseDelay:   s.cfg.BaseDelay,
		Backoff:     true,
	}, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		var sendErr error
		resp, sendErr = s.backend.SaveMeme(attemptCtx, req)
		return sendErr
	})
	if err == nil {
		out := &Outcome{
			Status:         StatusSaved,
			IdempotencyKey: req.IdempotencyKey,
			MemeID:         resp.MemeID,
			IDShort:        resp.IDShort,
		}
		if resp.URL != nil {
			out.URL = *resp.URL
		}
		return out, nil
	}

	if errs.IsNetwork(err) {
		if qErr := s.queue.Enqueue(client.OpSaveMeme, req); qErr != nil {
			s.log.Error().Err(qErr).Msg("offline enqueue failed")
			return nil, err
		}
		s.log.Warn().Str("key", req.IdempotencyKey).Msg("backend unreachable, save queued")
		return &Outcome{Status: StatusQueued, IdempotencyKey: req.IdempotencyKey}, nil
	}
	return nil, err
}

func (s *Saver) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sessionID] {
		return false
	}
	s.inFlight[sessionID] = true
	return true
}

func (s *Saver) release(sessionID string) {
	s.mu.Lock()
	delete(s.inFlight, sessionID)
	s.mu.Unlock()
}

// IdempotencyKey hashes the canonical request payload. The same user saving
// the same template, layers and image always produces the same key, so
// retries and replays collapse server-side.
func IdempotencyKey(telegramUserID int64, templateKey string, layers []layer.Layer, image string) (string, error) {
	canonical := struct {
		UID         int64         `json:"uid"`
		TemplateKey string        `json:"templateKey"`
		Layers      []layer.Layer `json:"layers"`
		Image       string        `json:"image"`
	}{telegramUserID, templateKey, layers, image}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", errs.Wrap(errs.KindSerialization, "encode idempotency payload", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
