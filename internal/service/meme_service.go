package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"memeforge/internal/config"
	"memeforge/internal/errs"
	"memeforge/internal/layer"
	"memeforge/internal/media/sniffer"
	"memeforge/internal/models"
	"memeforge/internal/repository"
	"memeforge/internal/storage"
)

const (
	// TaskStream carries background work for the worker binary.
	TaskStream = "memes:tasks"

	TaskFinalizePreview = "finalize_preview"
	TaskPurgeDeleted    = "purge_deleted"

	memeListLimit    = 50
	shortIDAttempts  = 8
	idempotencyTTL   = 24 * time.Hour
	previewProbeWait = 5 * time.Second

	// maxImageChars bounds the base64 data URL carried in a save request.
	maxImageChars = 10_000_000

	previewStashTTL = 24 * time.Hour
)

type MemeStore interface {
	Create(ctx context.Context, meme models.Meme) error
	GetByID(ctx context.Context, id string) (models.Meme, error)
	GetByIdempotencyKey(ctx context.Context, ownerID, key string) (models.Meme, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Meme, error)
	SoftDelete(ctx context.Context, id string) error
	UpdateImageURL(ctx context.Context, id, imageURL string, status models.MemeStatus) error
	ShortIDExists(ctx context.Context, idShort string) (bool, error)
}

type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (models.User, error)
	Upsert(ctx context.Context, user models.User) (models.User, error)
}

type PreviewStore interface {
	UploadPreview(ctx context.Context, idShort string, data []byte, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

type SaveMemeInput struct {
	TelegramUserID int64
	FirstName      string
	TemplateKey    string
	Layers         []layer.Layer
	Image          string
	IdempotencyKey string
}

type SaveMemeResult struct {
	Meme     models.Meme
	URL      *string
	Replayed bool
}

type MemeService struct {
	memes MemeStore
	users UserStore
	store PreviewStore
	rdb   *redis.Client
	cfg   *config.AppConfig
	log   zerolog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewMemeService(memes MemeStore, users UserStore, store PreviewStore, rdb *redis.Client, cfg *config.AppConfig, log zerolog.Logger) *MemeService {
	return &MemeService{
		memes: memes,
		users: users,
		store: store,
		rdb:   rdb,
		cfg:   cfg,
		log:   log,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SaveMeme persists a composition exactly once per idempotency key. Replays
// of an already stored key return the existing row untouched, whether the
// first write landed milliseconds or days ago.
func (s *MemeService) SaveMeme(ctx context.Context, input SaveMemeInput) (SaveMemeResult, error) {
	if input.TelegramUserID <= 0 {
		return SaveMemeResult{}, errs.Validation("telegramUserId is required")
	}
	if input.TemplateKey == "" {
		return SaveMemeResult{}, errs.Validation("templateKey is required")
	}
	if len(input.Image) > maxImageChars {
		return SaveMemeResult{}, errs.Validation("image exceeds the 10MB payload limit")
	}
	if err := layer.ValidateAll(input.Layers); err != nil {
		return SaveMemeResult{}, err
	}
	layers := layer.CompactContent(layer.SanitizeAll(input.Layers))

	user, err := s.users.Upsert(ctx, models.User{
		ID:         uuid.NewString(),
		TelegramID: input.TelegramUserID,
		FirstName:  input.FirstName,
	})
	if err != nil {
		return SaveMemeResult{}, fmt.Errorf("resolve user: %w", err)
	}

	// A save without an idempotency key is never deduplicated.
	if input.IdempotencyKey != "" {
		if existing, ok := s.replay(ctx, user.ID, input.IdempotencyKey); ok {
			return s.result(existing, true), nil
		}
	}

	payload, err := json.Marshal(layers)
	if err != nil {
		return SaveMemeResult{}, errs.Wrap(errs.KindSerialization, "encode layers", err)
	}

	meme := models.Meme{
		ID:             uuid.NewString(),
		OwnerID:        user.ID,
		TemplateKey:    input.TemplateKey,
		LayersPayload:  payload,
		IdempotencyKey: input.IdempotencyKey,
		Status:         models.MemeStatusPending,
	}

	meme.IDShort, err = s.newShortID(ctx)
	if err != nil {
		return SaveMemeResult{}, err
	}

	if input.Image != "" {
		url, upErr := s.storePreview(ctx, meme.IDShort, input.Image)
		if upErr != nil {
			// The meme row is still written; the finalize task re-uploads
			// from the stash once storage recovers.
			s.log.Warn().Err(upErr).Str("id_short", meme.IDShort).Msg("preview upload failed")
			s.stashPreview(ctx, meme.ID, input.Image)
		} else {
			meme.ImageURL = &url
			meme.Status = models.MemeStatusReady
		}
	}

	if err := s.memes.Create(ctx, meme); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) && input.IdempotencyKey != "" {
			// Lost the race to an identical concurrent save.
			if existing, ok := s.replay(ctx, user.ID, input.IdempotencyKey); ok {
				return s.result(existing, true), nil
			}
		}
		return SaveMemeResult{}, fmt.Errorf("store meme: %w", err)
	}

	s.cacheResult(ctx, meme)
	if meme.Status == models.MemeStatusPending {
		s.enqueueTask(ctx, TaskFinalizePreview, meme.ID)
	}
	return s.result(meme, false), nil
}

// replay looks for an earlier save with the same key, redis first, then the
// database.
func (s *MemeService) replay(ctx context.Context, ownerID, key string) (models.Meme, bool) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, idempotencyCacheKey(ownerID, key)).Bytes()
		if err == nil {
			var meme models.Meme
			if json.Unmarshal(data, &meme) == nil {
				return meme, true
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("idempotency cache read failed")
		}
	}

	meme, err := s.memes.GetByIdempotencyKey(ctx, ownerID, key)
	if err != nil {
		if !errors.Is(err, repository.ErrMemeNotFound) {
			s.log.Warn().Err(err).Msg("idempotency lookup failed")
		}
		return models.Meme{}, false
	}
	return meme, true
}

func (s *MemeService) cacheResult(ctx context.Context, meme models.Meme) {
	if s.rdb == nil || meme.IdempotencyKey == "" {
		return
	}
	data, err := json.Marshal(meme)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, idempotencyCacheKey(meme.OwnerID, meme.IdempotencyKey), data, idempotencyTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("idempotency cache write failed")
	}
}

func idempotencyCacheKey(ownerID, key string) string {
	return "idem:" + ownerID + ":" + key
}

func (s *MemeService) storePreview(ctx context.Context, idShort, image string) (string, error) {
	data, detected, err := sniffer.DecodeDataURL(image)
	if err != nil {
		return "", errs.Wrap(errs.KindValidation, "invalid preview image", err)
	}
	url, err := s.store.UploadPreview(ctx, idShort, data, detected.MIME)
	if err != nil {
		return "", err
	}
	return url, nil
}

// stashPreview keeps the raw data URL of a failed upload so the finalize
// task can regenerate the preview object without the client resending it.
func (s *MemeService) stashPreview(ctx context.Context, memeID, image string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, previewStashKey(memeID), image, previewStashTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("preview stash write failed")
	}
}

func previewStashKey(memeID string) string {
	return "preview:raw:" + memeID
}

// newShortID draws random 4 to 6 digit ids until one is free.
func (s *MemeService) newShortID(ctx context.Context) (string, error) {
	for i := 0; i < shortIDAttempts; i++ {
		s.randMu.Lock()
		n := s.rand.Intn(999999-1000+1) + 1000
		s.randMu.Unlock()

		candidate := fmt.Sprintf("%d", n)
		exists, err := s.memes.ShortIDExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("short id lookup: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", errs.New(errs.KindInternal, "could not allocate short id")
}

// GetUserMemes lists the caller's most recent memes. An unknown user is not
// an error, just an empty gallery.
func (s *MemeService) GetUserMemes(ctx context.Context, telegramID int64) ([]models.Meme, error) {
	if telegramID <= 0 {
		return nil, errs.Validation("telegramUserId is required")
	}
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return s.memes.ListByOwner(ctx, user.ID, memeListLimit)
}

// DeleteMeme soft-deletes, owner only.
func (s *MemeService) DeleteMeme(ctx context.Context, memeID string, telegramID int64) error {
	meme, err := s.memes.GetByID(ctx, memeID)
	if err != nil {
		if errors.Is(err, repository.ErrMemeNotFound) {
			return errs.New(errs.KindNotFound, "meme not found")
		}
		return err
	}

	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errs.New(errs.KindOwnership, "not the owner")
		}
		return err
	}
	if meme.OwnerID != user.ID {
		return errs.New(errs.KindOwnership, "not the owner")
	}

	if err := s.memes.SoftDelete(ctx, memeID); err != nil {
		return err
	}
	// A replay of the original save must not resurrect the deleted meme
	// from the cache.
	if s.rdb != nil && meme.IdempotencyKey != "" {
		if err := s.rdb.Del(ctx, idempotencyCacheKey(meme.OwnerID, meme.IdempotencyKey)).Err(); err != nil {
			s.log.Warn().Err(err).Msg("idempotency cache invalidation failed")
		}
	}
	return nil
}

// FinalizePreview checks whether the preview object landed in storage and,
// if so, records the public URL on the meme.
func (s *MemeService) FinalizePreview(ctx context.Context, memeID string) (string, error) {
	meme, err := s.memes.GetByID(ctx, memeID)
	if err != nil {
		if errors.Is(err, repository.ErrMemeNotFound) {
			return "", errs.New(errs.KindNotFound, "meme not found")
		}
		return "", err
	}
	if meme.ImageURL != nil && meme.Status == models.MemeStatusReady {
		return *meme.ImageURL, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, previewProbeWait)
	defer cancel()

	// The object is keyed by the MIME of the upload, so probe every format
	// the exporter produces.
	for _, key := range storage.PreviewKeys(meme.IDShort) {
		exists, err := s.store.Exists(probeCtx, key)
		if err != nil {
			return "", errs.Wrap(errs.KindNetwork, "probe preview", err)
		}
		if !exists {
			continue
		}
		url := s.store.PublicURL(key)
		if err := s.memes.UpdateImageURL(ctx, meme.ID, url, models.MemeStatusReady); err != nil {
			return "", err
		}
		return url, nil
	}

	if url, ok := s.restorePreview(ctx, meme); ok {
		return url, nil
	}
	return "", errs.New(errs.KindNotFound, "preview not uploaded yet")
}

// restorePreview re-uploads a stashed data URL for a meme whose original
// upload failed, completing the pending row.
func (s *MemeService) restorePreview(ctx context.Context, meme models.Meme) (string, bool) {
	if s.rdb == nil {
		return "", false
	}
	image, err := s.rdb.Get(ctx, previewStashKey(meme.ID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("preview stash read failed")
		}
		return "", false
	}

	url, err := s.storePreview(ctx, meme.IDShort, image)
	if err != nil {
		s.log.Warn().Err(err).Str("id_short", meme.IDShort).Msg("preview re-upload failed")
		return "", false
	}
	if err := s.memes.UpdateImageURL(ctx, meme.ID, url, models.MemeStatusReady); err != nil {
		s.log.Warn().Err(err).Msg("preview finalize update failed")
		return "", false
	}
	s.rdb.Del(ctx, previewStashKey(meme.ID))
	return url, true
}

func (s *MemeService) enqueueTask(ctx context.Context, taskType, memeID string) {
	if s.rdb == nil {
		return
	}
	_, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: TaskStream,
		Values: map[string]any{
			"type":   taskType,
			"memeId": memeID,
		},
	}).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("task", taskType).Msg("enqueue task failed")
	}
}

func (s *MemeService) result(meme models.Meme, replayed bool) SaveMemeResult {
	return SaveMemeResult{Meme: meme, URL: meme.ImageURL, Replayed: replayed}
}
