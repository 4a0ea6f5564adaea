package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"memeforge/internal/models"
)

var (
	ErrMemeNotFound = errors.New("meme not found")
	// ErrDuplicateKey reports a unique violation on the idempotency key,
	// raised when two identical saves race past the replay lookup.
	ErrDuplicateKey = errors.New("duplicate idempotency key")
)

const memeColumns = `
	id, id_short, owner_id, template_key, layers_payload, image_url,
	COALESCE(idempotency_key, ''), status, deleted_at, created_at, updated_at
`

type MemeRepository struct {
	pool *pgxpool.Pool
}

func NewMemeRepository(pool *pgxpool.Pool) *MemeRepository {
	return &MemeRepository{pool: pool}
}

// Create inserts a meme row. A save without an idempotency key stores NULL
// so the unique index on (owner_id, idempotency_key) never collides keyless
// saves with each other.
func (r *MemeRepository) Create(ctx context.Context, meme models.Meme) error {
	const query = `
		INSERT INTO memes (
			id, id_short, owner_id, template_key, layers_payload, image_url,
			idempotency_key, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		meme.ID,
		meme.IDShort,
		meme.OwnerID,
		meme.TemplateKey,
		meme.LayersPayload,
		meme.ImageURL,
		meme.IdempotencyKey,
		meme.Status,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *MemeRepository) GetByID(ctx context.Context, id string) (models.Meme, error) {
	const query = `
		SELECT` + memeColumns + `
		FROM memes WHERE id = $1 AND deleted_at IS NULL
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *MemeRepository) GetByIdempotencyKey(ctx context.Context, ownerID, key string) (models.Meme, error) {
	const query = `
		SELECT` + memeColumns + `
		FROM memes
		WHERE owner_id = $1 AND idempotency_key = $2 AND deleted_at IS NULL
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, ownerID, key))
}

func (r *MemeRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Meme, error) {
	const query = `
		SELECT` + memeColumns + `
		FROM memes
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memes []models.Meme
	for rows.Next() {
		meme, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		memes = append(memes, meme)
	}
	return memes, rows.Err()
}

func (r *MemeRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `
		UPDATE memes SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrMemeNotFound
	}
	return nil
}

func (r *MemeRepository) UpdateImageURL(ctx context.Context, id, imageURL string, status models.MemeStatus) error {
	const query = `
		UPDATE memes SET image_url = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id, imageURL, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrMemeNotFound
	}
	return nil
}

// ShortIDExists checks a candidate short id against live rows only; a freed
// id from a soft-deleted meme stays reserved to keep public URLs stable.
func (r *MemeRepository) ShortIDExists(ctx context.Context, idShort string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM memes WHERE id_short = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, idShort).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListPendingPreviews returns memes saved without a stored image, oldest
// first, for the preview sweep worker.
func (r *MemeRepository) ListPendingPreviews(ctx context.Context, limit int) ([]models.Meme, error) {
	const query = `
		SELECT` + memeColumns + `
		FROM memes
		WHERE status = 'pending' AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memes []models.Meme
	for rows.Next() {
		meme, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		memes = append(memes, meme)
	}
	return memes, rows.Err()
}

// PurgeDeleted removes soft-deleted rows older than the retention window and
// returns their short ids so object storage can be cleaned alongside.
func (r *MemeRepository) PurgeDeleted(ctx context.Context, olderThanDays int) ([]string, error) {
	const query = `
		DELETE FROM memes
		WHERE deleted_at IS NOT NULL AND deleted_at < NOW() - ($1 || ' days')::interval
		RETURNING id_short
	`
	rows, err := r.pool.Query(ctx, query, olderThanDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shortIDs []string
	for rows.Next() {
		var idShort string
		if err := rows.Scan(&idShort); err != nil {
			return nil, err
		}
		shortIDs = append(shortIDs, idShort)
	}
	return shortIDs, rows.Err()
}

func (r *MemeRepository) scanOne(row pgx.Row) (models.Meme, error) {
	var meme models.Meme
	if err := row.Scan(
		&meme.ID,
		&meme.IDShort,
		&meme.OwnerID,
		&meme.TemplateKey,
		&meme.LayersPayload,
		&meme.ImageURL,
		&meme.IdempotencyKey,
		&meme.Status,
		&meme.DeletedAt,
		&meme.CreatedAt,
		&meme.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Meme{}, ErrMemeNotFound
		}
		return models.Meme{}, err
	}
	return meme, nil
}
