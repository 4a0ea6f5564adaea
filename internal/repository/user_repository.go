package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memeforge/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (models.User, error) {
	const query = `
		SELECT id, telegram_id, first_name, created_at, updated_at
		FROM users WHERE telegram_id = $1
	`

	row := r.pool.QueryRow(ctx, query, telegramID)
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.FirstName,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// Upsert creates the user on first contact and returns the stored row either
// way. The telegram id is the natural key.
func (r *UserRepository) Upsert(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, telegram_id, first_name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (telegram_id) DO UPDATE
		SET first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
		    updated_at = NOW()
		RETURNING id, telegram_id, first_name, created_at, updated_at
	`

	row := r.pool.QueryRow(ctx, query, user.ID, user.TelegramID, user.FirstName)
	var stored models.User
	if err := row.Scan(
		&stored.ID,
		&stored.TelegramID,
		&stored.FirstName,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	); err != nil {
		return models.User{}, err
	}
	return stored, nil
}
