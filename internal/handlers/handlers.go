package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"memeforge/internal/config"
	"memeforge/internal/repository"
	"memeforge/internal/service"
	"memeforge/internal/storage"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	memeService *service.MemeService
	db          *pgxpool.Pool
	cache       *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	memeRepo := repository.NewMemeRepository(db)
	userRepo := repository.NewUserRepository(db)
	memes := service.NewMemeService(memeRepo, userRepo, store, cache, cfg, log)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		memeService: memes,
		db:          db,
		cache:       cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		v1.POST("/memes", h.SaveMeme)
		v1.DELETE("/memes/:id", h.DeleteMeme)
		v1.POST("/memes/:id/preview", h.FinalizePreview)
		v1.GET("/users/:telegramId/memes", h.GetUserMemes)
	}
}
