package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"memeforge/internal/errs"
	"memeforge/internal/layer"
	"memeforge/internal/models"
	"memeforge/internal/service"
)

type saveMemeRequest struct {
	TelegramUserID int64  `json:"telegramUserId"`
	FirstName      string `json:"firstName"`
	TemplateKey    string `json:"templateKey"`
	// Either a layer array or a JSON string encoding one.
	LayersPayload  json.RawMessage `json:"layersPayload"`
	Image          string          `json:"image"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// decodeLayers accepts both wire forms of layersPayload: the array itself,
// or the array serialized into a JSON string.
func decodeLayers(raw json.RawMessage) ([]layer.Layer, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var nested string
		if err := json.Unmarshal(trimmed, &nested); err != nil {
			return nil, err
		}
		trimmed = []byte(nested)
	}
	if len(trimmed) == 0 {
		return nil, nil
	}
	var layers []layer.Layer
	if err := json.Unmarshal(trimmed, &layers); err != nil {
		return nil, err
	}
	return layers, nil
}

type saveMemeResponse struct {
	MemeID   string  `json:"memeId"`
	IDShort  string  `json:"id_short"`
	URL      *string `json:"url"`
	Replayed bool    `json:"replayed,omitempty"`
}

type memeItem struct {
	ID          string          `json:"id"`
	IDShort     string          `json:"id_short"`
	TemplateKey string          `json:"template_key"`
	Layers      json.RawMessage `json:"layers_payload"`
	ImageURL    *string         `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (h HandlerSet) SaveMeme(c *gin.Context) {
	var req saveMemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	layers, err := decodeLayers(req.LayersPayload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid layersPayload"})
		return
	}

	result, err := h.memeService.SaveMeme(c.Request.Context(), service.SaveMemeInput{
		TelegramUserID: req.TelegramUserID,
		FirstName:      req.FirstName,
		TemplateKey:    req.TemplateKey,
		Layers:         layers,
		Image:          req.Image,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, saveMemeResponse{
		MemeID:   result.Meme.ID,
		IDShort:  result.Meme.IDShort,
		URL:      result.URL,
		Replayed: result.Replayed,
	})
}

func (h HandlerSet) GetUserMemes(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Param("telegramId"), 10, 64)
	if err != nil || telegramID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram id"})
		return
	}

	memes, err := h.memeService.GetUserMemes(c.Request.Context(), telegramID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	items := make([]memeItem, 0, len(memes))
	for _, m := range memes {
		items = append(items, toMemeItem(m))
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h HandlerSet) DeleteMeme(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Query("telegramUserId"), 10, 64)
	if err != nil || telegramID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegramUserId is required"})
		return
	}

	if err := h.memeService.DeleteMeme(c.Request.Context(), c.Param("id"), telegramID); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HandlerSet) FinalizePreview(c *gin.Context) {
	url, err := h.memeService.FinalizePreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": url})
}

func toMemeItem(m models.Meme) memeItem {
	return memeItem{
		ID:          m.ID,
		IDShort:     m.IDShort,
		TemplateKey: m.TemplateKey,
		Layers:      m.LayersPayload,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
	}
}

func (h HandlerSet) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": errs.UserMessage(err)}

	var appErr *errs.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case errs.KindValidation, errs.KindSerialization:
			status = http.StatusBadRequest
		case errs.KindOwnership:
			status = http.StatusForbidden
		case errs.KindNotFound:
			status = http.StatusNotFound
		case errs.KindNetwork:
			status = http.StatusServiceUnavailable
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	}

	if status >= 500 {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		body["error"] = "internal server error"
	}
	c.JSON(status, body)
}
