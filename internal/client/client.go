// Package client is the HTTP client for the meme backend API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"memeforge/internal/errs"
	"memeforge/internal/layer"
)

const OpSaveMeme = "save-meme"

type SaveRequest struct {
	TelegramUserID int64         `json:"telegramUserId"`
	TemplateKey    string        `json:"templateKey"`
	LayersPayload  []layer.Layer `json:"layersPayload"`
	Image          string        `json:"image,omitempty"`
	IdempotencyKey string        `json:"idempotencyKey,omitempty"`
}

type SaveResponse struct {
	MemeID  string  `json:"memeId"`
	IDShort string  `json:"id_short"`
	URL     *string `json:"url"`
}

type MemeRecord struct {
	ID          string          `json:"id"`
	IDShort     string          `json:"id_short"`
	TemplateKey string          `json:"template_key"`
	Layers      json.RawMessage `json:"layers_payload"`
	ImageURL    *string         `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		log:     log.With().Str("component", "client").Logger(),
	}
}

func (c *Client) SaveMeme(ctx context.Context, req SaveRequest) (SaveResponse, error) {
	var resp SaveResponse
	body, err := json.Marshal(req)
	if err != nil {
		return resp, errs.Wrap(errs.KindSerialization, "encode save request", err)
	}
	err = c.do(ctx, http.MethodPost, "/memes", body, &resp)
	return resp, err
}

func (c *Client) GetUserMemes(ctx context.Context, telegramUserID int64) ([]MemeRecord, error) {
	var resp struct {
		Data []MemeRecord `json:"data"`
	}
	path := fmt.Sprintf("/users/%d/memes", telegramUserID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) DeleteMeme(ctx context.Context, memeID string, telegramUserID int64) error {
	var resp struct {
		Success bool `json:"success"`
	}
	path := fmt.Sprintf("/memes/%s?telegramUserId=%d", memeID, telegramUserID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errs.New(errs.KindInternal, "delete not acknowledged")
	}
	return nil
}

func (c *Client) FinalizePreview(ctx context.Context, memeID, idShort string) (string, error) {
	var resp struct {
		OK  bool   `json:"ok"`
		URL string `json:"url"`
	}
	body, _ := json.Marshal(map[string]string{"id_short": idShort})
	if err := c.do(ctx, http.MethodPost, "/memes/"+memeID+"/preview", body, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Invoke replays a queued operation by name. Used by the offline queue,
// which persists raw request bodies rather than typed calls.
func (c *Client) Invoke(ctx context.Context, name string, body json.RawMessage) error {
	switch name {
	case OpSaveMeme:
		return c.do(ctx, http.MethodPost, "/memes", body, &SaveResponse{})
	default:
		return errs.New(errs.KindValidation, "unknown operation "+name)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, method+" "+path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "read response", err)
	}

	if resp.StatusCode >= 400 {
		return c.apiError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errs.Wrap(errs.KindSerialization, "decode response", err)
		}
	}
	return nil
}

// apiError maps a backend error payload onto the failure taxonomy so
// retry/queue decisions fall out of the status class.
func (c *Client) apiError(status int, data []byte) error {
	var body errorResponse
	_ = json.Unmarshal(data, &body)
	if body.Error == "" {
		body.Error = fmt.Sprintf("backend error (status %d)", status)
	}

	kind := errs.KindInternal
	switch {
	case status >= 500:
		kind = errs.KindNetwork
	case status == http.StatusForbidden:
		kind = errs.KindOwnership
	case status == http.StatusNotFound:
		kind = errs.KindNotFound
	case status >= 400:
		kind = errs.KindValidation
	}

	return &errs.Error{
		Kind:    kind,
		Message: body.Error,
		Details: body.Details,
		Err:     &errs.StatusError{StatusCode: status, Message: body.Error, Details: body.Details},
	}
}
