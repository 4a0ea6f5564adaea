package models

import (
	"encoding/json"
	"time"
)

type MemeStatus string

const (
	MemeStatusPending MemeStatus = "pending"
	MemeStatusReady   MemeStatus = "ready"
)

type Meme struct {
	ID             string
	IDShort        string
	OwnerID        string
	TemplateKey    string
	LayersPayload  json.RawMessage
	ImageURL       *string
	IdempotencyKey string
	Status         MemeStatus
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
