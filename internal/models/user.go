package models

import "time"

type User struct {
	ID         string
	TelegramID int64
	FirstName  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
