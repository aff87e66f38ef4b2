package model

import "time"

// User is an authenticated account. Telegram users are recorded in the
// directory on first contact; web users only exist as token subjects.
type User struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	TelegramID int64     `gorm:"uniqueIndex" json:"telegram_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Username   string    `json:"username,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
