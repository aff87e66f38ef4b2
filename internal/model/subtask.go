package model

import "time"

// Subtask is a checklist item under a task. The schema is migrated but no
// flow writes subtasks yet.
type Subtask struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TaskID    string    `gorm:"index;not null" json:"task_id"`
	Title     string    `gorm:"not null" json:"title"`
	Completed bool      `gorm:"not null" json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Channel is how a reminder reaches the user.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
	ChannelWhatsApp Channel = "whatsapp"
)

// Reminder fires a notification for a task at RemindAt.
type Reminder struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TaskID    string    `gorm:"index;not null" json:"task_id"`
	RemindAt  time.Time `gorm:"not null" json:"remind_at"`
	Type      Channel   `gorm:"not null" json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
