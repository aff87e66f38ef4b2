package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every accepted priority, lowest first.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority accepts the priority names case-insensitively.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", raw)
	}
	return p, nil
}

// Task is a single to-do item owned by one user.
type Task struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"index;not null" json:"user_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description *string   `json:"description"`
	DueDate     time.Time `gorm:"index" json:"due_date"`
	Priority    Priority  `gorm:"not null" json:"priority"`
	Completed   bool      `gorm:"not null" json:"completed"`
	Category    *string   `gorm:"index" json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryName returns the category or "" when unset.
func (t Task) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return strings.TrimSpace(*t.Category)
}

// DescriptionText returns the description or "" when unset.
func (t Task) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// TaskFields carries the client-writable attributes of a new task. New
// tasks always start incomplete.
type TaskFields struct {
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	DueDate     time.Time `json:"due_date"`
	Priority    Priority  `json:"priority"`
	Category    *string   `json:"category,omitempty"`
}

// NewTask builds an unsaved, incomplete task for owner. Identity and
// timestamps stay zero; the table assigns them.
func (f TaskFields) NewTask(ownerID string) *Task {
	return &Task{
		UserID:      ownerID,
		Title:       f.Title,
		Description: f.Description,
		DueDate:     f.DueDate,
		Priority:    f.Priority,
		Category:    f.Category,
	}
}

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidPriority = errors.New("invalid priority")
)

// Validate reports the first column constraint the task violates.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrTitleRequired
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	return nil
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Category    *string    `json:"category,omitempty"`
}

// Column is one assignment of a partial update.
type Column struct {
	Name  string
	Value any
}

// Columns returns the assignments in a stable order.
func (p TaskPatch) Columns() []Column {
	var cols []Column
	if p.Title != nil {
		cols = append(cols, Column{"title", *p.Title})
	}
	if p.Description != nil {
		cols = append(cols, Column{"description", *p.Description})
	}
	if p.DueDate != nil {
		cols = append(cols, Column{"due_date", *p.DueDate})
	}
	if p.Priority != nil {
		cols = append(cols, Column{"priority", string(*p.Priority)})
	}
	if p.Completed != nil {
		cols = append(cols, Column{"completed", *p.Completed})
	}
	if p.Category != nil {
		cols = append(cols, Column{"category", *p.Category})
	}
	return cols
}

// Validate checks the fields that are being changed.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrTitleRequired
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *p.Priority)
	}
	return nil
}

// Apply copies the set fields onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		d := *p.Description
		t.Description = &d
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Category != nil {
		c := *p.Category
		t.Category = &c
	}
}
