package repository

import (
	"context"
	"errors"
	"time"

	"taskmate/internal/model"
)

// ErrNotFound is returned when a scoped write or lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Order selects the sort applied to Select results.
type Order int

const (
	OrderCreatedDesc Order = iota
	OrderDueAsc
)

// Query filters the tasks table. OwnerID is always applied; the other
// filters only when set. Due bounds are inclusive.
type Query struct {
	OwnerID  string
	Category *string
	DueFrom  *time.Time
	DueTo    *time.Time
	Order    Order
}

// TaskTable is the remote tasks table. Implementations assign ids and
// timestamps and enforce column constraints.
type TaskTable interface {
	Insert(ctx context.Context, task *model.Task) (*model.Task, error)
	Select(ctx context.Context, q Query) ([]model.Task, error)
	Update(ctx context.Context, ownerID, id string, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// UserDirectory records chat users so they can be addressed later.
type UserDirectory interface {
	UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
}

// Option configures a task table.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// prepareInsert applies column defaults and constraints shared by both
// backends.
func prepareInsert(task *model.Task, id string, now time.Time) (model.Task, error) {
	row := *task
	if row.Priority == "" {
		row.Priority = model.PriorityMedium
	}
	if err := row.Validate(); err != nil {
		return row, err
	}
	row.ID = id
	row.DueDate = row.DueDate.UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	return row, nil
}

func columnValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}
