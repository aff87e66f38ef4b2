// Package store is the typed client for the remote tasks table. Every call
// is scoped to the signed-in user and fails with a single *Error.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskmate/internal/auth"
	"taskmate/internal/model"
	"taskmate/internal/repository"
)

// Client issues scoped CRUD calls against a TaskTable.
type Client struct {
	table    repository.TaskTable
	sessions auth.Source
}

func NewClient(table repository.TaskTable, sessions auth.Source) *Client {
	return &Client{table: table, sessions: sessions}
}

// owner runs before every call and resolves the user the call is scoped to.
func (c *Client) owner(ctx context.Context, op string) (string, error) {
	user, err := c.sessions.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			return "", authError(op, err)
		}
		return "", authError(op, fmt.Errorf("resolve session: %w", err))
	}
	if user == nil || user.ID == "" {
		return "", authError(op, auth.ErrNoSession)
	}
	return user.ID, nil
}

// CreateTask inserts a task owned by the current user.
func (c *Client) CreateTask(ctx context.Context, fields model.TaskFields) (*model.Task, error) {
	const op = "create task"
	ownerID, err := c.owner(ctx, op)
	if err != nil {
		return nil, err
	}
	task, err := c.table.Insert(ctx, fields.NewTask(ownerID))
	if err != nil {
		return nil, transportError(op, err)
	}
	return task, nil
}

// GetTasks returns every task of the current user, newest first.
func (c *Client) GetTasks(ctx context.Context) ([]model.Task, error) {
	return c.selectTasks(ctx, "get tasks", repository.Query{Order: repository.OrderCreatedDesc})
}

// UpdateTask applies patch to the user's task id. A task that does not
// exist or belongs to someone else fails with ErrNotFound.
func (c *Client) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	const op = "update task"
	ownerID, err := c.owner(ctx, op)
	if err != nil {
		return nil, err
	}
	task, err := c.table.Update(ctx, ownerID, id, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &Error{Kind: KindNotFound, Op: op, Message: msgNotFound, Err: err}
	}
	if err != nil {
		return nil, transportError(op, err)
	}
	return task, nil
}

// DeleteTask removes the user's task id. It reports true even when nothing
// matched.
func (c *Client) DeleteTask(ctx context.Context, id string) (bool, error) {
	const op = "delete task"
	ownerID, err := c.owner(ctx, op)
	if err != nil {
		return false, err
	}
	if err := c.table.Delete(ctx, ownerID, id); err != nil {
		return false, transportError(op, err)
	}
	return true, nil
}

// ToggleTaskComplete sets the completion flag of id.
func (c *Client) ToggleTaskComplete(ctx context.Context, id string, completed bool) (*model.Task, error) {
	return c.UpdateTask(ctx, id, model.TaskPatch{Completed: &completed})
}

// GetTasksByCategory returns the user's tasks in category, newest first.
func (c *Client) GetTasksByCategory(ctx context.Context, category string) ([]model.Task, error) {
	return c.selectTasks(ctx, "get tasks by category", repository.Query{
		Category: &category,
		Order:    repository.OrderCreatedDesc,
	})
}

// GetTasksByDateRange returns the user's tasks due within [start, end],
// earliest due first.
func (c *Client) GetTasksByDateRange(ctx context.Context, start, end time.Time) ([]model.Task, error) {
	return c.selectTasks(ctx, "get tasks by date range", repository.Query{
		DueFrom: &start,
		DueTo:   &end,
		Order:   repository.OrderDueAsc,
	})
}

func (c *Client) selectTasks(ctx context.Context, op string, q repository.Query) ([]model.Task, error) {
	ownerID, err := c.owner(ctx, op)
	if err != nil {
		return nil, err
	}
	q.OwnerID = ownerID
	tasks, err := c.table.Select(ctx, q)
	if err != nil {
		return nil, transportError(op, err)
	}
	return tasks, nil
}
