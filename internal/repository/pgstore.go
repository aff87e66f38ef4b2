package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskmate/internal/model"
)

const taskColumns = `id, user_id, title, description, due_date, priority, completed, category, created_at, updated_at`

// PgTaskRepository is the PostgreSQL tasks table.
type PgTaskRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPgTaskRepository(pool *pgxpool.Pool, opts ...Option) *PgTaskRepository {
	return &PgTaskRepository{pool: pool, now: applyOptions(opts).now}
}

// EnsureTables creates the schema if it doesn't exist.
func (s *PgTaskRepository) EnsureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			telegram_id BIGINT UNIQUE,
			email       TEXT NOT NULL DEFAULT '',
			first_name  TEXT NOT NULL DEFAULT '',
			last_name   TEXT NOT NULL DEFAULT '',
			username    TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			title       TEXT NOT NULL CHECK (title <> ''),
			description TEXT,
			due_date    TIMESTAMPTZ,
			priority    TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
			completed   BOOLEAN NOT NULL DEFAULT FALSE,
			category    TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(user_id, due_date)`,
		`CREATE TABLE IF NOT EXISTS subtasks (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			title      TEXT NOT NULL,
			completed  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			remind_at  TIMESTAMPTZ NOT NULL,
			type       TEXT NOT NULL CHECK (type IN ('email', 'push', 'whatsapp')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PgTaskRepository) Insert(ctx context.Context, task *model.Task) (*model.Task, error) {
	row, err := prepareInsert(task, uuid.Must(uuid.NewV7()).String(), s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	inserted, err := scanTask(s.pool.QueryRow(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+taskColumns,
		row.ID, row.UserID, row.Title, row.Description, row.DueDate, string(row.Priority), row.Completed, row.Category, row.CreatedAt, row.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return inserted, nil
}

func (s *PgTaskRepository) Select(ctx context.Context, q Query) ([]model.Task, error) {
	where := []string{"user_id = $1"}
	args := []any{q.OwnerID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.Category != nil {
		add("category = $%d", *q.Category)
	}
	if q.DueFrom != nil {
		add("due_date >= $%d", q.DueFrom.UTC())
	}
	if q.DueTo != nil {
		add("due_date <= $%d", q.DueTo.UTC())
	}
	order := "created_at DESC, id DESC"
	if q.Order == OrderDueAsc {
		order = "due_date ASC, id ASC"
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM tasks WHERE %s ORDER BY %s",
		taskColumns, strings.Join(where, " AND "), order), args...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("select tasks: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

// Update builds the SET clause from the patch and returns the stored row.
func (s *PgTaskRepository) Update(ctx context.Context, ownerID, id string, patch model.TaskPatch) (*model.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}

	setClauses := "updated_at = $1"
	args := []any{s.now().UTC().Truncate(time.Microsecond)}
	for _, col := range patch.Columns() {
		args = append(args, columnValue(col.Value))
		setClauses += fmt.Sprintf(", %s = $%d", col.Name, len(args))
	}
	args = append(args, id, ownerID)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d RETURNING %s",
		setClauses, len(args)-1, len(args), taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return t, nil
}

func (s *PgTaskRepository) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var priority string
	var due *time.Time
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &due, &priority, &t.Completed, &t.Category, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Priority = model.Priority(priority)
	if due != nil {
		t.DueDate = due.UTC()
	}
	return &t, nil
}

// PgUserRepository is the PostgreSQL user directory.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, telegram_id, email, first_name, last_name, username, created_at, updated_at`

func (s *PgUserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (id, telegram_id, first_name, last_name, username)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		    username = EXCLUDED.username, updated_at = NOW()
		RETURNING `+userColumns,
		uuid.Must(uuid.NewV7()).String(), telegramID, firstName, lastName, username))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (s *PgUserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

func (s *PgUserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var telegramID *int64
	if err := row.Scan(&u.ID, &telegramID, &u.Email, &u.FirstName, &u.LastName, &u.Username, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if telegramID != nil {
		u.TelegramID = *telegramID
	}
	return &u, nil
}
