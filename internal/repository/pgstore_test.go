package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskmate/internal/model"
)

// Runs only when TASKMATE_TEST_POSTGRES points at a scratch database.
func TestPgTaskRepository(t *testing.T) {
	dsn := os.Getenv("TASKMATE_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("TASKMATE_TEST_POSTGRES not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	repo := NewPgTaskRepository(pool)
	if err := repo.EnsureTables(ctx); err != nil {
		t.Fatalf("EnsureTables failed: %v", err)
	}

	owner := "pg-test-owner"
	created, err := repo.Insert(ctx, &model.Task{UserID: owner, Title: "pg task", DueDate: date("2024-06-10")})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	defer repo.Delete(ctx, owner, created.ID)

	done := true
	updated, err := repo.Update(ctx, owner, created.ID, model.TaskPatch{Completed: &done})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Completed {
		t.Error("expected completed task")
	}
	if _, err := repo.Update(ctx, "intruder", created.ID, model.TaskPatch{Completed: &done}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	from, to := date("2024-06-01"), date("2024-06-30")
	tasks, err := repo.Select(ctx, Query{OwnerID: owner, DueFrom: &from, DueTo: &to, Order: OrderDueAsc})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("expected the inserted task, got %+v", tasks)
	}
}
