package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskmate/internal/model"
)

// TaskRepository is the SQLite tasks table.
type TaskRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTaskRepository(db *gorm.DB, opts ...Option) *TaskRepository {
	return &TaskRepository{db: db, now: applyOptions(opts).now}
}

func (r *TaskRepository) Insert(ctx context.Context, task *model.Task) (*model.Task, error) {
	row, err := prepareInsert(task, uuid.Must(uuid.NewV7()).String(), r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return &row, nil
}

func (r *TaskRepository) Select(ctx context.Context, q Query) ([]model.Task, error) {
	db := r.db.WithContext(ctx).Where("user_id = ?", q.OwnerID)
	if q.Category != nil {
		db = db.Where("category = ?", *q.Category)
	}
	if q.DueFrom != nil {
		db = db.Where("due_date >= ?", q.DueFrom.UTC())
	}
	if q.DueTo != nil {
		db = db.Where("due_date <= ?", q.DueTo.UTC())
	}
	switch q.Order {
	case OrderDueAsc:
		db = db.Order("due_date ASC").Order("id ASC")
	default:
		db = db.Order("created_at DESC").Order("id DESC")
	}

	tasks := []model.Task{}
	if err := db.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	return tasks, nil
}

// Update applies patch to the owner's task and returns the stored row.
func (r *TaskRepository) Update(ctx context.Context, ownerID, id string, patch model.TaskPatch) (*model.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	updates := map[string]interface{}{"updated_at": r.now().UTC()}
	for _, col := range patch.Columns() {
		updates[col.Name] = columnValue(col.Value)
	}

	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).Where("id = ? AND user_id = ?", id, ownerID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ? AND user_id = ?", id, ownerID).First(&task).Error
	})
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("update task %s: %w", id, ErrNotFound)
	default:
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
}

// Delete removes the owner's task. Missing rows are not an error.
func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
