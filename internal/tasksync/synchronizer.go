// Package tasksync mirrors the signed-in user's tasks in memory and keeps
// the mirror consistent with the outcome of each remote call.
//
// Overlapping calls are not coordinated. Each merge into local state is
// atomic, but two calls that complete out of submission order leave the
// collection in completion order.
package tasksync

import (
	"context"
	"slices"
	"sync"

	"taskmate/internal/model"
)

// Store is the subset of the task store client the synchronizer drives.
type Store interface {
	GetTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, fields model.TaskFields) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
}

// State is what presentation code renders. Err holds the most recent
// failure message, or "" when the last fetch succeeded.
type State struct {
	Tasks   []model.Task
	Loading bool
	Err     string
}

const (
	msgFetchFailed  = "Failed to fetch tasks"
	msgAddFailed    = "Failed to add task"
	msgUpdateFailed = "Failed to update task"
	msgDeleteFailed = "Failed to delete task"
)

// Synchronizer owns the in-memory task collection for one session.
type Synchronizer struct {
	store Store

	mu        sync.Mutex
	tasks     []model.Task
	loading   bool
	err       string
	listeners []func(State)

	activate sync.Once
}

// New returns a synchronizer in the loading state. Call Activate to run the
// initial fetch.
func New(store Store) *Synchronizer {
	return &Synchronizer{store: store, loading: true, tasks: []model.Task{}}
}

// OnChange registers fn to receive a snapshot after every state change.
func (s *Synchronizer) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Activate runs the initial fetch once; later calls return immediately.
func (s *Synchronizer) Activate(ctx context.Context) {
	s.activate.Do(func() { s.Fetch(ctx) })
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Find returns the local copy of task id.
func (s *Synchronizer) Find(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return model.Task{}, false
}

// Fetch replaces the collection with the remote contents. On failure the
// previous collection is kept and the error recorded.
func (s *Synchronizer) Fetch(ctx context.Context) {
	tasks, err := s.store.GetTasks(ctx)
	s.mutate(func() {
		if err != nil {
			s.err = message(err, msgFetchFailed)
		} else {
			s.tasks = slices.Clone(tasks)
			if s.tasks == nil {
				s.tasks = []model.Task{}
			}
			s.err = ""
		}
		s.loading = false
	})
}

// Add creates a task and prepends it locally. It returns nil on failure.
func (s *Synchronizer) Add(ctx context.Context, fields model.TaskFields) *model.Task {
	task, err := s.store.CreateTask(ctx, fields)
	if err != nil {
		s.fail(err, msgAddFailed)
		return nil
	}
	s.mutate(func() {
		s.tasks = append([]model.Task{*task}, s.tasks...)
	})
	return task
}

// Update patches task id and replaces the local copy in place. It returns
// nil on failure.
func (s *Synchronizer) Update(ctx context.Context, id string, patch model.TaskPatch) *model.Task {
	task, err := s.store.UpdateTask(ctx, id, patch)
	if err != nil {
		s.fail(err, msgUpdateFailed)
		return nil
	}
	s.mutate(func() {
		if i := s.indexLocked(id); i >= 0 {
			s.tasks[i] = *task
		}
	})
	return task
}

// Remove deletes task id and drops it locally. It returns false on failure.
func (s *Synchronizer) Remove(ctx context.Context, id string) bool {
	if _, err := s.store.DeleteTask(ctx, id); err != nil {
		s.fail(err, msgDeleteFailed)
		return false
	}
	s.mutate(func() {
		s.tasks = slices.DeleteFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
	})
	return true
}

// ToggleComplete inverts the completion flag of a locally known task. A
// task missing from the collection is skipped without a remote call and
// nil is returned.
func (s *Synchronizer) ToggleComplete(ctx context.Context, id string) *model.Task {
	task, ok := s.Find(id)
	if !ok {
		return nil
	}
	completed := !task.Completed
	return s.Update(ctx, id, model.TaskPatch{Completed: &completed})
}

func (s *Synchronizer) fail(err error, fallback string) {
	s.mutate(func() { s.err = message(err, fallback) })
}

// mutate applies fn under the lock and then notifies listeners outside it.
func (s *Synchronizer) mutate(fn func()) {
	s.mu.Lock()
	fn()
	state := s.snapshotLocked()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

func (s *Synchronizer) snapshotLocked() State {
	return State{Tasks: slices.Clone(s.tasks), Loading: s.loading, Err: s.err}
}

func (s *Synchronizer) indexLocked(id string) int {
	return slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}

func message(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
