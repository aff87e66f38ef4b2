package tasksync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskmate/internal/model"
	"taskmate/internal/store"
)

// fakeStore keeps tasks in memory, newest first, like the remote table.
type fakeStore struct {
	mu      sync.Mutex
	tasks   []model.Task
	seq     int
	now     time.Time
	failAll error
	calls   map[string]int
}

func newFakeStore(titles ...string) *fakeStore {
	f := &fakeStore{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), calls: map[string]int{}}
	for _, title := range titles {
		f.insert(model.TaskFields{Title: title})
	}
	return f
}

func (f *fakeStore) tick() time.Time {
	f.now = f.now.Add(time.Minute)
	return f.now
}

func (f *fakeStore) insert(fields model.TaskFields) model.Task {
	f.seq++
	now := f.tick()
	task := *fields.NewTask("user-1")
	task.ID = fmt.Sprintf("task-%d", f.seq)
	task.CreatedAt, task.UpdatedAt = now, now
	f.tasks = append([]model.Task{task}, f.tasks...)
	return task
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) GetTasks(context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	if f.failAll != nil {
		return nil, f.failAll
	}
	return append([]model.Task(nil), f.tasks...), nil
}

func (f *fakeStore) CreateTask(_ context.Context, fields model.TaskFields) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	if f.failAll != nil {
		return nil, f.failAll
	}
	task := f.insert(fields)
	return &task, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++
	if f.failAll != nil {
		return nil, f.failAll
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			patch.Apply(&f.tasks[i])
			f.tasks[i].UpdatedAt = f.tick()
			task := f.tasks[i]
			return &task, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) DeleteTask(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	if f.failAll != nil {
		return false, f.failAll
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			break
		}
	}
	return true, nil
}

func (f *fakeStore) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

func activated(t *testing.T, fake *fakeStore) *Synchronizer {
	t.Helper()
	s := New(fake)
	s.Activate(context.Background())
	return s
}

func titles(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestActivateFetchesOnce(t *testing.T) {
	t.Parallel()
	fake := newFakeStore("a", "b")
	s := New(fake)

	if !s.Snapshot().Loading {
		t.Fatal("expected loading before activation")
	}
	s.Activate(context.Background())
	s.Activate(context.Background())

	state := s.Snapshot()
	if state.Loading {
		t.Error("expected loading cleared after fetch")
	}
	if len(state.Tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(state.Tasks))
	}
	if got := fake.count("get"); got != 1 {
		t.Errorf("expected one fetch, got %d", got)
	}
}

func TestFetchFailureKeepsCollection(t *testing.T) {
	t.Parallel()
	fake := newFakeStore("a")
	s := activated(t, fake)
	ctx := context.Background()

	fake.fail(errors.New("network down"))
	s.Fetch(ctx)
	state := s.Snapshot()
	if state.Err != "network down" {
		t.Errorf("expected error message, got %q", state.Err)
	}
	if len(state.Tasks) != 1 {
		t.Errorf("previous collection should survive, got %d tasks", len(state.Tasks))
	}
	if state.Loading {
		t.Error("loading should be cleared after a failed fetch")
	}

	fake.fail(nil)
	s.Fetch(ctx)
	if err := s.Snapshot().Err; err != "" {
		t.Errorf("successful fetch should clear error, got %q", err)
	}
}

func TestInitialFetchFailureClearsLoading(t *testing.T) {
	t.Parallel()
	fake := newFakeStore()
	fake.fail(store.ErrNotAuthenticated)
	s := activated(t, fake)

	state := s.Snapshot()
	if state.Loading {
		t.Error("expected loading cleared")
	}
	if state.Err != "User not authenticated" {
		t.Errorf("unexpected error %q", state.Err)
	}
	if len(state.Tasks) != 0 {
		t.Errorf("expected empty collection, got %d", len(state.Tasks))
	}
}

func TestAddPrependsWithoutRefetch(t *testing.T) {
	t.Parallel()
	fake := newFakeStore("old")
	s := activated(t, fake)

	task := s.Add(context.Background(), model.TaskFields{Title: "Buy milk", Priority: model.PriorityLow})
	if task == nil {
		t.Fatal("Add returned nil")
	}
	got := titles(s.Snapshot().Tasks)
	if len(got) != 2 || got[0] != "Buy milk" || got[1] != "old" {
		t.Errorf("unexpected order %v", got)
	}
	if fake.count("get") != 1 {
		t.Errorf("Add must not refetch, got %d fetches", fake.count("get"))
	}
}

func TestAddFailure(t *testing.T) {
	t.Parallel()
	fake := newFakeStore("old")
	s := activated(t, fake)
	fake.fail(store.ErrNotAuthenticated)

	if task := s.Add(context.Background(), model.TaskFields{Title: "x"}); task != nil {
		t.Fatalf("expected nil, got %+v", task)
	}
	state := s.Snapshot()
	if state.Err != "User not authenticated" {
		t.Errorf("unexpected error %q", state.Err)
	}
	if got := titles(state.Tasks); len(got) != 1 || got[0] != "old" {
		t.Errorf("collection changed: %v", got)
	}
}

func TestAddThenRemoveRestoresCollection(t *testing.T) {
	t.Parallel()
	s := activated(t, newFakeStore("a", "b", "c"))
	ctx := context.Background()
	before := len(s.Snapshot().Tasks)

	task := s.Add(ctx, model.TaskFields{Title: "temp"})
	if task == nil {
		t.Fatal("Add returned nil")
	}
	if !s.Remove(ctx, task.ID) {
		t.Fatal("Remove returned false")
	}

	state := s.Snapshot()
	if len(state.Tasks) != before {
		t.Errorf("expected %d tasks, got %d", before, len(state.Tasks))
	}
	if _, ok := s.Find(task.ID); ok {
		t.Error("removed task still present")
	}
}

func TestRemoveFailure(t *testing.T) {
	t.Parallel()
	fake := newFakeStore("a")
	s := activated(t, fake)
	id := s.Snapshot().Tasks[0].ID
	fake.fail(errors.New("boom"))

	if s.Remove(context.Background(), id) {
		t.Fatal("expected false")
	}
	state := s.Snapshot()
	if state.Err != "boom" || len(state.Tasks) != 1 {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestUpdateReplacesInPlace(t *testing.T) {
	t.Parallel()
	s := activated(t, newFakeStore("a", "b", "c"))
	ctx := context.Background()
	tasks := s.Snapshot().Tasks
	middle := tasks[1]

	done := true
	updated := s.Update(ctx, middle.ID, model.TaskPatch{Completed: &done})
	if updated == nil {
		t.Fatal("Update returned nil")
	}

	after := s.Snapshot().Tasks
	if got, want := titles(after), titles(tasks); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order changed: %v -> %v", want, got)
	}
	if !after[1].Completed {
		t.Error("expected middle task completed")
	}
	if !after[1].UpdatedAt.After(after[1].CreatedAt) {
		t.Error("expected updated_at after created_at")
	}
}

func TestUpdateFailure(t *testing.T) {
	t.Parallel()
	s := activated(t, newFakeStore("a"))

	done := true
	if task := s.Update(context.Background(), "missing", model.TaskPatch{Completed: &done}); task != nil {
		t.Fatalf("expected nil, got %+v", task)
	}
	if err := s.Snapshot().Err; err != "Task not found" {
		t.Errorf("unexpected error %q", err)
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	t.Parallel()
	s := activated(t, newFakeStore("a"))
	ctx := context.Background()
	id := s.Snapshot().Tasks[0].ID

	first := s.ToggleComplete(ctx, id)
	if first == nil || !first.Completed {
		t.Fatalf("expected completed after first toggle, got %+v", first)
	}
	second := s.ToggleComplete(ctx, id)
	if second == nil || second.Completed {
		t.Fatalf("expected incomplete after second toggle, got %+v", second)
	}
	if task, _ := s.Find(id); task.Completed {
		t.Error("local copy should be incomplete")
	}
}

func TestToggleUnknownIsNoop(t *testing.T) {
	t.Parallel()
	fake := newFakeStore("a")
	s := New(fake)

	if task := s.ToggleComplete(context.Background(), "task-1"); task != nil {
		t.Errorf("never-fetched collection: expected nil, got %+v", task)
	}
	s.Activate(context.Background())
	if task := s.ToggleComplete(context.Background(), "nope"); task != nil {
		t.Errorf("unknown id: expected nil, got %+v", task)
	}
	if fake.count("update") != 0 {
		t.Errorf("expected no remote update, got %d", fake.count("update"))
	}
	if err := s.Snapshot().Err; err != "" {
		t.Errorf("no-op toggle should not set an error, got %q", err)
	}
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	t.Parallel()
	s := New(newFakeStore("a"))

	var states []State
	s.OnChange(func(st State) { states = append(states, st) })
	s.Activate(context.Background())
	s.Add(context.Background(), model.TaskFields{Title: "b"})

	if len(states) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(states))
	}
	if states[0].Loading || len(states[0].Tasks) != 1 {
		t.Errorf("unexpected first state %+v", states[0])
	}
	if len(states[1].Tasks) != 2 {
		t.Errorf("unexpected second state %+v", states[1])
	}
}

func TestConcurrentTogglesOnDifferentTasks(t *testing.T) {
	t.Parallel()
	s := activated(t, newFakeStore("a", "b", "c", "d"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, task := range s.Snapshot().Tasks {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.ToggleComplete(ctx, id)
		}(task.ID)
	}
	wg.Wait()

	for _, task := range s.Snapshot().Tasks {
		if !task.Completed {
			t.Errorf("task %s not completed", task.Title)
		}
	}
}
