package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskmate/internal/auth"
	"taskmate/internal/model"
	"taskmate/internal/repository"
	"taskmate/internal/stats"
	"taskmate/internal/store"
)

const testSecret = "test-secret"

func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerIn(t, time.UTC)
}

func newTestServerIn(t *testing.T, loc *time.Location) *Server {
	t.Helper()
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	table := repository.NewTaskRepository(db, repository.WithClock(tickingClock()))
	client := store.NewClient(table, auth.ContextSource{})
	return New(client, auth.NewVerifier(testSecret), loc)
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.NewVerifier(testSecret).Issue(&model.User{ID: userID}, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

func do(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createTask(t *testing.T, s *Server, token, body string) model.Task {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/tasks", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	return decode[model.Task](t, rec)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	rec := do(t, newTestServer(t), http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
	}{
		{"list without token", http.MethodGet, "/api/tasks", "", ""},
		{"create without token", http.MethodPost, "/api/tasks", "", `{"title":"x"}`},
		{"delete without token", http.MethodDelete, "/api/tasks/abc", "", ""},
		{"list with bad token", http.MethodGet, "/api/tasks", "not-a-jwt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			body := decode[map[string]string](t, rec)
			if body["error"] != "User not authenticated" {
				t.Errorf("unexpected error body: %v", body)
			}
		})
	}
}

func TestCreateAndListTasks(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := tokenFor(t, "user-1")

	first := createTask(t, s, token, `{"title":"Buy milk","due_date":"2024-06-01","priority":"LOW","category":"Shopping"}`)
	if first.UserID != "user-1" || first.Priority != model.PriorityLow || first.Completed {
		t.Errorf("unexpected created task: %+v", first)
	}
	custom := createTask(t, s, token, `{"title":"Fix bike","due_date":"2024-06-02","category":"Other","custom_category":"Garage"}`)
	if custom.CategoryName() != "Garage" {
		t.Errorf("expected custom category Garage, got %q", custom.CategoryName())
	}
	if custom.Priority != model.PriorityMedium {
		t.Errorf("expected default priority medium, got %s", custom.Priority)
	}

	rec := do(t, s, http.MethodGet, "/api/tasks", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d", rec.Code)
	}
	tasks := decode[[]model.Task](t, rec)
	if len(tasks) != 2 || tasks[0].ID != custom.ID {
		t.Fatalf("expected newest first, got %+v", tasks)
	}

	other := do(t, s, http.MethodGet, "/api/tasks", tokenFor(t, "user-2"), "")
	if got := decode[[]model.Task](t, other); len(got) != 0 {
		t.Errorf("another user should see no tasks, got %d", len(got))
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := tokenFor(t, "user-1")

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing title", `{"title":"  ","due_date":"2024-06-01"}`, http.StatusBadRequest},
		{"bad priority", `{"title":"a","due_date":"2024-06-01","priority":"urgent"}`, http.StatusBadRequest},
		{"bad due date", `{"title":"a","due_date":"June"}`, http.StatusBadRequest},
		{"bad json", `{"title":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/tasks", token, tt.body)
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestFilterQueries(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := tokenFor(t, "user-1")

	createTask(t, s, token, `{"title":"a","due_date":"2024-06-01","category":"Work"}`)
	createTask(t, s, token, `{"title":"b","due_date":"2024-06-10T15:00:00Z","category":"Work"}`)
	createTask(t, s, token, `{"title":"c","due_date":"2024-06-20","category":"Health"}`)

	byCategory := decode[[]model.Task](t, do(t, s, http.MethodGet, "/api/tasks?category=Work", token, ""))
	if len(byCategory) != 2 {
		t.Errorf("expected 2 Work tasks, got %d", len(byCategory))
	}

	byRange := decode[[]model.Task](t, do(t, s, http.MethodGet, "/api/tasks?from=2024-06-01&to=2024-06-10", token, ""))
	if len(byRange) != 2 {
		t.Fatalf("expected 2 tasks in range, got %d", len(byRange))
	}
	if byRange[0].Title != "a" || byRange[1].Title != "b" {
		t.Errorf("expected ascending due date order, got %s, %s", byRange[0].Title, byRange[1].Title)
	}

	rec := do(t, s, http.MethodGet, "/api/tasks?from=yesterday&to=2024-06-10", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad bound, got %d", rec.Code)
	}
}

func TestUpdateCompleteAndDelete(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := tokenFor(t, "user-1")
	task := createTask(t, s, token, `{"title":"draft","due_date":"2024-06-01"}`)

	rec := do(t, s, http.MethodPatch, "/api/tasks/"+task.ID, token, `{"title":"final","priority":"high"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[model.Task](t, rec)
	if updated.Title != "final" || updated.Priority != model.PriorityHigh {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Error("updated_at should advance")
	}

	rec = do(t, s, http.MethodPost, "/api/tasks/"+task.ID+"/complete", token, `{"completed":true}`)
	if rec.Code != http.StatusOK || !decode[model.Task](t, rec).Completed {
		t.Fatalf("complete failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPatch, "/api/tasks/"+task.ID, tokenFor(t, "user-2"), `{"title":"stolen"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another owner's task, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodDelete, "/api/tasks/"+task.ID, token, "")
	if rec.Code != http.StatusOK || !decode[map[string]bool](t, rec)["deleted"] {
		t.Fatalf("delete failed: %d %s", rec.Code, rec.Body.String())
	}
	tasks := decode[[]model.Task](t, do(t, s, http.MethodGet, "/api/tasks", token, ""))
	if len(tasks) != 0 {
		t.Errorf("expected no tasks after delete, got %d", len(tasks))
	}
}

func TestStatsAndCalendar(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := tokenFor(t, "user-1")

	done := createTask(t, s, token, `{"title":"a","due_date":"2024-06-01","priority":"high"}`)
	createTask(t, s, token, `{"title":"b","due_date":"2024-06-30"}`)
	createTask(t, s, token, `{"title":"c","due_date":"2024-07-01"}`)
	do(t, s, http.MethodPost, "/api/tasks/"+done.ID+"/complete", token, `{"completed":true}`)

	summary := decode[stats.Summary](t, do(t, s, http.MethodGet, "/api/stats", token, ""))
	if summary.Total != 3 || summary.Completed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	days := decode[[]calendarDay](t, do(t, s, http.MethodGet, "/api/calendar?month=2024-06", token, ""))
	if len(days) != 30 {
		t.Fatalf("expected 30 days in June, got %d", len(days))
	}
	if len(days[0].Tasks) != 1 || len(days[29].Tasks) != 1 {
		t.Errorf("expected tasks on June 1 and 30, got %d and %d", len(days[0].Tasks), len(days[29].Tasks))
	}

	rec := do(t, s, http.MethodGet, "/api/calendar?month=june", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad month, got %d", rec.Code)
	}
}

func TestDateBoundsUseServerLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+3", 3*60*60)
	s := newTestServerIn(t, loc)
	token := tokenFor(t, "user-1")

	task := createTask(t, s, token, `{"title":"a","due_date":"2030-01-05"}`)
	if want := time.Date(2030, 1, 5, 0, 0, 0, 0, loc); !task.DueDate.Equal(want) {
		t.Errorf("due date = %v, want local midnight %v", task.DueDate, want)
	}

	sameDay := decode[[]model.Task](t, do(t, s, http.MethodGet, "/api/tasks?from=2030-01-05&to=2030-01-05", token, ""))
	if len(sameDay) != 1 {
		t.Errorf("expected the task inside its own day, got %d", len(sameDay))
	}
	dayBefore := decode[[]model.Task](t, do(t, s, http.MethodGet, "/api/tasks?from=2030-01-04&to=2030-01-04", token, ""))
	if len(dayBefore) != 0 {
		t.Errorf("expected nothing on the previous day, got %d", len(dayBefore))
	}
}

func TestUpdateResolvesCategory(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := tokenFor(t, "user-1")
	task := createTask(t, s, token, `{"title":"a","due_date":"2030-01-05","category":"Personal"}`)

	tests := []struct {
		body string
		want string
	}{
		{`{"category":"work"}`, "Work"},
		{`{"category":"Other","custom_category":"Garage"}`, "Garage"},
		{`{"category":"Other"}`, model.CategoryPersonal},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodPatch, "/api/tasks/"+task.ID, token, tt.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("update %s returned %d: %s", tt.body, rec.Code, rec.Body.String())
		}
		if got := decode[model.Task](t, rec).CategoryName(); got != tt.want {
			t.Errorf("update %s stored category %q, want %q", tt.body, got, tt.want)
		}
	}

	rec := do(t, s, http.MethodPatch, "/api/tasks/"+task.ID, token, `{"category":"work"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update returned %d", rec.Code)
	}
	work := decode[[]model.Task](t, do(t, s, http.MethodGet, "/api/tasks?category=Work", token, ""))
	if len(work) != 1 {
		t.Errorf("expected the task under Work, got %d", len(work))
	}
}
