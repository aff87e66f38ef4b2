package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"taskmate/internal/model"
	"taskmate/internal/stats"
)

type createRequest struct {
	Title          string  `json:"title"`
	Description    *string `json:"description"`
	DueDate        string  `json:"due_date"`
	Priority       string  `json:"priority"`
	Category       *string `json:"category"`
	CustomCategory string  `json:"custom_category"`
}

type updateRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	DueDate        *string `json:"due_date"`
	Priority       *string `json:"priority"`
	Completed      *bool   `json:"completed"`
	Category       *string `json:"category"`
	CustomCategory string  `json:"custom_category"`
}

type completeRequest struct {
	Completed bool `json:"completed"`
}

func (s *Server) handleTaskList(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParams()

	var (
		tasks []model.Task
		err   error
	)
	switch {
	case q.Has("from") || q.Has("to"):
		from, ferr := s.parseBound(q.Get("from"), false)
		to, terr := s.parseBound(q.Get("to"), true)
		if ferr != nil || terr != nil {
			return writeError(c, http.StatusBadRequest, "from and to must be dates (YYYY-MM-DD) or RFC3339 timestamps")
		}
		tasks, err = s.tasks.GetTasksByDateRange(ctx, from, to)
	case q.Has("category"):
		tasks, err = s.tasks.GetTasksByCategory(ctx, q.Get("category"))
	default:
		tasks, err = s.tasks.GetTasks(ctx)
	}
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleTaskCreate(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
	}

	fields := model.TaskFields{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    model.Priority(strings.ToLower(req.Priority)),
	}
	if req.DueDate != "" {
		due, err := s.parseBound(req.DueDate, false)
		if err != nil {
			return writeError(c, http.StatusBadRequest, "invalid due_date")
		}
		fields.DueDate = due
	}
	if req.Category != nil {
		category := model.ResolveCategory(*req.Category, req.CustomCategory)
		fields.Category = &category
	}

	task, err := s.tasks.CreateTask(c.Request().Context(), fields)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) handleTaskUpdate(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
	}

	patch := model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if req.Category != nil {
		category := model.ResolveCategory(*req.Category, req.CustomCategory)
		patch.Category = &category
	}
	if req.Priority != nil {
		p := model.Priority(strings.ToLower(*req.Priority))
		patch.Priority = &p
	}
	if req.DueDate != nil {
		due, err := s.parseBound(*req.DueDate, false)
		if err != nil {
			return writeError(c, http.StatusBadRequest, "invalid due_date")
		}
		patch.DueDate = &due
	}

	task, err := s.tasks.UpdateTask(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleTaskComplete(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	task, err := s.tasks.ToggleTaskComplete(c.Request().Context(), c.Param("id"), req.Completed)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleTaskDelete(c echo.Context) error {
	ok, err := s.tasks.DeleteTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": ok})
}

func (s *Server) handleStats(c echo.Context) error {
	tasks, err := s.tasks.GetTasks(c.Request().Context())
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, stats.Summarize(tasks))
}

type calendarDay struct {
	Date  string       `json:"date"`
	Tasks []model.Task `json:"tasks"`
}

func (s *Server) handleCalendar(c echo.Context) error {
	anchor := time.Now().In(s.loc)
	if raw := c.QueryParam("month"); raw != "" {
		m, err := time.ParseInLocation("2006-01", raw, s.loc)
		if err != nil {
			return writeError(c, http.StatusBadRequest, "month must be YYYY-MM")
		}
		anchor = m
	}

	first, last := stats.MonthBounds(anchor, s.loc)
	tasks, err := s.tasks.GetTasksByDateRange(c.Request().Context(), first, last)
	if err != nil {
		return writeStoreError(c, err)
	}

	days := stats.Month(anchor, tasks, s.loc)
	out := make([]calendarDay, 0, len(days))
	for _, d := range days {
		dayTasks := d.Tasks
		if dayTasks == nil {
			dayTasks = []model.Task{}
		}
		out = append(out, calendarDay{Date: d.Date.Format("2006-01-02"), Tasks: dayTasks})
	}
	return c.JSON(http.StatusOK, out)
}

// parseBound accepts RFC3339 or a bare date in the server's location. A
// bare date used as an upper bound covers the whole day.
func (s *Server) parseBound(raw string, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, s.loc)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d, nil
}
