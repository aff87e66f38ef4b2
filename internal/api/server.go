// Package api exposes the task store client to the web client over HTTP.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"taskmate/internal/auth"
	"taskmate/internal/model"
	"taskmate/internal/store"
)

// TaskStore is the contract the presentation layer may call.
type TaskStore interface {
	CreateTask(ctx context.Context, fields model.TaskFields) (*model.Task, error)
	GetTasks(ctx context.Context) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	ToggleTaskComplete(ctx context.Context, id string, completed bool) (*model.Task, error)
	GetTasksByCategory(ctx context.Context, category string) ([]model.Task, error)
	GetTasksByDateRange(ctx context.Context, start, end time.Time) ([]model.Task, error)
}

// Server is the HTTP API server.
type Server struct {
	echo     *echo.Echo
	tasks    TaskStore
	verifier *auth.Verifier
	loc      *time.Location
}

// New creates a Server. Calendar days are computed in loc.
func New(tasks TaskStore, verifier *auth.Verifier, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{echo: e, tasks: tasks, verifier: verifier, loc: loc}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	g := s.echo.Group("/api", s.authenticate)
	g.GET("/tasks", s.handleTaskList)
	g.POST("/tasks", s.handleTaskCreate)
	g.PATCH("/tasks/:id", s.handleTaskUpdate)
	g.POST("/tasks/:id/complete", s.handleTaskComplete)
	g.DELETE("/tasks/:id", s.handleTaskDelete)
	g.GET("/stats", s.handleStats)
	g.GET("/calendar", s.handleCalendar)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	log.Printf("[info] http api listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// authenticate binds the bearer token's user to the request context.
// Requests without a token continue unauthenticated so that the store
// reports the missing session; a bad token is rejected here.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return next(c)
		}
		user, err := s.verifier.Verify(header)
		if err != nil {
			log.Printf("verify token: %v", err)
			return writeError(c, http.StatusUnauthorized, store.ErrNotAuthenticated.Message)
		}
		req := c.Request()
		c.SetRequest(req.WithContext(auth.WithUser(req.Context(), user)))
		return next(c)
	}
}

func writeError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// writeStoreError maps store failures onto HTTP statuses.
func writeStoreError(c echo.Context, err error) error {
	status := http.StatusBadGateway
	switch {
	case store.KindOf(err) == store.KindAuth:
		status = http.StatusUnauthorized
	case store.KindOf(err) == store.KindNotFound:
		status = http.StatusNotFound
	case errors.Is(err, model.ErrTitleRequired), errors.Is(err, model.ErrInvalidPriority):
		status = http.StatusBadRequest
	}
	return writeError(c, status, err.Error())
}
