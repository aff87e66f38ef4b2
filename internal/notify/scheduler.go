package notify

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Scheduler wraps cron-based jobs. Besides periodic jobs it runs one-shot
// jobs addressed by a string identifier so they can be cancelled.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	oneShot map[string]cron.EntryID
}

func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		oneShot: make(map[string]cron.EntryID),
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *Scheduler) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a periodic job every given duration.
func (s *Scheduler) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), job)
}

// ScheduleAt runs job once at at and returns its identifier.
func (s *Scheduler) ScheduleAt(at time.Time, job func()) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.cron.Schedule(onceSchedule{at: at}, cron.FuncJob(func() {
		if s.release(id) {
			job()
		}
	}))
	s.oneShot[id] = entry
	return id
}

// Cancel drops a pending one-shot job. It reports whether the job was
// still pending.
func (s *Scheduler) Cancel(id string) bool {
	return s.release(id)
}

// Pending is the number of one-shot jobs that have neither run nor been
// cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.oneShot)
}

func (s *Scheduler) release(id string) bool {
	s.mu.Lock()
	entry, ok := s.oneShot[id]
	delete(s.oneShot, id)
	s.mu.Unlock()
	if ok {
		s.cron.Remove(entry)
	}
	return ok
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// onceSchedule fires a single time. A zero Next tells cron the entry will
// not run again.
type onceSchedule struct {
	at time.Time
}

func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
