package stats

import (
	"math"
	"testing"
	"time"

	"taskmate/internal/model"
)

func task(title string, due string, category string, priority model.Priority, done bool) model.Task {
	d, err := time.Parse("2006-01-02 15:04", due)
	if err != nil {
		panic(err)
	}
	t := model.Task{ID: title, Title: title, DueDate: d, Priority: priority, Completed: done}
	if category != "" {
		t.Category = &category
	}
	return t
}

func sample() []model.Task {
	return []model.Task{
		task("rent", "2024-06-30 09:00", "Personal", model.PriorityHigh, false),
		task("standup", "2024-06-03 10:00", "Work", model.PriorityMedium, true),
		task("review", "2024-06-03 15:00", "work", model.PriorityHigh, false),
		task("walk", "2024-07-01 07:00", "", model.PriorityLow, true),
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize(sample())
	if s.Total != 4 || s.Completed != 2 || s.Pending() != 2 {
		t.Errorf("unexpected counts %+v", s)
	}
	if math.Abs(s.CompletionRate-50) > 1e-9 {
		t.Errorf("expected 50%%, got %f", s.CompletionRate)
	}
	if s.ByPriority[model.PriorityHigh] != 2 || s.ByPriority[model.PriorityLow] != 1 {
		t.Errorf("unexpected priorities %v", s.ByPriority)
	}
	if s.ByCategory[model.Uncategorized] != 1 || s.ByCategory["Work"] != 1 || s.ByCategory["work"] != 1 {
		t.Errorf("unexpected categories %v", s.ByCategory)
	}

	empty := Summarize(nil)
	if empty.CompletionRate != 0 || empty.Total != 0 {
		t.Errorf("expected zero summary, got %+v", empty)
	}
}

func TestGroupByDate(t *testing.T) {
	t.Parallel()

	days := GroupByDate(sample(), time.UTC)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if days[0].Date.Day() != 3 || len(days[0].Tasks) != 2 {
		t.Errorf("unexpected first day %+v", days[0])
	}
	if days[2].Date.Month() != time.July {
		t.Errorf("expected July last, got %v", days[2].Date)
	}
}

func TestGroupByDateRespectsLocation(t *testing.T) {
	t.Parallel()

	late := task("late", "2024-06-03 23:30", "", model.PriorityLow, false)
	tokyo := time.FixedZone("JST", 9*3600)
	days := GroupByDate([]model.Task{late}, tokyo)
	if days[0].Date.Day() != 4 {
		t.Errorf("expected June 4 in JST, got %v", days[0].Date)
	}
}

func TestGroupByCategory(t *testing.T) {
	t.Parallel()

	groups := GroupByCategory(sample())
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Label != "Personal" || groups[1].Label != "Work" || groups[2].Label != model.Uncategorized {
		t.Errorf("unexpected order %s, %s, %s", groups[0].Label, groups[1].Label, groups[2].Label)
	}
	if len(groups[1].Tasks) != 2 {
		t.Errorf("category match should ignore case, got %d tasks", len(groups[1].Tasks))
	}
}

func TestGroupByPriority(t *testing.T) {
	t.Parallel()

	groups := GroupByPriority(sample())
	if len(groups) != 3 || groups[0].Label != "high" || groups[2].Label != "low" {
		t.Errorf("unexpected groups %+v", groups)
	}
}

func TestMonth(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	days := Month(anchor, sample(), time.UTC)
	if len(days) != 30 {
		t.Fatalf("expected 30 days in June, got %d", len(days))
	}
	if len(days[2].Tasks) != 2 {
		t.Errorf("expected 2 tasks on June 3, got %d", len(days[2].Tasks))
	}
	if len(days[29].Tasks) != 1 {
		t.Errorf("expected 1 task on June 30, got %d", len(days[29].Tasks))
	}

	first, last := MonthBounds(anchor, time.UTC)
	if first.Day() != 1 || last.Day() != 30 || last.Hour() != 23 {
		t.Errorf("unexpected bounds %v - %v", first, last)
	}
}
