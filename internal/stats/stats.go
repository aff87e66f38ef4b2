// Package stats derives completion statistics and date/category groupings
// from a task collection.
package stats

import (
	"sort"
	"strings"
	"time"

	"taskmate/internal/model"
)

// Summary is the overview shown on the statistics screen.
type Summary struct {
	Completed      int                    `json:"completed"`
	Total          int                    `json:"total"`
	CompletionRate float64                `json:"completion_rate"`
	ByPriority     map[model.Priority]int `json:"by_priority"`
	ByCategory     map[string]int         `json:"by_category"`
}

// Pending is the number of tasks not yet completed.
func (s Summary) Pending() int {
	return s.Total - s.Completed
}

func Summarize(tasks []model.Task) Summary {
	s := Summary{
		Total:      len(tasks),
		ByPriority: map[model.Priority]int{},
		ByCategory: map[string]int{},
	}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
		s.ByPriority[t.Priority]++
		s.ByCategory[categoryKey(t)]++
	}
	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Total) * 100
	}
	return s
}

// Group is a labelled bucket of tasks.
type Group struct {
	Label string
	Tasks []model.Task
}

// Day is a calendar date bucket.
type Day struct {
	Date  time.Time
	Tasks []model.Task
}

// GroupByDate buckets tasks by the local calendar date of their due date,
// earliest first. Order within a day follows the input.
func GroupByDate(tasks []model.Task, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}
	index := map[time.Time]int{}
	var days []Day
	for _, t := range tasks {
		d := dayOf(t.DueDate, loc)
		i, ok := index[d]
		if !ok {
			i = len(days)
			index[d] = i
			days = append(days, Day{Date: d})
		}
		days[i].Tasks = append(days[i].Tasks, t)
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

// GroupByCategory buckets tasks by category name. Named categories sort
// alphabetically; Uncategorized comes last.
func GroupByCategory(tasks []model.Task) []Group {
	index := map[string]int{}
	var groups []Group
	for _, t := range tasks {
		key := categoryKey(t)
		i, ok := index[strings.ToLower(key)]
		if !ok {
			i = len(groups)
			index[strings.ToLower(key)] = i
			groups = append(groups, Group{Label: key})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Label == model.Uncategorized {
			return false
		}
		if groups[j].Label == model.Uncategorized {
			return true
		}
		return strings.ToLower(groups[i].Label) < strings.ToLower(groups[j].Label)
	})
	return groups
}

// GroupByPriority buckets tasks from high to low priority, skipping empty
// buckets.
func GroupByPriority(tasks []model.Task) []Group {
	var groups []Group
	for i := len(model.Priorities) - 1; i >= 0; i-- {
		p := model.Priorities[i]
		var bucket []model.Task
		for _, t := range tasks {
			if t.Priority == p {
				bucket = append(bucket, t)
			}
		}
		if len(bucket) > 0 {
			groups = append(groups, Group{Label: string(p), Tasks: bucket})
		}
	}
	return groups
}

// Month returns one entry per day of anchor's month, each holding the tasks
// due that day.
func Month(anchor time.Time, tasks []model.Task, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}
	anchor = anchor.In(loc)
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	byDay := map[time.Time][]model.Task{}
	for _, t := range tasks {
		d := dayOf(t.DueDate, loc)
		if d.Before(first) || !d.Before(next) {
			continue
		}
		byDay[d] = append(byDay[d], t)
	}

	var days []Day
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		days = append(days, Day{Date: d, Tasks: byDay[d]})
	}
	return days
}

// MonthBounds returns the first and last instant of anchor's month.
func MonthBounds(anchor time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	anchor = anchor.In(loc)
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, loc)
	return first, first.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func categoryKey(t model.Task) string {
	if name := t.CategoryName(); name != "" {
		return name
	}
	return model.Uncategorized
}
