package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"taskmate/internal/model"
)

const (
	iconDefault = "🟢"
	iconDue     = "⏳"
	iconOverdue = "⚠️"
)

// Digest builds the periodic summary of a user's open tasks.
func Digest(tasks []model.Task, now time.Time) string {
	var pending []model.Task
	for _, task := range tasks {
		if !task.Completed {
			pending = append(pending, task)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		switch {
		case a.DueDate.IsZero() && b.DueDate.IsZero():
			return a.CreatedAt.After(b.CreatedAt)
		case a.DueDate.IsZero():
			return false
		case b.DueDate.IsZero():
			return true
		default:
			return a.DueDate.Before(b.DueDate)
		}
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for _, task := range pending {
			builder.WriteString(FormatTask(task, now))
		}
	}

	return strings.TrimSpace(builder.String())
}

// FormatTask renders one task line with a due-date hint.
func FormatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := DueIcon(task, now)
	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Title))))

	if name := task.CategoryName(); name != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
	}

	if !task.DueDate.IsZero() {
		due := task.DueDate.In(now.Location()).Format("2006-01-02")
		switch left := DaysLeft(task, now); {
		case left < 0:
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · <b>overdue</b>", due))
		case left == 0:
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · <b>today</b>", due))
		default:
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · %d d left", due, left))
		}
	}

	if desc := strings.TrimSpace(task.DescriptionText()); desc != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(desc)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// DueIcon marks overdue tasks and tasks due today or tomorrow.
func DueIcon(task model.Task, now time.Time) string {
	if task.Completed || task.DueDate.IsZero() {
		return iconDefault
	}
	switch left := DaysLeft(task, now); {
	case left < 0:
		return iconOverdue
	case left <= 1:
		return iconDue
	}
	return iconDefault
}

// DaysLeft counts calendar days from now to the task's due day in
// now's location. It is negative once the due day has passed.
func DaysLeft(task model.Task, now time.Time) int {
	loc := now.Location()
	d := task.DueDate.In(loc)
	due := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(due.Sub(today).Hours() / 24)
}
