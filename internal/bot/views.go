package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskmate/internal/model"
	"taskmate/internal/notify"
	"taskmate/internal/stats"
)

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}
	s.tasks.Fetch(ctx)
	summary := stats.Summarize(s.tasks.Snapshot().Tasks)

	var builder strings.Builder
	builder.WriteString("📊 <b>Statistics</b>\n")
	builder.WriteString(fmt.Sprintf("Completed: %d of %d (%.0f%%)\n", summary.Completed, summary.Total, summary.CompletionRate))
	builder.WriteString(fmt.Sprintf("Pending: %d\n\n", summary.Pending()))

	builder.WriteString("<b>By priority</b>\n")
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		builder.WriteString(fmt.Sprintf("%s %s: %d\n", priorityIcon(p), priorityLabel(p), summary.ByPriority[p]))
	}

	if len(summary.ByCategory) > 0 {
		builder.WriteString("\n<b>By category</b>\n")
		for _, group := range stats.GroupByCategory(s.tasks.Snapshot().Tasks) {
			builder.WriteString(fmt.Sprintf("%s: %d\n", categoryLabel(group.Label), len(group.Tasks)))
		}
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleCalendar(ctx context.Context, msg *tgbotapi.Message) error {
	anchor := b.now().In(b.loc)
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		m, err := time.ParseInLocation("2006-01", args, b.loc)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Use the month as YYYY-MM, e.g. /calendar 2025-11")
		}
		anchor = m
	}

	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}
	s.tasks.Fetch(ctx)
	return b.sendText(msg.Chat.ID, renderMonth(anchor, s.tasks.Snapshot().Tasks, b.loc))
}

// renderMonth lists only the days of the month that have tasks.
func renderMonth(anchor time.Time, tasks []model.Task, loc *time.Location) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n", anchor.In(loc).Format("January 2006")))

	empty := true
	for _, day := range stats.Month(anchor, tasks, loc) {
		if len(day.Tasks) == 0 {
			continue
		}
		empty = false
		builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", day.Date.Format("Mon 02")))
		for _, task := range day.Tasks {
			mark := "▫️"
			if task.Completed {
				mark = "✔️"
			}
			builder.WriteString(fmt.Sprintf("%s %s\n", mark, escape(normalizeTitle(task.Title))))
		}
	}
	if empty {
		builder.WriteString("Nothing due this month.")
	}
	return strings.TrimSpace(builder.String())
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}

	s.tasks.Fetch(ctx)
	tasks := s.tasks.Snapshot().Tasks
	counts := stats.Summarize(tasks).ByCategory
	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	seen := map[string]bool{}
	for _, name := range model.Categories {
		if name == model.CategoryOther {
			continue
		}
		seen[strings.ToLower(name)] = true
		builder.WriteString(fmt.Sprintf("• %s · %d\n", categoryLabel(name), counts[name]))
	}
	for _, group := range stats.GroupByCategory(tasks) {
		if seen[strings.ToLower(group.Label)] {
			continue
		}
		builder.WriteString(fmt.Sprintf("• %s · %d\n", categoryLabel(group.Label), len(group.Tasks)))
	}
	builder.WriteString("\nPick «Other» in /newtask to use your own name.")
	return b.sendText(msg.Chat.ID, builder.String())
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}
	s.tasks.Fetch(ctx)
	state := s.tasks.Snapshot()
	if state.Err != "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't build the report: %s", escape(state.Err)))
	}
	return b.sendText(msg.Chat.ID, notify.Digest(state.Tasks, b.now().In(b.loc)))
}

func (b *Bot) handleRemind(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}

	if !b.pushAllowed(ctx, msg, s.user) {
		return b.sendText(msg.Chat.ID, "Reminders only work in a private chat with me.")
	}

	n, at, err := parseReminderArgs(msg.CommandArguments(), b.loc)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /remind &lt;n&gt; YYYY-MM-DD HH:MM")
	}
	open := openTasks(s.tasks.Snapshot().Tasks)
	if n > len(open) {
		return b.sendText(msg.Chat.ID, "Task not found.")
	}
	task := open[n-1]

	to := notify.Recipient{UserID: s.user.ID, TelegramID: s.user.TelegramID, Email: s.user.Email}
	id, err := b.reminders.ScheduleTaskReminder(to, task, at, model.ChannelPush)
	if err != nil {
		if errors.Is(err, notify.ErrReminderInPast) {
			return b.sendText(msg.Chat.ID, "That time has already passed.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't schedule the reminder: %s", escape(err.Error())))
	}
	log.Printf("[info] reminder set id=%s task=%s user=%s", id, task.ID, s.user.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔔 I'll remind you about «%s» on %s.\nCancel with /unremind %s",
		escape(normalizeTitle(task.Title)), at.Format("2006-01-02 15:04"), id))
}

func (b *Bot) handleUnremind(msg *tgbotapi.Message) error {
	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		return b.sendText(msg.Chat.ID, "Usage: /unremind &lt;id&gt;")
	}
	if !b.reminders.CancelTaskReminder(id) {
		return b.sendText(msg.Chat.ID, "No pending reminder with that id.")
	}
	return b.sendText(msg.Chat.ID, "🔕 Reminder cancelled.")
}

func parseReminderArgs(args string, loc *time.Location) (int, time.Time, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return 0, time.Time{}, fmt.Errorf("expected <n> <date> <time>, got %d fields", len(fields))
	}
	n, err := parseIndex(fields[0])
	if err != nil {
		return 0, time.Time{}, err
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", fields[1]+" "+fields[2], loc)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("reminder time: %w", err)
	}
	return n, at, nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(ctx, msg)
	case strings.ToLower(menuLabelCalendar):
		return true, b.handleCalendar(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}
