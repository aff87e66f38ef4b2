package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskmate/internal/model"
	"taskmate/internal/notify"
	"taskmate/internal/stats"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stageCustomCategory
	stageDueDate
	stagePriority
)

const (
	cbTogglePrefix = "toggle:"
	cbDeletePrefix = "delete:"
)

type conversationState struct {
	stage  conversationStage
	fields model.TaskFields
}

type confirmationRequest struct {
	taskID string
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.session(ctx, msg.From); err != nil {
		return err
	}
	log.Printf("[info] start new task conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title can't be empty. What should the task be called?", cancelKeyboard())
		}
		state.fields.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or tap «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) && text != "" {
			state.fields.Description = &text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category.", categoryKeyboard())
	case stageCategory:
		if strings.EqualFold(text, model.CategoryOther) {
			state.stage = stageCustomCategory
			return b.sendWithReplyMarkup(msg.Chat.ID, "Type the category name.", cancelKeyboard())
		}
		choice := ""
		if !isSkipInput(text) {
			choice = text
		}
		category := model.ResolveCategory(choice, "")
		state.fields.Category = &category
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due date as <code>2025-11-30</code> (or «Skip» for today).", skipKeyboard())
	case stageCustomCategory:
		category := model.ResolveCategory(model.CategoryOther, text)
		state.fields.Category = &category
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due date as <code>2025-11-30</code> (or «Skip» for today).", skipKeyboard())
	case stageDueDate:
		due := b.today()
		if !isSkipInput(text) {
			parsed, err := time.ParseInLocation("2006-01-02", text, b.loc)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "I can't read that date. Use <code>2025-11-30</code> or «Skip».", skipKeyboard())
			}
			due = parsed
		}
		state.fields.DueDate = due
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "🚦 Priority?", priorityKeyboard())
	case stagePriority:
		priority := model.PriorityMedium
		if !isSkipInput(text) {
			p, err := model.ParsePriority(priorityFromLabel(text))
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick low, medium or high.", priorityKeyboard())
			}
			priority = p
		}
		state.fields.Priority = priority
		err := b.finishTaskCreation(ctx, msg.From, state.fields, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "The dialog was reset. Try /newtask again.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, fields model.TaskFields, chatID int64) error {
	s, err := b.session(ctx, from)
	if err != nil {
		return err
	}

	task := s.tasks.Add(ctx, fields)
	if task == nil {
		return b.sendText(chatID, fmt.Sprintf("Couldn't save the task: %s", escape(s.tasks.Snapshot().Err)))
	}

	log.Printf("[info] task created id=%s user=%s", task.ID, s.user.ID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if desc := task.DescriptionText(); desc != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(desc)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", categoryLabel(task.CategoryName())))
	summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(b.loc).Format("2006-01-02")))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", priorityLabel(task.Priority)))

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendTaskList(chatID, s)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}
	s.tasks.Fetch(ctx)
	log.Printf("[info] list tasks for user=%s", s.user.ID)
	return b.sendTaskList(msg.Chat.ID, s)
}

// sendTaskList renders open tasks grouped by category. The numbers shown
// are the ones /done and /delete accept.
func (b *Bot) sendTaskList(chatID int64, s *session) error {
	state := s.tasks.Snapshot()
	if state.Err != "" && len(state.Tasks) == 0 {
		return b.sendText(chatID, fmt.Sprintf("Couldn't load tasks: %s", escape(state.Err)))
	}

	open := openTasks(state.Tasks)
	if len(open) == 0 {
		return b.sendText(chatID, "No open tasks. Add one with /newtask.")
	}
	numbers := make(map[string]int, len(open))
	for i, task := range open {
		numbers[task.ID] = i + 1
	}

	now := b.now().In(b.loc)
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Tap ✅ to mark a task done or 🗑 to delete it.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, group := range stats.GroupByCategory(open) {
		sort.SliceStable(group.Tasks, func(i, j int) bool {
			return numbers[group.Tasks[i].ID] < numbers[group.Tasks[j].ID]
		})
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", categoryLabel(group.Label)))
		for _, task := range group.Tasks {
			n := numbers[task.ID]
			builder.WriteString(fmt.Sprintf("<b>%d.</b> %s %s", n, priorityIcon(task.Priority), notify.FormatTask(task, now)))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ %d · %s", n, shortTitle(task.Title, 24)), cbTogglePrefix+task.ID),
				tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
			))
		}
		builder.WriteByte('\n')
	}
	if done := len(state.Tasks) - len(open); done > 0 {
		builder.WriteString(fmt.Sprintf("✔️ %d completed", done))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}
	task, ok := b.taskByNumber(msg, s, "/done 2")
	if !ok {
		return nil
	}
	return b.toggleAndReport(ctx, msg.Chat.ID, s, task.ID)
}

func (b *Bot) toggleAndReport(ctx context.Context, chatID int64, s *session, taskID string) error {
	if _, ok := s.tasks.Find(taskID); !ok {
		return b.sendText(chatID, "Task not found.")
	}
	updated := s.tasks.ToggleComplete(ctx, taskID)
	if updated == nil {
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(s.tasks.Snapshot().Err)))
	}

	log.Printf("[info] task toggled id=%s user=%s completed=%t", updated.ID, s.user.ID, updated.Completed)
	text := fmt.Sprintf("✅ «%s» is done.", escape(normalizeTitle(updated.Title)))
	if !updated.Completed {
		text = fmt.Sprintf("↩️ «%s» is open again.", escape(normalizeTitle(updated.Title)))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}
	task, ok := b.taskByNumber(msg, s, "/delete 2")
	if !ok {
		return nil
	}
	return b.askDeleteConfirmation(msg.Chat.ID, msg.From.ID, task)
}

// taskByNumber resolves the list number in the command arguments. It
// answers the user itself when the number is missing or unknown.
func (b *Bot) taskByNumber(msg *tgbotapi.Message, s *session, example string) (model.Task, bool) {
	n, err := parseIndex(msg.CommandArguments())
	if err != nil {
		if sendErr := b.sendText(msg.Chat.ID, fmt.Sprintf("Give the task number from /tasks, e.g. %s", example)); sendErr != nil {
			log.Printf("send usage: %v", sendErr)
		}
		return model.Task{}, false
	}
	open := openTasks(s.tasks.Snapshot().Tasks)
	if n > len(open) {
		if sendErr := b.sendText(msg.Chat.ID, "Task not found."); sendErr != nil {
			log.Printf("send not found: %v", sendErr)
		}
		return model.Task{}, false
	}
	return open[n-1], true
}

func (b *Bot) askDeleteConfirmation(chatID, userID int64, task model.Task) error {
	text := fmt.Sprintf("Delete «%s»?", escape(normalizeTitle(task.Title)))
	b.setConfirmation(userID, confirmationRequest{taskID: task.ID})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "🔹 Kept it.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel the deletion.", confirmKeyboard())
	}
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID string) error {
	s, err := b.session(ctx, from)
	if err != nil {
		return err
	}

	task, known := s.tasks.Find(taskID)
	if !s.tasks.Remove(ctx, taskID) {
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(s.tasks.Snapshot().Err)))
	}

	log.Printf("[info] task deleted id=%s user=%s", taskID, s.user.ID)
	text := "🗑 Task deleted."
	if known {
		text = fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title)))
	}
	if err := b.sendText(chatID, text); err != nil {
		return err
	}
	return b.sendTaskList(chatID, s)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ack(cb)

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		log.Printf("[info] callback toggle user=%d task=%s", cb.From.ID, strings.TrimPrefix(data, cbTogglePrefix))
		s, err := b.session(ctx, cb.From)
		if err != nil {
			return err
		}
		if err := b.toggleAndReport(ctx, cb.Message.Chat.ID, s, strings.TrimPrefix(data, cbTogglePrefix)); err != nil {
			return err
		}
		return b.sendTaskList(cb.Message.Chat.ID, s)
	case strings.HasPrefix(data, cbDeletePrefix):
		log.Printf("[info] callback delete request user=%d task=%s", cb.From.ID, strings.TrimPrefix(data, cbDeletePrefix))
		s, err := b.session(ctx, cb.From)
		if err != nil {
			return err
		}
		task, ok := s.tasks.Find(strings.TrimPrefix(data, cbDeletePrefix))
		if !ok {
			return b.sendText(cb.Message.Chat.ID, "Task not found.")
		}
		return b.askDeleteConfirmation(cb.Message.Chat.ID, cb.From.ID, task)
	default:
		return nil
	}
}

// openTasks returns incomplete tasks ordered by due date, then newest
// first.
func openTasks(tasks []model.Task) []model.Task {
	var open []model.Task
	for _, task := range tasks {
		if !task.Completed {
			open = append(open, task)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].DueDate.Before(open[j].DueDate)
	})
	return open
}

func parseIndex(args string) (int, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, fmt.Errorf("missing task number")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(fields[0], "#"))
	if err != nil {
		return 0, fmt.Errorf("task number: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("task number must be positive")
	}
	return n, nil
}

func (b *Bot) today() time.Time {
	now := b.now().In(b.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.loc)
}
