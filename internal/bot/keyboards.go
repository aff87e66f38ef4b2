package bot

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskmate/internal/model"
)

const (
	btnSkip           = "⏭️ Skip"
	btnConfirm        = "✅ Confirm"
	btnCancel         = "↩️ Keep"
	btnCancelDialog   = "⏪ Cancel input"
	menuLabelNewTask  = "➕ New task"
	menuLabelTasks    = "📋 Tasks"
	menuLabelStats    = "📊 Stats"
	menuLabelCalendar = "🗓 Calendar"
	menuLabelHelp     = "ℹ️ Help"
)

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStats),
			tgbotapi.NewKeyboardButton(menuLabelCalendar),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// categoryKeyboard lays the fixed categories out two per row.
func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(model.Categories); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(model.Categories[i]))
		if i+1 < len(model.Categories) {
			row = append(row, tgbotapi.NewKeyboardButton(model.Categories[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	row := tgbotapi.NewKeyboardButtonRow()
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		row = append(row, tgbotapi.NewKeyboardButton(priorityIcon(p)+" "+priorityLabel(p)))
	}
	kb := tgbotapi.NewReplyKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "keep" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "⚪"
	default:
		return "🟡"
	}
}

func priorityLabel(p model.Priority) string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// priorityFromLabel strips the keyboard icon from a priority button.
func priorityFromLabel(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, ' '); i >= 0 && !strings.ContainsAny(text[:i], "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		text = text[i+1:]
	}
	return text
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func categoryLabel(name string) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base = model.Uncategorized
	}
	var icon string
	switch strings.ToLower(base) {
	case "learning":
		icon = "🎓"
	case "work":
		icon = "💼"
	case "shopping":
		icon = "🛒"
	case "health":
		icon = "🩺"
	case "personal":
		icon = "🧩"
	case strings.ToLower(model.Uncategorized):
		icon = "📁"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(normalizeTitle(base)))
}
