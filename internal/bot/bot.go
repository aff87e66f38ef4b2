package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskmate/internal/auth"
	"taskmate/internal/config"
	"taskmate/internal/model"
	"taskmate/internal/notify"
	"taskmate/internal/repository"
	"taskmate/internal/store"
	"taskmate/internal/tasksync"
)

// telegramAPI is the subset of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// session is one Telegram user's view of their tasks.
type session struct {
	user  *model.User
	tasks *tasksync.Synchronizer
}

// Bot aggregates the Telegram API with the task store.
type Bot struct {
	api           telegramAPI
	users         repository.UserDirectory
	table         repository.TaskTable
	reminders     *notify.Reminders
	loc           *time.Location
	now           func() time.Time
	sessions      map[int64]*session
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	pushEnabled   map[int64]bool
	mu            sync.Mutex
}

func New(token string, users repository.UserDirectory, table repository.TaskTable, scheduler *notify.Scheduler, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	loc := time.Local
	if cfg != nil && cfg.Location != nil {
		loc = cfg.Location
	}
	return newBot(api, users, table, scheduler, loc), nil
}

func newBot(api telegramAPI, users repository.UserDirectory, table repository.TaskTable, scheduler *notify.Scheduler, loc *time.Location) *Bot {
	reminders := notify.NewReminders(scheduler, map[model.Channel]notify.Sender{
		model.ChannelPush:     notify.NewTelegramSender(api),
		model.ChannelEmail:    notify.LogSender{Channel: string(model.ChannelEmail)},
		model.ChannelWhatsApp: notify.LogSender{Channel: string(model.ChannelWhatsApp)},
	})
	return &Bot{
		api:           api,
		users:         users,
		table:         table,
		reminders:     reminders,
		loc:           loc,
		now:           time.Now,
		sessions:      make(map[int64]*session),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		pushEnabled:   make(map[int64]bool),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. Pick something from the menu to start over.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		log.Printf("[info] conversation step %d from %d", b.getConversation(msg.From.ID).stage, msg.From.ID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Send /newtask to add a task or /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "calendar":
		return b.handleCalendar(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "remind":
		return b.handleRemind(ctx, msg)
	case "unremind":
		return b.handleUnremind(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.session(ctx, msg.From)
	if err != nil {
		return err
	}

	b.registerPush(ctx, msg, s.user)

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your to-do list and remind you about it.</b>\n\n%s", escape(name), commandList)
	return b.sendText(msg.Chat.ID, text)
}

const commandList = "Commands:\n" +
	"• /newtask — add a task step by step\n" +
	"• /tasks — open tasks with buttons to complete or delete\n" +
	"• /done &lt;n&gt; — toggle task number n\n" +
	"• /delete &lt;n&gt; — delete task number n\n" +
	"• /stats — completion statistics\n" +
	"• /calendar [YYYY-MM] — tasks by day of the month\n" +
	"• /categories — tasks per category\n" +
	"• /remind &lt;n&gt; YYYY-MM-DD HH:MM — reminder for task n\n" +
	"• /unremind &lt;id&gt; — cancel a reminder\n" +
	"• /report — the periodic report, right now\n" +
	"• /cancel — abort the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+commandList)
}

// SendDailyReports sends a digest to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now().In(b.loc)
	for i := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		user := users[i]
		s := b.sessionFor(&user)
		s.tasks.Fetch(ctx)
		state := s.tasks.Snapshot()
		if state.Err != "" {
			log.Printf("build digest for user %d: %s", user.TelegramID, state.Err)
			continue
		}
		if err := b.sendText(user.TelegramID, notify.Digest(state.Tasks, now)); err != nil {
			log.Printf("send digest to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

// session upserts the Telegram user and returns their synchronizer,
// creating and activating it on first use.
func (b *Bot) session(ctx context.Context, from *tgbotapi.User) (*session, error) {
	user, err := b.users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	s := b.sessionFor(user)
	s.tasks.Activate(ctx)
	return s, nil
}

func (b *Bot) sessionFor(user *model.User) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[user.TelegramID]; ok {
		return s
	}
	client := store.NewClient(b.table, auth.StaticSource{User: user})
	s := &session{user: user, tasks: tasksync.New(client)}
	telegramID := user.TelegramID
	s.tasks.OnChange(func(st tasksync.State) {
		if st.Err != "" {
			log.Printf("tasks of %d: %s", telegramID, st.Err)
		}
	})
	b.sessions[user.TelegramID] = s
	return s
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

// registerPush asks the chat for push permission and records the answer.
func (b *Bot) registerPush(ctx context.Context, msg *tgbotapi.Message, user *model.User) bool {
	token, err := notify.Register(ctx, chatPermissions{chat: msg.Chat}, chatToken{chatID: msg.Chat.ID})
	if err != nil {
		log.Printf("register push for %d: %v", msg.From.ID, err)
	}
	b.mu.Lock()
	b.pushEnabled[msg.From.ID] = token != ""
	b.mu.Unlock()
	if token != "" {
		log.Printf("[info] push registered user=%s token=%s", user.ID, token)
	}
	return token != ""
}

// pushAllowed reports whether reminders may be pushed to the sender. A
// sender seen for the first time since startup is registered on the spot.
func (b *Bot) pushAllowed(ctx context.Context, msg *tgbotapi.Message, user *model.User) bool {
	b.mu.Lock()
	enabled, known := b.pushEnabled[msg.From.ID]
	b.mu.Unlock()
	if known && enabled {
		return true
	}
	return b.registerPush(ctx, msg, user)
}

// chatPermissions treats a private chat with the bot as consent to push
// messages.
type chatPermissions struct {
	chat *tgbotapi.Chat
}

func (p chatPermissions) Status(context.Context) (notify.PermissionStatus, error) {
	if p.chat != nil && p.chat.IsPrivate() {
		return notify.PermissionGranted, nil
	}
	return notify.PermissionUndetermined, nil
}

func (p chatPermissions) Request(ctx context.Context) (notify.PermissionStatus, error) {
	if status, _ := p.Status(ctx); status == notify.PermissionGranted {
		return status, nil
	}
	return notify.PermissionDenied, nil
}

// chatToken uses the chat id as the device token.
type chatToken struct {
	chatID int64
}

func (t chatToken) Token(context.Context) (string, error) {
	return strconv.FormatInt(t.chatID, 10), nil
}
