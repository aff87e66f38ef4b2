// Package notify schedules task reminders and delivers them over the
// user's chosen channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taskmate/internal/model"
)

// Recipient addresses a user on every channel they may be reached on.
type Recipient struct {
	UserID     string
	TelegramID int64
	Email      string
	Phone      string
}

// Notification is one message to deliver.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers notifications over one channel.
type Sender interface {
	Send(ctx context.Context, to Recipient, n Notification) error
}

var ErrReminderInPast = errors.New("reminder time is in the past")

// Reminders schedules task reminders and routes them to channel senders.
type Reminders struct {
	scheduler   *Scheduler
	senders     map[model.Channel]Sender
	sendTimeout time.Duration
	now         func() time.Time
}

func NewReminders(scheduler *Scheduler, senders map[model.Channel]Sender) *Reminders {
	return &Reminders{
		scheduler:   scheduler,
		senders:     senders,
		sendTimeout: 30 * time.Second,
		now:         time.Now,
	}
}

// TaskReminder builds the notification sent for task.
func TaskReminder(task model.Task) Notification {
	return Notification{
		Title: "Task Reminder",
		Body:  fmt.Sprintf("Don't forget: %s", task.Title),
		Data:  map[string]string{"taskId": task.ID},
	}
}

// ScheduleTaskReminder arranges for a reminder about task to reach to over
// channel at the given time and returns an identifier for cancellation.
func (r *Reminders) ScheduleTaskReminder(to Recipient, task model.Task, at time.Time, channel model.Channel) (string, error) {
	sender, ok := r.senders[channel]
	if !ok {
		return "", fmt.Errorf("no sender for channel %q", channel)
	}
	if !at.After(r.now()) {
		return "", ErrReminderInPast
	}

	n := TaskReminder(task)
	id := r.scheduler.ScheduleAt(at, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
		defer cancel()
		if err := sender.Send(ctx, to, n); err != nil {
			log.Printf("send %s reminder for task %s: %v", channel, task.ID, err)
			return
		}
		log.Printf("[info] %s reminder sent task=%s user=%s", channel, task.ID, to.UserID)
	})
	log.Printf("[info] reminder scheduled id=%s task=%s at=%s", id, task.ID, at.Format(time.RFC3339))
	return id, nil
}

// CancelTaskReminder cancels a pending reminder. Unknown identifiers are
// ignored.
func (r *Reminders) CancelTaskReminder(id string) bool {
	return r.scheduler.Cancel(id)
}
