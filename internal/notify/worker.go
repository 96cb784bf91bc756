package notify

import (
	"context"
	"encoding/json"

	"github.com/hookline/tow-bookings/pkg/events"
	"github.com/hookline/tow-bookings/pkg/logger"
)

const workerQueue = "notify-workers"

// Worker drains notify.send and delivers each message through the
// configured sender. Messages it cannot parse are dropped, not retried.
type Worker struct {
	subscriber events.Subscriber
	sender     Sender
}

func NewWorker(subscriber events.Subscriber, sender Sender) *Worker {
	return &Worker{subscriber: subscriber, sender: sender}
}

func (w *Worker) Start() error {
	return w.subscriber.QueueSubscribe(events.NotifySend, workerQueue, w.handle)
}

func (w *Worker) handle(msg *events.Message) {
	ctx := context.WithValue(context.Background(), logger.ServiceKey, "notify-worker")

	var note events.NotificationEvent
	if err := json.Unmarshal(msg.Data, &note); err != nil {
		logger.ErrorContext(ctx, "Dropping malformed notification", "error", err)
		return
	}
	if note.Recipient == "" {
		logger.WarnContext(ctx, "Dropping notification without recipient", "subject", note.Subject)
		return
	}

	msgID, err := w.sender.Send(ctx, note.Recipient, note.RecipientName, note.Subject, note.Text, note.HTML)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to send notification",
			"recipient", note.Recipient,
			"subject", note.Subject,
			"error", err)
		return
	}

	logger.InfoContext(ctx, "Notification sent",
		"recipient", note.Recipient,
		"message_id", msgID)
}
