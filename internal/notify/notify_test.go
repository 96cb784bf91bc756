package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/internal/notify"
	"github.com/hookline/tow-bookings/pkg/config"
	"github.com/hookline/tow-bookings/pkg/events"
)

// ---------- Mocks ----------

type capturingPublisher struct {
	subjects []string
	payloads []events.NotificationEvent
	err      error
}

func (p *capturingPublisher) Publish(_ context.Context, subject string, data interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	if note, ok := data.(events.NotificationEvent); ok {
		p.payloads = append(p.payloads, note)
	}
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

type fakeSubscriber struct {
	subject string
	queue   string
	handler func(msg *events.Message)
}

func (s *fakeSubscriber) Subscribe(subject string, handler func(msg *events.Message)) error {
	s.subject = subject
	s.handler = handler
	return nil
}

func (s *fakeSubscriber) QueueSubscribe(subject, queue string, handler func(msg *events.Message)) error {
	s.subject = subject
	s.queue = queue
	s.handler = handler
	return nil
}

func (s *fakeSubscriber) Close() error { return nil }

func (s *fakeSubscriber) push(t *testing.T, data []byte) {
	t.Helper()
	if s.handler == nil {
		t.Fatal("no handler subscribed")
	}
	s.handler(&events.Message{Subject: s.subject, Data: data, Timestamp: time.Now()})
}

type capturingSender struct {
	recipients []string
	subjects   []string
	err        error
}

func (c *capturingSender) Send(_ context.Context, toEmail, _, subject, _, _ string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.recipients = append(c.recipients, toEmail)
	c.subjects = append(c.subjects, subject)
	return "msg-1", nil
}

// ---------- Test Setup ----------

func confirmedBooking() *domain.Booking {
	return &domain.Booking{
		ID:             1,
		ServiceID:      101,
		ServiceNumber:  "TOW-1234ABCD",
		Status:         domain.BookingPaid,
		ServiceType:    "tow",
		CustomerName:   "Dana Whitfield",
		CustomerPhone:  "5551234567",
		CustomerEmail:  "dana@example.com",
		VehicleBrand:   "Subaru",
		VehicleModel:   "Outback",
		PickupAddress:  "12 Harbor Rd",
		DropoffAddress: "900 Depot St",
		DistanceKm:     10,
		TruckCategory:  domain.TruckStandard,
		TotalCents:     9000,
		PickupAt:       time.Now().Add(24 * time.Hour),
	}
}

func dispatchConfig() config.BookingsConfig {
	return config.BookingsConfig{
		DispatchEmail:  "desk@example.com",
		DispatchName:   "Dispatch Desk",
		ReceiptBaseURL: "https://tow.example.com",
	}
}

// ---------- Tests ----------

func TestBookingConfirmed_FansOutCustomerAndDispatch(t *testing.T) {
	pub := &capturingPublisher{}
	notifier := notify.NewDispatchNotifier(pub, dispatchConfig())

	if err := notifier.BookingConfirmed(context.Background(), confirmedBooking()); err != nil {
		t.Fatalf("BookingConfirmed() error = %v", err)
	}

	if len(pub.payloads) != 2 {
		t.Fatalf("published %d messages, want customer + dispatch", len(pub.payloads))
	}
	for _, subject := range pub.subjects {
		if subject != events.NotifySend {
			t.Errorf("published on %q, want %q", subject, events.NotifySend)
		}
	}

	customer, desk := pub.payloads[0], pub.payloads[1]
	if customer.Recipient != "dana@example.com" {
		t.Errorf("customer recipient = %q", customer.Recipient)
	}
	if !strings.Contains(customer.Text, "TOW-1234ABCD") || !strings.Contains(customer.Text, "$90.00") {
		t.Error("customer message missing reference or total")
	}
	if !strings.Contains(customer.Text, "https://tow.example.com/verify/TOW-1234ABCD") {
		t.Error("customer message missing verify link")
	}
	if desk.Recipient != "desk@example.com" {
		t.Errorf("dispatch recipient = %q", desk.Recipient)
	}
	if !strings.Contains(desk.Text, "5551234567") || !strings.Contains(desk.Text, "Subaru") {
		t.Error("dispatch message missing customer phone or vehicle")
	}
}

func TestBookingConfirmed_NoDispatchAddressConfigured(t *testing.T) {
	pub := &capturingPublisher{}
	cfg := dispatchConfig()
	cfg.DispatchEmail = ""
	notifier := notify.NewDispatchNotifier(pub, cfg)

	if err := notifier.BookingConfirmed(context.Background(), confirmedBooking()); err != nil {
		t.Fatalf("BookingConfirmed() error = %v", err)
	}
	if len(pub.payloads) != 1 {
		t.Errorf("published %d messages, want customer only", len(pub.payloads))
	}
}

func TestBookingConfirmed_PublishFailureIsNotificationError(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("nats down")}
	notifier := notify.NewDispatchNotifier(pub, dispatchConfig())

	err := notifier.BookingConfirmed(context.Background(), confirmedBooking())
	if !domain.IsNotification(err) {
		t.Fatalf("expected notification error, got %v", err)
	}
}

func TestWorker_DeliversQueuedNotification(t *testing.T) {
	sub := &fakeSubscriber{}
	sender := &capturingSender{}
	worker := notify.NewWorker(sub, sender)

	if err := worker.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sub.subject != events.NotifySend {
		t.Errorf("subscribed to %q, want %q", sub.subject, events.NotifySend)
	}
	if sub.queue == "" {
		t.Error("not a queue subscription; every worker would receive every message")
	}

	data, _ := json.Marshal(events.NotificationEvent{
		Recipient:     "dana@example.com",
		RecipientName: "Dana Whitfield",
		Subject:       "Tow booked: TOW-1234ABCD",
		Text:          "Your tow truck is booked.",
	})
	sub.push(t, data)

	if len(sender.recipients) != 1 {
		t.Fatalf("sender called %d times, want 1", len(sender.recipients))
	}
	if sender.recipients[0] != "dana@example.com" {
		t.Errorf("sender recipient = %q", sender.recipients[0])
	}
	if sender.subjects[0] != "Tow booked: TOW-1234ABCD" {
		t.Errorf("sender subject = %q", sender.subjects[0])
	}
}

func TestWorker_DropsBadMessages(t *testing.T) {
	sub := &fakeSubscriber{}
	sender := &capturingSender{}
	worker := notify.NewWorker(sub, sender)

	if err := worker.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sub.push(t, []byte("not json"))

	missing, _ := json.Marshal(events.NotificationEvent{Subject: "no recipient"})
	sub.push(t, missing)

	if len(sender.recipients) != 0 {
		t.Errorf("sender called %d times for bad messages", len(sender.recipients))
	}
}

func TestNewSender_PicksBackendByProvider(t *testing.T) {
	cfg := config.EmailConfig{
		MailerSendKey: "key",
		From:          "noreply@example.com",
		SMTPHost:      "localhost",
		SMTPPort:      1025,
	}

	cfg.Provider = "mailersend"
	if _, ok := notify.NewSender(cfg).(*notify.MailerSendMailer); !ok {
		t.Error("provider mailersend did not pick the MailerSend backend")
	}

	cfg.Provider = "smtp"
	if _, ok := notify.NewSender(cfg).(*notify.SMTPMailer); !ok {
		t.Error("provider smtp did not pick the SMTP backend")
	}

	cfg.Provider = "log"
	if _, ok := notify.NewSender(cfg).(*notify.LogMailer); !ok {
		t.Error("provider log did not pick the log backend")
	}

	cfg.Provider = "carrier-pigeon"
	if _, ok := notify.NewSender(cfg).(*notify.LogMailer); !ok {
		t.Error("unknown provider did not fall back to the log backend")
	}
}
