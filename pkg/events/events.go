package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hookline/tow-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event types and subjects
const (
	// Booking events
	BookingCreated = "booking.created"
	BookingUpdated = "booking.updated"
	BookingDeleted = "booking.deleted"

	// Payment events
	PaymentIntentCreated = "payment.intent.created"
	PaymentConfirmed     = "payment.confirmed"
	PaymentFailed        = "payment.failed"

	// Notification events
	NotifySend = "notify.send"
)

// Event payloads
type BookingCreatedEvent struct {
	BookingID      int64     `json:"booking_id"`
	ServiceID      int64     `json:"service_id"`
	ServiceNumber  string    `json:"service_number"`
	CustomerName   string    `json:"customer_name"`
	CustomerPhone  string    `json:"customer_phone"`
	PickupAddress  string    `json:"pickup_address"`
	DropoffAddress string    `json:"dropoff_address"`
	VehicleSize    string    `json:"vehicle_size"`
	TruckCategory  string    `json:"truck_category"`
	TotalCents     int64     `json:"total_cents"`
	TestMode       bool      `json:"test_mode"`
	PickupAt       time.Time `json:"pickup_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type BookingUpdatedEvent struct {
	BookingID int64     `json:"booking_id"`
	Changes   []string  `json:"changes"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BookingDeletedEvent struct {
	BookingID int64     `json:"booking_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

type PaymentIntentCreatedEvent struct {
	IntentID string `json:"intent_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type PaymentConfirmedEvent struct {
	BookingID     int64     `json:"booking_id"`
	ServiceNumber string    `json:"service_number"`
	Amount        int64     `json:"amount"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

type PaymentFailedEvent struct {
	IntentID string    `json:"intent_id"`
	Amount   int64     `json:"amount"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

type NotificationEvent struct {
	Recipient     string `json:"recipient"`
	RecipientName string `json:"recipient_name"`
	Subject       string `json:"subject"`
	Text          string `json:"text"`
	HTML          string `json:"html"`
}
