package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/pkg/config"
	"github.com/hookline/tow-bookings/pkg/events"
)

// Notifier sends best-effort notifications after a booking lands. Failures
// are reported but never roll back the booking.
type Notifier interface {
	BookingConfirmed(ctx context.Context, booking *domain.Booking) error
}

// DispatchNotifier fans a confirmed booking out as notify.send events, one
// for the customer and one for the dispatch desk. A worker drains the
// subject and delivers the emails.
type DispatchNotifier struct {
	publisher events.Publisher
	cfg       config.BookingsConfig
}

func NewDispatchNotifier(publisher events.Publisher, cfg config.BookingsConfig) *DispatchNotifier {
	return &DispatchNotifier{publisher: publisher, cfg: cfg}
}

func (n *DispatchNotifier) BookingConfirmed(ctx context.Context, booking *domain.Booking) error {
	msgs := []events.NotificationEvent{customerMessage(booking, n.cfg.ReceiptBaseURL)}
	if n.cfg.DispatchEmail != "" {
		msgs = append(msgs, dispatchMessage(booking, n.cfg))
	}

	for _, msg := range msgs {
		if err := n.publisher.Publish(ctx, events.NotifySend, msg); err != nil {
			return domain.NotificationError{Channel: "email", Err: err}
		}
	}
	return nil
}

func customerMessage(b *domain.Booking, receiptBaseURL string) events.NotificationEvent {
	subject := fmt.Sprintf("Tow booked: %s", b.ServiceNumber)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s,\n\n", b.CustomerName)
	fmt.Fprintf(&sb, "Your tow truck is booked. Reference %s.\n\n", b.ServiceNumber)
	fmt.Fprintf(&sb, "Pickup:   %s\n", b.PickupAddress)
	fmt.Fprintf(&sb, "Dropoff:  %s\n", b.DropoffAddress)
	fmt.Fprintf(&sb, "When:     %s\n", b.PickupAt.Format("Mon, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&sb, "Truck:    %s\n", b.TruckCategory)
	fmt.Fprintf(&sb, "Total:    %s\n", domain.FormatUSD(b.TotalCents))
	if receiptBaseURL != "" {
		fmt.Fprintf(&sb, "\nVerify this booking: %s/verify/%s\n", strings.TrimRight(receiptBaseURL, "/"), b.ServiceNumber)
	}

	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your tow truck is booked. Reference <b>%s</b>.</p>`+
			`<p>Pickup: %s<br>Dropoff: %s<br>Total: <b>%s</b></p>`,
		b.CustomerName, b.ServiceNumber, b.PickupAddress, b.DropoffAddress, domain.FormatUSD(b.TotalCents))

	return events.NotificationEvent{
		Recipient:     b.CustomerEmail,
		RecipientName: b.CustomerName,
		Subject:       subject,
		Text:          sb.String(),
		HTML:          html,
	}
}

func dispatchMessage(b *domain.Booking, cfg config.BookingsConfig) events.NotificationEvent {
	subject := fmt.Sprintf("New tow job %s (%s truck)", b.ServiceNumber, b.TruckCategory)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Job %s\n\n", b.ServiceNumber)
	fmt.Fprintf(&sb, "Customer: %s (%s)\n", b.CustomerName, b.CustomerPhone)
	fmt.Fprintf(&sb, "Vehicle:  %s %s, %s, plate %s\n", b.VehicleBrand, b.VehicleModel, b.VehicleColor, b.VehiclePlate)
	fmt.Fprintf(&sb, "Pickup:   %s\n", b.PickupAddress)
	fmt.Fprintf(&sb, "Dropoff:  %s\n", b.DropoffAddress)
	fmt.Fprintf(&sb, "When:     %s\n", b.PickupAt.Format("Mon, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&sb, "Distance: %.1f km\n", b.DistanceKm)
	fmt.Fprintf(&sb, "Status:   %s\n", b.Status)

	return events.NotificationEvent{
		Recipient:     cfg.DispatchEmail,
		RecipientName: cfg.DispatchName,
		Subject:       subject,
		Text:          sb.String(),
	}
}
