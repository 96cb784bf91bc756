package service

import (
	"context"
	"errors"
	"time"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/internal/notify"
	"github.com/hookline/tow-bookings/internal/payments"
	"github.com/hookline/tow-bookings/internal/pricing"
	"github.com/hookline/tow-bookings/internal/repository"
	"github.com/hookline/tow-bookings/pkg/config"
	"github.com/hookline/tow-bookings/pkg/events"
	"github.com/hookline/tow-bookings/pkg/logger"
)

const idempotencyTTL = 24 * time.Hour

type BookingService interface {
	Estimate(ctx context.Context, size domain.VehicleSize, distanceKm float64) (pricing.Quote, error)
	CreatePaymentIntent(ctx context.Context, size domain.VehicleSize, distanceKm float64) (*payments.Intent, error)
	Submit(ctx context.Context, req *domain.SubmitRequest, idempotencyKey string) (*domain.SubmitResult, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error)
}

type bookingService struct {
	bookingRepo     repository.BookingRepository
	idempotencyRepo repository.IdempotencyRepository
	gateway         payments.Gateway
	notifier        notify.Notifier
	publisher       events.Publisher
	config          *config.Config
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	idempotencyRepo repository.IdempotencyRepository,
	gateway payments.Gateway,
	notifier notify.Notifier,
	publisher events.Publisher,
	config *config.Config,
) BookingService {
	return &bookingService{
		bookingRepo:     bookingRepo,
		idempotencyRepo: idempotencyRepo,
		gateway:         gateway,
		notifier:        notifier,
		publisher:       publisher,
		config:          config,
	}
}

func (s *bookingService) Estimate(ctx context.Context, size domain.VehicleSize, distanceKm float64) (pricing.Quote, error) {
	return pricing.Estimate(size, distanceKm)
}

func (s *bookingService) CreatePaymentIntent(ctx context.Context, size domain.VehicleSize, distanceKm float64) (*payments.Intent, error) {
	quote, err := pricing.Estimate(size, distanceKm)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, quote.TotalCents, "usd")
	if err != nil {
		return nil, err
	}

	event := events.PaymentIntentCreatedEvent{
		IntentID: intent.ID,
		Amount:   intent.AmountCents,
		Currency: intent.Currency,
	}
	if err := s.publisher.Publish(ctx, events.PaymentIntentCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish payment intent event", "error", err, "intent_id", intent.ID)
	}

	return intent, nil
}

// Submit runs the booking pipeline: validate, price, charge, persist,
// notify. Nothing is written until the payment has settled, so a rejected
// charge leaves no rows behind. Notification failures are logged and never
// surface to the caller.
func (s *bookingService) Submit(ctx context.Context, req *domain.SubmitRequest, idempotencyKey string) (*domain.SubmitResult, error) {
	// Validate before touching any external system
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.TestMode && !s.config.Bookings.AllowTestMode {
		return nil, domain.ValidationError{Field: "test_mode", Msg: "test bookings are not enabled"}
	}

	// Replay check: a resubmitted key returns the original booking
	if idempotencyKey != "" {
		if existingID, found, err := s.idempotencyRepo.FindBookingID(ctx, idempotencyKey); err != nil {
			return nil, domain.PersistenceError{Op: "idempotency lookup", Err: err}
		} else if found {
			existing, err := s.bookingRepo.GetByID(ctx, existingID)
			if err != nil {
				return nil, domain.PersistenceError{Op: "load replayed booking", Err: err}
			}
			if existing != nil {
				return submitResult(existing), nil
			}
			logger.WarnContext(ctx, "Idempotency key points at missing booking, creating fresh",
				"booking_id", existingID)
		}
	}

	quote, err := pricing.Estimate(req.VehicleSize, req.DistanceKm)
	if err != nil {
		return nil, err
	}

	status := domain.BookingTestMode
	if !req.TestMode {
		// Settle the intent for the quoted amount before anything persists
		if _, err := s.gateway.Confirm(ctx, req.IntentSecret, quote.TotalCents); err != nil {
			var payErr domain.PaymentError
			if errors.As(err, &payErr) {
				s.publishPaymentFailed(ctx, req.IntentSecret, quote.TotalCents, payErr.Reason)
			}
			return nil, err
		}
		status = domain.BookingPaid
	}

	booking := &domain.Booking{
		Status:         status,
		ServiceType:    req.ServiceType,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
		VehicleBrand:   req.VehicleBrand,
		VehicleModel:   req.VehicleModel,
		VehicleColor:   req.VehicleColor,
		VehiclePlate:   req.VehiclePlate,
		VehicleSize:    req.VehicleSize,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		DistanceKm:     req.DistanceKm,
		TruckCategory:  quote.Category,
		TotalCents:     quote.TotalCents,
		PickupAt:       req.PickupAt,
		PaymentMethod:  req.PaymentMethod,
		UserID:         req.UserID,
	}

	created, err := s.bookingRepo.CreateWithService(ctx, booking)
	if err != nil {
		return nil, domain.PersistenceError{Op: "create booking", Err: err}
	}

	if idempotencyKey != "" {
		if err := s.idempotencyRepo.Record(ctx, idempotencyKey, created.ID, idempotencyTTL); err != nil {
			logger.ErrorContext(ctx, "Failed to store idempotency record", "error", err, "booking_id", created.ID)
		}
	}

	s.publishCreated(ctx, created, req.TestMode)

	if err := s.notifier.BookingConfirmed(ctx, created); err != nil {
		logger.ErrorContext(ctx, "Failed to send booking notifications", "error", err, "booking_id", created.ID)
	}

	return submitResult(created), nil
}

func (s *bookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *bookingService) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	return s.bookingRepo.ListByUserID(ctx, userID, limit, offset)
}

func (s *bookingService) publishPaymentFailed(ctx context.Context, intentSecret string, amount int64, reason string) {
	intentID, _ := payments.IntentIDFromSecret(intentSecret)
	event := events.PaymentFailedEvent{
		IntentID: intentID,
		Amount:   amount,
		Reason:   reason,
		FailedAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, events.PaymentFailed, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish payment failed event", "error", err, "intent_id", intentID)
	}
}

func (s *bookingService) publishCreated(ctx context.Context, b *domain.Booking, testMode bool) {
	event := events.BookingCreatedEvent{
		BookingID:      b.ID,
		ServiceID:      b.ServiceID,
		ServiceNumber:  b.ServiceNumber,
		CustomerName:   b.CustomerName,
		CustomerPhone:  b.CustomerPhone,
		PickupAddress:  b.PickupAddress,
		DropoffAddress: b.DropoffAddress,
		VehicleSize:    string(b.VehicleSize),
		TruckCategory:  string(b.TruckCategory),
		TotalCents:     b.TotalCents,
		TestMode:       testMode,
		PickupAt:       b.PickupAt,
		CreatedAt:      b.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, events.BookingCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_id", b.ID)
	}

	if b.Status == domain.BookingPaid {
		confirmed := events.PaymentConfirmedEvent{
			BookingID:     b.ID,
			ServiceNumber: b.ServiceNumber,
			Amount:        b.TotalCents,
			ConfirmedAt:   b.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, events.PaymentConfirmed, confirmed); err != nil {
			logger.ErrorContext(ctx, "Failed to publish payment confirmed event", "error", err, "booking_id", b.ID)
		}
	}
}

func submitResult(b *domain.Booking) *domain.SubmitResult {
	return &domain.SubmitResult{
		BookingID:     b.ID,
		ServiceID:     b.ServiceID,
		ServiceNumber: b.ServiceNumber,
		Status:        b.Status,
		TotalCents:    b.TotalCents,
	}
}
