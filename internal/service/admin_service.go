package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"golang.org/x/sync/errgroup"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/internal/pricing"
	"github.com/hookline/tow-bookings/internal/receipts"
	"github.com/hookline/tow-bookings/internal/repository"
	"github.com/hookline/tow-bookings/pkg/events"
	"github.com/hookline/tow-bookings/pkg/logger"
	"github.com/hookline/tow-bookings/pkg/retry"
)

// AdminService is the dispatch-desk view over bookings, users and
// services. Every store call runs inside the retry policy; an operation
// that exhausts it comes back as a StoreError carrying the attempt count.
type AdminService interface {
	CreateBooking(ctx context.Context, req *domain.SubmitRequest) (*domain.Booking, error)
	ListBookings(ctx context.Context, page, limit int, status *domain.BookingStatus) (*domain.BookingPage, error)
	GetBooking(ctx context.Context, id int64) (*domain.BookingDetail, error)
	UpdateBooking(ctx context.Context, id int64, patch domain.BookingPatch) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	Receipt(ctx context.Context, bookingID int64) ([]byte, string, error)

	CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error)
	ListUsers(ctx context.Context, page, limit int) (*domain.UserPage, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	UpdateUser(ctx context.Context, id int64, req *domain.UpdateUserRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error

	CreateService(ctx context.Context, create *domain.ServiceCreate) (*domain.Service, error)
	ListServices(ctx context.Context, page, limit int) (*domain.ServicePage, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	UpdateService(ctx context.Context, id int64, patch domain.ServicePatch) (*domain.Service, error)
	DeleteService(ctx context.Context, id int64) error
	VerifyService(ctx context.Context, serviceNumber string) (*domain.Service, error)
}

type adminService struct {
	bookingRepo repository.BookingRepository
	serviceRepo repository.ServiceRepository
	userRepo    repository.UserRepository
	generator   *receipts.Generator
	publisher   events.Publisher
	policy      retry.Policy
}

func NewAdminService(
	bookingRepo repository.BookingRepository,
	serviceRepo repository.ServiceRepository,
	userRepo repository.UserRepository,
	generator *receipts.Generator,
	publisher events.Publisher,
	policy retry.Policy,
) AdminService {
	return &adminService{
		bookingRepo: bookingRepo,
		serviceRepo: serviceRepo,
		userRepo:    userRepo,
		generator:   generator,
		publisher:   publisher,
		policy:      policy,
	}
}

// withRetry runs a store operation under the retry policy and tags the
// final failure with the operation name and how many attempts were made.
func (s *adminService) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts, err := retry.Do(ctx, s.policy, fn)
	if err != nil {
		return domain.StoreError{Op: op, Attempts: attempts, Err: err}
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return limit, (page - 1) * limit
}

func totalPages(count int64, limit int) int64 {
	if count == 0 {
		return 0
	}
	return (count + int64(limit) - 1) / int64(limit)
}

// CreateBooking enters a phone booking taken by the dispatch desk. There
// is no payment intent yet, so the row starts out pending and the desk
// collects payment on arrival.
func (s *adminService) CreateBooking(ctx context.Context, req *domain.SubmitRequest) (*domain.Booking, error) {
	req.Normalize()
	if err := req.ValidateDetails(); err != nil {
		return nil, err
	}

	quote, err := pricing.Estimate(req.VehicleSize, req.DistanceKm)
	if err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		Status:         domain.BookingPending,
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

	var created *domain.Booking
	if err := s.withRetry(ctx, "create booking", func(ctx context.Context) error {
		var err error
		created, err = s.bookingRepo.CreateWithService(ctx, booking)
		return err
	}); err != nil {
		return nil, err
	}

	event := events.BookingCreatedEvent{
		BookingID:      created.ID,
		ServiceID:      created.ServiceID,
		ServiceNumber:  created.ServiceNumber,
		CustomerName:   created.CustomerName,
		CustomerPhone:  created.CustomerPhone,
		PickupAddress:  created.PickupAddress,
		DropoffAddress: created.DropoffAddress,
		VehicleSize:    string(created.VehicleSize),
		TruckCategory:  string(created.TruckCategory),
		TotalCents:     created.TotalCents,
		PickupAt:       created.PickupAt,
		CreatedAt:      created.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, events.BookingCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_id", created.ID)
	}

	return created, nil
}

func (s *adminService) ListBookings(ctx context.Context, page, limit int, status *domain.BookingStatus) (*domain.BookingPage, error) {
	limit, offset := normalizePage(page, limit)

	var (
		details []domain.BookingDetail
		count   int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.withRetry(gctx, "list bookings", func(ctx context.Context) error {
			var err error
			details, err = s.bookingRepo.ListDetailed(ctx, limit, offset, status)
			return err
		})
	})
	g.Go(func() error {
		return s.withRetry(gctx, "count bookings", func(ctx context.Context) error {
			var err error
			count, err = s.bookingRepo.Count(ctx, status)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if details == nil {
		details = []domain.BookingDetail{}
	}
	return &domain.BookingPage{
		Data:       details,
		Count:      count,
		TotalPages: totalPages(count, limit),
	}, nil
}

func (s *adminService) GetBooking(ctx context.Context, id int64) (*domain.BookingDetail, error) {
	var detail *domain.BookingDetail
	err := s.withRetry(ctx, "get booking", func(ctx context.Context) error {
		var err error
		detail, err = s.bookingRepo.GetDetailByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, domain.NotFoundError{Resource: "booking"}
	}
	return detail, nil
}

func (s *adminService) UpdateBooking(ctx context.Context, id int64, patch domain.BookingPatch) (*domain.Booking, error) {
	var existing *domain.Booking
	err := s.withRetry(ctx, "get booking", func(ctx context.Context) error {
		var err error
		existing, err = s.bookingRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.NotFoundError{Resource: "booking"}
	}

	if err := patch.Validate(existing); err != nil {
		return nil, err
	}

	var updated *domain.Booking
	err = s.withRetry(ctx, "update booking", func(ctx context.Context) error {
		var err error
		updated, err = s.bookingRepo.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.NotFoundError{Resource: "booking"}
	}

	if changes := detectChanges(existing, updated); len(changes) > 0 {
		event := events.BookingUpdatedEvent{
			BookingID: updated.ID,
			Changes:   changes,
			UpdatedAt: updated.UpdatedAt,
		}
		if err := s.publisher.Publish(ctx, events.BookingUpdated, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish booking updated event", "error", err, "booking_id", updated.ID)
		}
	}

	return updated, nil
}

// DeleteBooking removes the booking row. The service row stays so the
// job number keeps resolving in historical exports.
func (s *adminService) DeleteBooking(ctx context.Context, id int64) error {
	var existing *domain.Booking
	err := s.withRetry(ctx, "get booking", func(ctx context.Context) error {
		var err error
		existing, err = s.bookingRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.NotFoundError{Resource: "booking"}
	}

	var deleted bool
	err = s.withRetry(ctx, "delete booking", func(ctx context.Context) error {
		var err error
		deleted, err = s.bookingRepo.Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return domain.NotFoundError{Resource: "booking"}
	}

	event := events.BookingDeletedEvent{BookingID: id, DeletedAt: time.Now()}
	if err := s.publisher.Publish(ctx, events.BookingDeleted, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking deleted event", "error", err, "booking_id", id)
	}
	return nil
}

func (s *adminService) Receipt(ctx context.Context, bookingID int64) ([]byte, string, error) {
	detail, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}

	pdf, err := s.generator.Generate(detail)
	if err != nil {
		return nil, "", err
	}
	return pdf, detail.ServiceNumber + ".pdf", nil
}

// CreateUser opens an account on someone's behalf. Unlike self-service
// registration, any valid role can be assigned here.
func (s *adminService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var existing *domain.User
	if err := s.withRetry(ctx, "find user", func(ctx context.Context) error {
		var err error
		existing, err = s.userRepo.FindByEmail(ctx, req.Email)
		return err
	}); err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ConflictError{Resource: "user", Msg: "email already registered"}
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user *domain.User
	if err := s.withRetry(ctx, "create user", func(ctx context.Context) error {
		var err error
		user, err = s.userRepo.Create(ctx, req, passwordHash)
		return err
	}); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *adminService) ListUsers(ctx context.Context, page, limit int) (*domain.UserPage, error) {
	limit, offset := normalizePage(page, limit)

	var (
		users []domain.User
		count int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.withRetry(gctx, "list users", func(ctx context.Context) error {
			var err error
			users, err = s.userRepo.List(ctx, limit, offset)
			return err
		})
	})
	g.Go(func() error {
		return s.withRetry(gctx, "count users", func(ctx context.Context) error {
			var err error
			count, err = s.userRepo.Count(ctx)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if users == nil {
		users = []domain.User{}
	}
	return &domain.UserPage{
		Data:       users,
		Count:      count,
		TotalPages: totalPages(count, limit),
	}, nil
}

func (s *adminService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user *domain.User
	err := s.withRetry(ctx, "get user", func(ctx context.Context) error {
		var err error
		user, err = s.userRepo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	return user, nil
}

func (s *adminService) UpdateUser(ctx context.Context, id int64, req *domain.UpdateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var user *domain.User
	err := s.withRetry(ctx, "update user", func(ctx context.Context) error {
		var err error
		user, err = s.userRepo.Update(ctx, id, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	return user, nil
}

func (s *adminService) DeleteUser(ctx context.Context, id int64) error {
	var deleted bool
	err := s.withRetry(ctx, "delete user", func(ctx context.Context) error {
		var err error
		deleted, err = s.userRepo.Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return domain.NotFoundError{Resource: "user"}
	}
	return nil
}

func (s *adminService) CreateService(ctx context.Context, create *domain.ServiceCreate) (*domain.Service, error) {
	create.Normalize()

	var svc *domain.Service
	err := s.withRetry(ctx, "create service", func(ctx context.Context) error {
		var err error
		svc, err = s.serviceRepo.Create(ctx, create)
		return err
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *adminService) ListServices(ctx context.Context, page, limit int) (*domain.ServicePage, error) {
	limit, offset := normalizePage(page, limit)

	var (
		services []domain.Service
		count    int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.withRetry(gctx, "list services", func(ctx context.Context) error {
			var err error
			services, err = s.serviceRepo.List(ctx, limit, offset)
			return err
		})
	})
	g.Go(func() error {
		return s.withRetry(gctx, "count services", func(ctx context.Context) error {
			var err error
			count, err = s.serviceRepo.Count(ctx)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if services == nil {
		services = []domain.Service{}
	}
	return &domain.ServicePage{
		Data:       services,
		Count:      count,
		TotalPages: totalPages(count, limit),
	}, nil
}

func (s *adminService) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	var svc *domain.Service
	err := s.withRetry(ctx, "get service", func(ctx context.Context) error {
		var err error
		svc, err = s.serviceRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, domain.NotFoundError{Resource: "service"}
	}
	return svc, nil
}

func (s *adminService) UpdateService(ctx context.Context, id int64, patch domain.ServicePatch) (*domain.Service, error) {
	var svc *domain.Service
	err := s.withRetry(ctx, "update service", func(ctx context.Context) error {
		var err error
		svc, err = s.serviceRepo.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, domain.NotFoundError{Resource: "service"}
	}
	return svc, nil
}

func (s *adminService) DeleteService(ctx context.Context, id int64) error {
	var deleted bool
	err := s.withRetry(ctx, "delete service", func(ctx context.Context) error {
		var err error
		deleted, err = s.serviceRepo.Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return domain.NotFoundError{Resource: "service"}
	}
	return nil
}

// VerifyService resolves a service number scanned off a receipt QR code.
// The endpoint behind it is public, so only the service row comes back,
// never the customer details.
func (s *adminService) VerifyService(ctx context.Context, serviceNumber string) (*domain.Service, error) {
	var svc *domain.Service
	err := s.withRetry(ctx, "find service", func(ctx context.Context) error {
		var err error
		svc, err = s.serviceRepo.GetByNumber(ctx, serviceNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, domain.NotFoundError{Resource: "service"}
	}
	return svc, nil
}

func detectChanges(old, new *domain.Booking) []string {
	var changes []string

	if old.Status != new.Status {
		changes = append(changes, "status")
	}
	if old.CustomerName != new.CustomerName {
		changes = append(changes, "customer_name")
	}
	if old.CustomerPhone != new.CustomerPhone {
		changes = append(changes, "customer_phone")
	}
	if old.PickupAddress != new.PickupAddress {
		changes = append(changes, "pickup_address")
	}
	if old.DropoffAddress != new.DropoffAddress {
		changes = append(changes, "dropoff_address")
	}
	if !old.PickupAt.Equal(new.PickupAt) {
		changes = append(changes, "pickup_at")
	}

	return changes
}
