package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hookline/tow-bookings/internal/domain"
)

type BookingRepository interface {
	CreateWithService(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetDetailByID(ctx context.Context, id int64) (*domain.BookingDetail, error)
	ListDetailed(ctx context.Context, limit, offset int, status *domain.BookingStatus) ([]domain.BookingDetail, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error)
	Count(ctx context.Context, status *domain.BookingStatus) (int64, error)
	Update(ctx context.Context, id int64, patch domain.BookingPatch) (*domain.Booking, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `b.id, b.service_id, s.service_number, b.status, b.service_type,
b.customer_name, b.customer_phone, b.customer_email,
b.vehicle_brand, b.vehicle_model, b.vehicle_color, b.vehicle_plate, b.vehicle_size,
b.pickup_address, b.dropoff_address, b.distance_km, b.truck_category, b.total_cents,
b.pickup_at, b.payment_method, b.user_id, b.created_at, b.updated_at`

const bookingFrom = ` FROM bookings b JOIN services s ON s.id = b.service_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.ServiceID, &b.ServiceNumber, &b.Status, &b.ServiceType,
		&b.CustomerName, &b.CustomerPhone, &b.CustomerEmail,
		&b.VehicleBrand, &b.VehicleModel, &b.VehicleColor, &b.VehiclePlate, &b.VehicleSize,
		&b.PickupAddress, &b.DropoffAddress, &b.DistanceKm, &b.TruckCategory, &b.TotalCents,
		&b.PickupAt, &b.PaymentMethod, &b.UserID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateWithService creates the service row and the booking row in one
// transaction so a failed booking insert never leaves an orphaned service.
func (r *bookingRepository) CreateWithService(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	serviceNumber := domain.NewServiceNumber()

	const serviceQ = `INSERT INTO services (service_number, service_type)
		VALUES ($1, $2) RETURNING id`

	var serviceID int64
	if err := tx.QueryRow(ctx, serviceQ, serviceNumber, b.ServiceType).Scan(&serviceID); err != nil {
		return nil, err
	}

	const bookingQ = `INSERT INTO bookings (
		service_id, status, service_type,
		customer_name, customer_phone, customer_email,
		vehicle_brand, vehicle_model, vehicle_color, vehicle_plate, vehicle_size,
		pickup_address, dropoff_address, distance_km, truck_category, total_cents,
		pickup_at, payment_method, user_id
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	RETURNING id, created_at, updated_at`

	err = tx.QueryRow(ctx, bookingQ,
		serviceID, b.Status, b.ServiceType,
		b.CustomerName, b.CustomerPhone, b.CustomerEmail,
		b.VehicleBrand, b.VehicleModel, b.VehicleColor, b.VehiclePlate, b.VehicleSize,
		b.PickupAddress, b.DropoffAddress, b.DistanceKm, b.TruckCategory, b.TotalCents,
		b.PickupAt, b.PaymentMethod, b.UserID,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	b.ServiceID = serviceID
	b.ServiceNumber = serviceNumber
	return b, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + bookingFrom + ` WHERE b.id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) GetDetailByID(ctx context.Context, id int64) (*domain.BookingDetail, error) {
	q := detailQuery(` WHERE b.id = $1`)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	d, err := scanBookingDetail(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *bookingRepository) ListDetailed(ctx context.Context, limit, offset int, status *domain.BookingStatus) ([]domain.BookingDetail, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var q string
	args := []any{}
	if status != nil {
		q = detailQuery(` WHERE b.status = $1 ORDER BY b.created_at DESC LIMIT $2 OFFSET $3`)
		args = append(args, *status, limit, offset)
	} else {
		q = detailQuery(` ORDER BY b.created_at DESC LIMIT $1 OFFSET $2`)
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []domain.BookingDetail{}
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, rows.Err()
}

func (r *bookingRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + bookingCols + bookingFrom + `
		WHERE b.user_id = $1 ORDER BY b.created_at DESC LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepository) Count(ctx context.Context, status *domain.BookingStatus) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var count int64
	var err error
	if status != nil {
		err = r.pool.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE status = $1`, *status).Scan(&count)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT count(*) FROM bookings`).Scan(&count)
	}
	return count, err
}

func (r *bookingRepository) Update(ctx context.Context, id int64, patch domain.BookingPatch) (*domain.Booking, error) {
	const q = `
		UPDATE bookings b
		SET
			status          = COALESCE($2, status),
			customer_name   = COALESCE($3, customer_name),
			customer_phone  = COALESCE($4, customer_phone),
			pickup_address  = COALESCE($5, pickup_address),
			dropoff_address = COALESCE($6, dropoff_address),
			pickup_at       = COALESCE($7, pickup_at),
			updated_at      = now()
		FROM services s
		WHERE b.id = $1 AND s.id = b.service_id
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q,
		id,
		patch.Status,
		patch.CustomerName,
		patch.CustomerPhone,
		patch.PickupAddress,
		patch.DropoffAddress,
		patch.PickupAt,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM bookings WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func detailQuery(tail string) string {
	return `SELECT ` + bookingCols + `,
		s.id, s.service_number, s.service_type, s.created_at,
		u.id, u.name, u.email` +
		bookingFrom + ` LEFT JOIN users u ON u.id = b.user_id` + tail
}

func scanBookingDetail(row rowScanner) (*domain.BookingDetail, error) {
	var d domain.BookingDetail
	var userID *int64
	var userName, userEmail *string

	err := row.Scan(
		&d.ID, &d.ServiceID, &d.ServiceNumber, &d.Status, &d.ServiceType,
		&d.CustomerName, &d.CustomerPhone, &d.CustomerEmail,
		&d.VehicleBrand, &d.VehicleModel, &d.VehicleColor, &d.VehiclePlate, &d.VehicleSize,
		&d.PickupAddress, &d.DropoffAddress, &d.DistanceKm, &d.TruckCategory, &d.TotalCents,
		&d.PickupAt, &d.PaymentMethod, &d.UserID, &d.CreatedAt, &d.UpdatedAt,
		&d.Service.ID, &d.Service.ServiceNumber, &d.Service.ServiceType, &d.Service.CreatedAt,
		&userID, &userName, &userEmail,
	)
	if err != nil {
		return nil, err
	}

	if userID != nil {
		d.User = &domain.UserSummary{ID: *userID}
		if userName != nil {
			d.User.Name = *userName
		}
		if userEmail != nil {
			d.User.Email = *userEmail
		}
	}
	return &d, nil
}
