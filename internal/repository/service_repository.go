package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hookline/tow-bookings/internal/domain"
)

type ServiceRepository interface {
	Create(ctx context.Context, create *domain.ServiceCreate) (*domain.Service, error)
	GetByID(ctx context.Context, id int64) (*domain.Service, error)
	GetByNumber(ctx context.Context, serviceNumber string) (*domain.Service, error)
	List(ctx context.Context, limit, offset int) ([]domain.Service, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id int64, patch domain.ServicePatch) (*domain.Service, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type serviceRepository struct {
	pool *pgxpool.Pool
}

func NewServiceRepository(pool *pgxpool.Pool) ServiceRepository {
	return &serviceRepository{pool: pool}
}

const serviceCols = `id, service_number, service_type, created_at`

func scanService(row rowScanner) (*domain.Service, error) {
	var s domain.Service
	if err := row.Scan(&s.ID, &s.ServiceNumber, &s.ServiceType, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *serviceRepository) Create(ctx context.Context, create *domain.ServiceCreate) (*domain.Service, error) {
	const q = `INSERT INTO services (service_number, service_type)
		VALUES ($1, $2) RETURNING ` + serviceCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanService(r.pool.QueryRow(ctx, q, domain.NewServiceNumber(), create.ServiceType))
}

func (r *serviceRepository) GetByID(ctx context.Context, id int64) (*domain.Service, error) {
	const q = `SELECT ` + serviceCols + ` FROM services WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s, err := scanService(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *serviceRepository) GetByNumber(ctx context.Context, serviceNumber string) (*domain.Service, error) {
	const q = `SELECT ` + serviceCols + ` FROM services WHERE service_number = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s, err := scanService(r.pool.QueryRow(ctx, q, serviceNumber))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *serviceRepository) List(ctx context.Context, limit, offset int) ([]domain.Service, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + serviceCols + ` FROM services
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := []domain.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}
	return services, rows.Err()
}

func (r *serviceRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var count int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM services`).Scan(&count)
	return count, err
}

func (r *serviceRepository) Update(ctx context.Context, id int64, patch domain.ServicePatch) (*domain.Service, error) {
	const q = `UPDATE services
		SET service_type = COALESCE($2, service_type)
		WHERE id = $1 RETURNING ` + serviceCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s, err := scanService(r.pool.QueryRow(ctx, q, id, patch.ServiceType))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *serviceRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM services WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
