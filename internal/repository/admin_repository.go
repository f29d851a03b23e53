package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldvault/support-messaging/internal/domain"
)

// AdminRepository resolves the admin roster.
type AdminRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Admin, error)
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	ListActive(ctx context.Context) ([]domain.Admin, error)
}

type adminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository instantiates repository.
func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

const adminColumns = `id, email, name, password_hash, active, notification_method, created_at`

func (r *adminRepository) GetByID(ctx context.Context, id string) (*domain.Admin, error) {
	return r.fetchSingle(ctx, `SELECT `+adminColumns+` FROM admins WHERE id=$1`, id)
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	return r.fetchSingle(ctx, `SELECT `+adminColumns+` FROM admins WHERE email=$1`, email)
}

func (r *adminRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Admin, error) {
	var admin domain.Admin
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&admin.ID,
		&admin.Email,
		&admin.Name,
		&admin.PasswordHash,
		&admin.Active,
		&admin.NotificationMethod,
		&admin.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &admin, nil
}

// ListActive reads the roster at call time; fan-out must never act on a
// cached roster.
func (r *adminRepository) ListActive(ctx context.Context) ([]domain.Admin, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+adminColumns+` FROM admins WHERE active ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAdmins(rows)
}

func scanAdmins(rows pgx.Rows) ([]domain.Admin, error) {
	var result []domain.Admin
	for rows.Next() {
		var admin domain.Admin
		if err := rows.Scan(
			&admin.ID,
			&admin.Email,
			&admin.Name,
			&admin.PasswordHash,
			&admin.Active,
			&admin.NotificationMethod,
			&admin.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, admin)
	}
	return result, rows.Err()
}
