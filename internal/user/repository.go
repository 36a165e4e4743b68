package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/barelle/storefront/internal/db"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("user with this email already exists")
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByProviderSubject(ctx context.Context, provider, subject string) (*User, error)
	Update(ctx context.Context, u *User) error
}

const userColumns = `id, email, password_hash, auth_provider, provider_subject, first_name, last_name, phone,
	role, customer_type, company_name, tax_id, company_address, company_city, company_district,
	is_active, created_at, updated_at`

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

func scanUser(row pgx.Row, u *User) error {
	return row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.AuthProvider, &u.ProviderSubject, &u.FirstName, &u.LastName, &u.Phone,
		&u.Role, &u.CustomerType, &u.CompanyName, &u.TaxID, &u.CompanyAddress, &u.CompanyCity, &u.CompanyDistrict,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
}

func (r *postgresRepository) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate user ID: %w", err)
		}
		u.ID = id
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.AuthProvider, u.ProviderSubject, u.FirstName, u.LastName, u.Phone,
		u.Role, u.CustomerType, u.CompanyName, u.TaxID, u.CompanyAddress, u.CompanyCity, u.CompanyDistrict,
		u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to insert user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, "email = $1", normalizeEmail(email))
}

func (r *postgresRepository) GetByProviderSubject(ctx context.Context, provider, subject string) (*User, error) {
	return r.get(ctx, "auth_provider = $1 AND provider_subject = $2", provider, subject)
}

func (r *postgresRepository) get(ctx context.Context, where string, args ...any) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	var u User
	if err := scanUser(db.Conn(ctx, r.db).QueryRow(ctx, query, args...), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by %v: %w", args, err)
	}
	return &u, nil
}

// Update writes every mutable column of u. Email and credentials are not
// mutable.
func (r *postgresRepository) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, phone = $3, role = $4, customer_type = $5,
			company_name = $6, tax_id = $7, company_address = $8, company_city = $9,
			company_district = $10, is_active = $11, updated_at = $12
		WHERE id = $13
	`
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, query,
		u.FirstName, u.LastName, u.Phone, u.Role, u.CustomerType,
		u.CompanyName, u.TaxID, u.CompanyAddress, u.CompanyCity,
		u.CompanyDistrict, u.IsActive, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update user %s: %w", u.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
