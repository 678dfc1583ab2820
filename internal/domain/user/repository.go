package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const sqlStateUniqueViolation = "23505"

// Repository defines user data access interface
type Repository interface {
	// Create stores the account together with its empty wallet, atomically.
	Create(ctx context.Context, user *User, periodStart time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// repository implements Repository
type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create inserts the user row and a zero-balance wallet in one transaction
func (r *repository) Create(ctx context.Context, user *User, periodStart time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("user repository create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, mobile_number, password_hash, pin_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID,
		user.Name,
		user.Email,
		user.MobileNumber,
		user.PasswordHash,
		user.PINHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isEmailConflict(err) {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("user repository create: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (id, account_id, balance, monthly_limit, spent_this_month, period_start, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3, $4, $4)
	`, uuid.New(), user.ID, periodStart, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("user repository create wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("user repository create: %w", err)
	}
	return nil
}

// GetByID returns user by ID
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, name, email, mobile_number, password_hash, pin_hash, created_at, updated_at
		FROM users WHERE id = $1
	`
	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// GetByEmail returns user by email
func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, name, email, mobile_number, password_hash, pin_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func isEmailConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != sqlStateUniqueViolation {
		return false
	}
	return pqErr.Constraint == "users_email_key" || (pqErr.Table == "users" && pqErr.Column == "email")
}
