package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a wallet holder's account (matches users table). Identity fields never change after signup.
type User struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	MobileNumber string    `db:"mobile_number"`
	PasswordHash string    `db:"password_hash"`
	PINHash      string    `db:"pin_hash"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
