package password

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost for stored passwords and PINs.
const DefaultCost = 12

// Hash hashes a password or PIN using bcrypt
func Hash(secret string) (string, error) {
	return HashWithCost(secret, DefaultCost)
}

// HashWithCost hashes with an explicit cost; tests use bcrypt.MinCost
func HashWithCost(secret string, c int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), c)
	return string(bytes), err
}

// Verify compares a secret with its hash
func Verify(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
