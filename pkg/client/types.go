package client

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction kinds as they appear on the wire.
const (
	KindAddMoney = "add_money"
	KindPayment  = "payment"
)

// User is the account profile. Hashes never leave the server.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	MobileNumber string    `json:"mobile_number"`
	CreatedAt    time.Time `json:"created_at"`
}

// Wallet mirrors GET /api/wallet/.
type Wallet struct {
	ID              uuid.UUID        `json:"id"`
	Balance         decimal.Decimal  `json:"balance"`
	MonthlyLimit    decimal.Decimal  `json:"monthly_limit"`
	SpentThisMonth  decimal.Decimal  `json:"spent_this_month"`
	PercentageSpent *decimal.Decimal `json:"percentage_spent,omitempty"`
	Alert           string           `json:"alert"`
	CanTransact     bool             `json:"can_transact"`
	PeriodStart     time.Time        `json:"period_start"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// HasLimit reports whether a monthly cap is configured.
func (w *Wallet) HasLimit() bool {
	return w.MonthlyLimit.IsPositive()
}

type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"transaction_type"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Mutation is returned by add-money and payment.
type Mutation struct {
	Transaction Transaction `json:"transaction"`
	Wallet      Wallet      `json:"wallet"`
	// Replayed is set when the server answered from its idempotency cache.
	Replayed bool `json:"-"`
}

type SignupRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
	Password     string `json:"password"`
	PIN          string `json:"pin"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}

// PaymentRequest describes a debit. An empty IdempotencyKey gets a fresh one.
type PaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PIN            string          `json:"pin"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey string          `json:"-"`
}

type addMoneyRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type setLimitRequest struct {
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
}
