package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	warningThreshold = decimal.NewFromInt(80)
	dangerThreshold  = decimal.NewFromInt(90)
)

// Alert levels for the spending gauge. They are display hints only.
const (
	AlertNone    = "none"
	AlertWarning = "warning"
	AlertDanger  = "danger"
)

// AddMoneyRequest for POST /wallet/add-money
type AddMoneyRequest struct {
	Amount json.RawMessage `json:"amount"`
}

// SetLimitRequest for POST /wallet/set-limit
type SetLimitRequest struct {
	MonthlyLimit json.RawMessage `json:"monthly_limit"`
}

// PaymentRequest for POST /wallet/payment
type PaymentRequest struct {
	Amount      json.RawMessage `json:"amount"`
	PIN         string          `json:"pin"`
	Description string          `json:"description" validate:"max=255"`
}

// ParseMoney reads a money field kept raw in a request body. Only JSON
// numbers are accepted; anything else is ErrInvalidAmount.
func ParseMoney(raw json.RawMessage, field string) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrInvalidAmount, field)
	}
	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return decimal.Zero, fmt.Errorf("%w: %s must be a number", ErrInvalidAmount, field)
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a number", ErrInvalidAmount, field)
	}
	return d, nil
}

// WalletResponse is the wallet as clients see it
type WalletResponse struct {
	ID              uuid.UUID    `json:"id"`
	Balance         json.Number  `json:"balance"`
	MonthlyLimit    json.Number  `json:"monthly_limit"`
	SpentThisMonth  json.Number  `json:"spent_this_month"`
	PercentageSpent *json.Number `json:"percentage_spent,omitempty"`
	Alert           string       `json:"alert"`
	CanTransact     bool         `json:"can_transact"`
	PeriodStart     time.Time    `json:"period_start"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type TransactionResponse struct {
	ID           uuid.UUID   `json:"id"`
	Type         Kind        `json:"transaction_type"`
	Amount       json.Number `json:"amount"`
	Description  string      `json:"description"`
	BalanceAfter json.Number `json:"balance_after"`
	CreatedAt    time.Time   `json:"created_at"`
}

// MutationResponse is returned by add-money and payment
type MutationResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Wallet      WalletResponse      `json:"wallet"`
}

// EventType for live feed messages
type EventType string

const (
	EventSnapshot      EventType = "wallet.snapshot"
	EventWalletUpdated EventType = "wallet.updated"
)

// Event is one live feed message
type Event struct {
	Type        EventType            `json:"type"`
	Wallet      WalletResponse       `json:"wallet"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// AlertLevel maps a spent percentage to the gauge colour band.
func AlertLevel(pct decimal.Decimal) string {
	switch {
	case pct.GreaterThanOrEqual(dangerThreshold):
		return AlertDanger
	case pct.GreaterThanOrEqual(warningThreshold):
		return AlertWarning
	}
	return AlertNone
}

func NewWalletResponse(w *Wallet) WalletResponse {
	resp := WalletResponse{
		ID:             w.ID,
		Balance:        money(w.Balance),
		MonthlyLimit:   money(w.MonthlyLimit),
		SpentThisMonth: money(w.SpentThisMonth),
		Alert:          AlertNone,
		CanTransact:    w.CanTransact(),
		PeriodStart:    w.PeriodStart,
		UpdatedAt:      w.UpdatedAt,
	}
	if pct, ok := w.PercentageSpent(); ok {
		n := money(pct)
		resp.PercentageSpent = &n
		resp.Alert = AlertLevel(pct)
	}
	return resp
}

func NewTransactionResponse(t *Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID,
		Type:         t.Kind,
		Amount:       money(t.Amount),
		Description:  t.Description,
		BalanceAfter: money(t.BalanceAfter),
		CreatedAt:    t.CreatedAt,
	}
}

func NewMutationResponse(res *Result) MutationResponse {
	return MutationResponse{
		Transaction: NewTransactionResponse(&res.Transaction),
		Wallet:      NewWalletResponse(&res.Wallet),
	}
}

func NewTransactionList(txs []Transaction) []TransactionResponse {
	items := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		items = append(items, NewTransactionResponse(&txs[i]))
	}
	return items
}
