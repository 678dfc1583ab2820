package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Draft is the ledger entry a mutation wants appended.
type Draft struct {
	Kind        Kind
	Amount      decimal.Decimal
	Description string
}

// MutateFunc validates and changes w in place while the wallet is locked.
// Returning an error discards every change; returning a nil Draft updates the wallet without a ledger entry.
type MutateFunc func(w *Wallet) (*Draft, error)

// Store persists wallets and their ledgers.
//
// Mutate runs fn inside the per-wallet critical section after starting the
// spending period that contains period. Waiting for the section is bounded;
// expiry yields ErrWalletBusy. Unknown accounts yield ErrAccountNotFound.
type Store interface {
	Get(ctx context.Context, accountID uuid.UUID) (*Wallet, error)
	Mutate(ctx context.Context, accountID uuid.UUID, period time.Time, fn MutateFunc) (*Wallet, *Transaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error)
	// RollOverPeriods resets spending for every wallet whose period began before period.
	RollOverPeriods(ctx context.Context, period time.Time) (int64, error)
}
