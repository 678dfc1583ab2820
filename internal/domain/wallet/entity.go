package wallet

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of ledger entry kinds.
type Kind uint8

const (
	KindAddMoney Kind = iota + 1
	KindPayment
)

func (k Kind) String() string {
	switch k {
	case KindAddMoney:
		return "add_money"
	case KindPayment:
		return "payment"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps the wire/storage name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "add_money":
		return KindAddMoney, nil
	case "payment":
		return KindPayment, nil
	}
	return 0, fmt.Errorf("unknown transaction type %q", s)
}

// Apply returns balance after this kind of entry moves amount.
func (k Kind) Apply(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	switch k {
	case KindAddMoney:
		return balance.Add(amount), nil
	case KindPayment:
		return balance.Sub(amount), nil
	}
	return balance, fmt.Errorf("unknown transaction kind %d", uint8(k))
}

func (k Kind) MarshalJSON() ([]byte, error) {
	switch k {
	case KindAddMoney, KindPayment:
		return json.Marshal(k.String())
	}
	return nil, fmt.Errorf("unknown transaction kind %d", uint8(k))
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k *Kind) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Kind", src)
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Kind) Value() (driver.Value, error) {
	switch k {
	case KindAddMoney, KindPayment:
		return k.String(), nil
	}
	return nil, fmt.Errorf("unknown transaction kind %d", uint8(k))
}

// Wallet is the per-account balance record (matches wallets table).
// MonthlyLimit zero means no limit.
type Wallet struct {
	ID             uuid.UUID       `db:"id"`
	AccountID      uuid.UUID       `db:"account_id"`
	Balance        decimal.Decimal `db:"balance"`
	MonthlyLimit   decimal.Decimal `db:"monthly_limit"`
	SpentThisMonth decimal.Decimal `db:"spent_this_month"`
	PeriodStart    time.Time       `db:"period_start"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// HasLimit reports whether a monthly limit is set
func (w *Wallet) HasLimit() bool {
	return w.MonthlyLimit.IsPositive()
}

// CanTransact is false once spending has reached the monthly limit
func (w *Wallet) CanTransact() bool {
	return !w.HasLimit() || w.SpentThisMonth.LessThan(w.MonthlyLimit)
}

// PercentageSpent is spent/limit*100 rounded to 2 places; ok is false without a limit.
func (w *Wallet) PercentageSpent() (pct decimal.Decimal, ok bool) {
	if !w.HasLimit() {
		return decimal.Zero, false
	}
	return w.SpentThisMonth.Mul(decimal.NewFromInt(100)).DivRound(w.MonthlyLimit, 2), true
}

// rollOver starts a new spending period when period is later than the stored one.
func (w *Wallet) rollOver(period time.Time) bool {
	if !w.PeriodStart.Before(period) {
		return false
	}
	w.SpentThisMonth = decimal.Zero
	w.PeriodStart = period
	return true
}

// Projected returns the wallet as it reads in period, without persisting anything.
func (w Wallet) Projected(period time.Time) Wallet {
	w.rollOver(period)
	return w
}

// Transaction is one immutable ledger entry (matches wallet_transactions table).
// Seq breaks ties between entries with equal CreatedAt.
type Transaction struct {
	ID           uuid.UUID       `db:"id"`
	Seq          int64           `db:"seq"`
	WalletID     uuid.UUID       `db:"wallet_id"`
	Kind         Kind            `db:"transaction_type"`
	Amount       decimal.Decimal `db:"amount"`
	Description  string          `db:"description"`
	BalanceAfter decimal.Decimal `db:"balance_after"`
	CreatedAt    time.Time       `db:"created_at"`
}

// Replay folds a wallet's ledger, in any order, back into its balance.
// It fails if an entry's recorded balance_after disagrees or the balance would go negative.
func Replay(txs []Transaction) (decimal.Decimal, error) {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	balance := decimal.Zero
	for _, t := range ordered {
		next, err := t.Kind.Apply(balance, t.Amount)
		if err != nil {
			return balance, err
		}
		if next.IsNegative() {
			return balance, fmt.Errorf("%w: entry %d overdraws the wallet", ErrLedgerMismatch, t.Seq)
		}
		if !next.Equal(t.BalanceAfter) {
			return balance, fmt.Errorf("%w: entry %d records %s, replay gives %s", ErrLedgerMismatch, t.Seq, t.BalanceAfter, next)
		}
		balance = next
	}
	return balance, nil
}

// PeriodStart is the first instant of the calendar month containing t in loc.
func PeriodStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}
