package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/smartpay/smartpay-api/internal/domain/user"
	"github.com/smartpay/smartpay-api/internal/pkg/metrics"
	"github.com/smartpay/smartpay-api/internal/pkg/password"
	"github.com/smartpay/smartpay-api/internal/pkg/validator"
)

const (
	DefaultTransactionLimit    = 50
	defaultMaxTransactionLimit = 200
	maxDescriptionLength       = 255
	defaultPaymentDescription  = "Payment"
	addMoneyDescription        = "Added money to wallet"
)

// MaxAmount caps a single amount or limit.
var MaxAmount = decimal.NewFromInt(1_000_000_000)

// AccountReader looks up the account holding the PIN hash.
type AccountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Publisher receives every committed mutation. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, accountID uuid.UUID, event Event)
}

// Config tunes the engine. Zero values pick defaults.
type Config struct {
	Location     *time.Location
	MaxListLimit int
	Clock        func() time.Time
}

// Result is a committed mutation: the ledger entry and the wallet after it.
type Result struct {
	Wallet      Wallet
	Transaction Transaction
}

// Service is the transaction engine. Every mutation validates and applies
// inside the store's per-wallet critical section.
type Service struct {
	store     Store
	accounts  AccountReader
	publisher Publisher
	loc       *time.Location
	maxList   int
	now       func() time.Time
}

func NewService(store Store, accounts AccountReader, cfg Config) *Service {
	s := &Service{
		store:    store,
		accounts: accounts,
		loc:      cfg.Location,
		maxList:  cfg.MaxListLimit,
		now:      cfg.Clock,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.maxList <= 0 {
		s.maxList = defaultMaxTransactionLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetPublisher attaches the live feed; nil disables publishing.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// CurrentPeriod is the start of the spending period containing now.
func (s *Service) CurrentPeriod() time.Time {
	return PeriodStart(s.now(), s.loc)
}

// GetWallet returns the wallet as of now. A period that has ended reads as zero spend; nothing is written.
func (s *Service) GetWallet(ctx context.Context, accountID uuid.UUID) (*Wallet, error) {
	w, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	projected := w.Projected(s.CurrentPeriod())
	return &projected, nil
}

// ListTransactions returns the most recent entries first. limit <= 0 means the default.
func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	if limit > s.maxList {
		limit = s.maxList
	}
	return s.store.ListTransactions(ctx, accountID, limit)
}

func (s *Service) AddMoney(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*Result, error) {
	if err := validateAmount(amount); err != nil {
		return s.reject(ctx, "add_money", accountID, err)
	}

	w, entry, err := s.store.Mutate(ctx, accountID, s.CurrentPeriod(), func(w *Wallet) (*Draft, error) {
		w.Balance = w.Balance.Add(amount)
		return &Draft{Kind: KindAddMoney, Amount: amount, Description: addMoneyDescription}, nil
	})
	if err != nil {
		return s.reject(ctx, "add_money", accountID, err)
	}

	log.Info().
		Str("account_id", accountID.String()).
		Str("amount", amount.StringFixed(2)).
		Str("balance", w.Balance.StringFixed(2)).
		Msg("wallet topup applied")
	return s.commit(ctx, "add_money", accountID, w, entry), nil
}

// MakePayment checks, in order: amount, account, PIN, balance, monthly limit.
func (s *Service) MakePayment(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, pin, description string) (*Result, error) {
	if err := validateAmount(amount); err != nil {
		return s.reject(ctx, "payment", accountID, err)
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return s.reject(ctx, "payment", accountID, fmt.Errorf("load account: %w", err))
	}
	if acct == nil {
		return s.reject(ctx, "payment", accountID, ErrAccountNotFound)
	}
	// bcrypt runs before the wallet is locked; malformed PINs never reach it
	if validator.ValidateVar(pin, "required,pin") != nil || !password.Verify(pin, acct.PINHash) {
		return s.reject(ctx, "payment", accountID, ErrAuthenticationFailed)
	}

	description = normalizeDescription(description)
	w, entry, err := s.store.Mutate(ctx, accountID, s.CurrentPeriod(), func(w *Wallet) (*Draft, error) {
		if w.Balance.LessThan(amount) {
			return nil, ErrInsufficientFunds
		}
		if w.HasLimit() && w.SpentThisMonth.Add(amount).GreaterThan(w.MonthlyLimit) {
			return nil, ErrLimitExceeded
		}
		w.Balance = w.Balance.Sub(amount)
		w.SpentThisMonth = w.SpentThisMonth.Add(amount)
		return &Draft{Kind: KindPayment, Amount: amount, Description: description}, nil
	})
	if err != nil {
		return s.reject(ctx, "payment", accountID, err)
	}

	log.Info().
		Str("account_id", accountID.String()).
		Str("amount", amount.StringFixed(2)).
		Str("balance", w.Balance.StringFixed(2)).
		Str("spent_this_month", w.SpentThisMonth.StringFixed(2)).
		Msg("wallet payment applied")
	return s.commit(ctx, "payment", accountID, w, entry), nil
}

// SetMonthlyLimit replaces the limit; zero removes it. Spending so far is kept.
func (s *Service) SetMonthlyLimit(ctx context.Context, accountID uuid.UUID, limit decimal.Decimal) (*Wallet, error) {
	if err := validateLimit(limit); err != nil {
		_, err = s.reject(ctx, "set_limit", accountID, err)
		return nil, err
	}

	w, _, err := s.store.Mutate(ctx, accountID, s.CurrentPeriod(), func(w *Wallet) (*Draft, error) {
		w.MonthlyLimit = limit
		return nil, nil
	})
	if err != nil {
		_, err = s.reject(ctx, "set_limit", accountID, err)
		return nil, err
	}

	log.Info().
		Str("account_id", accountID.String()).
		Str("monthly_limit", limit.StringFixed(2)).
		Msg("wallet monthly limit set")
	metrics.ObserveWalletOperation("set_limit", "OK")
	s.publish(ctx, accountID, Event{Type: EventWalletUpdated, Wallet: NewWalletResponse(w)})
	return w, nil
}

func (s *Service) commit(ctx context.Context, op string, accountID uuid.UUID, w *Wallet, entry *Transaction) *Result {
	metrics.ObserveWalletOperation(op, "OK")
	res := &Result{Wallet: *w, Transaction: *entry}
	txResp := NewTransactionResponse(&res.Transaction)
	s.publish(ctx, accountID, Event{Type: EventWalletUpdated, Wallet: NewWalletResponse(w), Transaction: &txResp})
	return res
}

func (s *Service) reject(ctx context.Context, op string, accountID uuid.UUID, err error) (*Result, error) {
	code := Code(err)
	metrics.ObserveWalletOperation(op, code)
	event := log.Debug()
	if code == "INTERNAL_ERROR" || code == "WALLET_BUSY" {
		event = log.Warn()
	}
	event.Err(err).Str("account_id", accountID.String()).Str("operation", op).Str("code", code).Msg("wallet operation rejected")
	return nil, err
}

func (s *Service) publish(ctx context.Context, accountID uuid.UUID, event Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(context.WithoutCancel(ctx), accountID, event)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return validatePrecision(amount)
}

func validateLimit(limit decimal.Decimal) error {
	if limit.IsNegative() {
		return fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return validatePrecision(limit)
}

func validatePrecision(d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return fmt.Errorf("%w: at most two decimal places", ErrInvalidAmount)
	}
	if d.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: must not exceed %s", ErrInvalidAmount, MaxAmount)
	}
	return nil
}

func normalizeDescription(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return defaultPaymentDescription
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		description = string([]rune(description)[:maxDescriptionLength])
	}
	return description
}
