package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartpay/smartpay-api/internal/pkg/metrics"
)

type memoryWallet struct {
	// sem is a one-slot semaphore: the per-wallet critical section for writers.
	sem chan struct{}
	// state guards wallet and ledger for readers; writers hold sem and take it only to commit.
	state  sync.RWMutex
	wallet Wallet
	ledger []Transaction // oldest first
}

// MemoryStore is the in-process Store used when no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	wallets     map[uuid.UUID]*memoryWallet
	seq         int64
	lockTimeout time.Duration
	now         func() time.Time
}

func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &MemoryStore{
		wallets:     make(map[uuid.UUID]*memoryWallet),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// Open creates the empty wallet for a new account. Opening twice is a no-op.
func (s *MemoryStore) Open(ctx context.Context, accountID uuid.UUID, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[accountID]; ok {
		return nil
	}
	now := s.now()
	s.wallets[accountID] = &memoryWallet{
		sem: make(chan struct{}, 1),
		wallet: Wallet{
			ID:             uuid.New(),
			AccountID:      accountID,
			Balance:        decimal.Zero,
			MonthlyLimit:   decimal.Zero,
			SpentThisMonth: decimal.Zero,
			PeriodStart:    periodStart,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}
	return nil
}

func (s *MemoryStore) lookup(accountID uuid.UUID) (*memoryWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mw, ok := s.wallets[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return mw, nil
}

func (s *MemoryStore) acquire(ctx context.Context, mw *memoryWallet) error {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case mw.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrWalletBusy
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrWalletBusy, ctx.Err())
	}
}

func (s *MemoryStore) release(mw *memoryWallet) {
	<-mw.sem
}

func (s *MemoryStore) Get(ctx context.Context, accountID uuid.UUID) (*Wallet, error) {
	mw, err := s.lookup(accountID)
	if err != nil {
		return nil, err
	}
	mw.state.RLock()
	w := mw.wallet
	mw.state.RUnlock()
	return &w, nil
}

func (s *MemoryStore) Mutate(ctx context.Context, accountID uuid.UUID, period time.Time, fn MutateFunc) (*Wallet, *Transaction, error) {
	mw, err := s.lookup(accountID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.acquire(ctx, mw); err != nil {
		return nil, nil, err
	}
	defer s.release(mw)

	locked := time.Now()
	defer func() { metrics.ObserveLockHeld(time.Since(locked)) }()

	// fn works on a copy so a rejected mutation leaves nothing behind
	w := mw.wallet
	w.rollOver(period)

	draft, err := fn(&w)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if now.Before(mw.wallet.UpdatedAt) {
		now = mw.wallet.UpdatedAt
	}
	w.UpdatedAt = now

	var entry *Transaction
	if draft != nil {
		s.mu.Lock()
		s.seq++
		seq := s.seq
		s.mu.Unlock()

		entry = &Transaction{
			ID:           uuid.New(),
			Seq:          seq,
			WalletID:     w.ID,
			Kind:         draft.Kind,
			Amount:       draft.Amount,
			Description:  draft.Description,
			BalanceAfter: w.Balance,
			CreatedAt:    now,
		}
	}

	mw.state.Lock()
	if entry != nil {
		mw.ledger = append(mw.ledger, *entry)
	}
	mw.wallet = w
	mw.state.Unlock()
	return &w, entry, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error) {
	mw, err := s.lookup(accountID)
	if err != nil {
		return nil, err
	}
	mw.state.RLock()
	defer mw.state.RUnlock()

	out := make([]Transaction, 0, min(limit, len(mw.ledger)))
	for i := len(mw.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, mw.ledger[i])
	}
	return out, nil
}

func (s *MemoryStore) RollOverPeriods(ctx context.Context, period time.Time) (int64, error) {
	s.mu.RLock()
	all := make([]*memoryWallet, 0, len(s.wallets))
	for _, mw := range s.wallets {
		all = append(all, mw)
	}
	s.mu.RUnlock()

	var reset int64
	for _, mw := range all {
		if err := s.acquire(ctx, mw); err != nil {
			return reset, err
		}
		w := mw.wallet
		if w.rollOver(period) {
			if now := s.now(); now.After(w.UpdatedAt) {
				w.UpdatedAt = now
			}
			mw.state.Lock()
			mw.wallet = w
			mw.state.Unlock()
			reset++
		}
		s.release(mw)
	}
	return reset, nil
}
