package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/smartpay/smartpay-api/internal/pkg/metrics"
)

const (
	sqlStateLockNotAvailable = "55P03"
	sqlStateQueryCanceled    = "57014"

	walletColumns      = `id, account_id, balance, monthly_limit, spent_this_month, period_start, created_at, updated_at`
	transactionColumns = `id, seq, wallet_id, transaction_type, amount, description, balance_after, created_at`
)

// Repository is the PostgreSQL Store. The per-wallet critical section is a
// row lock held for one transaction.
type Repository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

func NewRepository(db *sqlx.DB, lockTimeout time.Duration) *Repository {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Repository{db: db, lockTimeout: lockTimeout}
}

func (r *Repository) Get(ctx context.Context, accountID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE account_id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet repository get: %w", err)
	}
	return &w, nil
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID) (*Wallet, error) {
	// SET does not take bind parameters. 0ms would disable the timeout, so sub-millisecond values round up.
	ms := max(r.lockTimeout.Milliseconds(), 1)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL lock_timeout = '%dms'`, ms)); err != nil {
		return nil, err
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE account_id = $1 FOR UPDATE`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, mapLockError(ctx, err)
	}
	return &w, nil
}

// updateWallet stores w. updated_at never moves backwards so ledger timestamps stay monotonic per wallet.
func (r *Repository) updateWallet(ctx context.Context, tx *sqlx.Tx, w *Wallet) error {
	return tx.GetContext(ctx, &w.UpdatedAt, `
		UPDATE wallets
		SET balance = $2, monthly_limit = $3, spent_this_month = $4, period_start = $5,
		    updated_at = GREATEST(clock_timestamp(), updated_at)
		WHERE id = $1
		RETURNING updated_at
	`, w.ID, w.Balance, w.MonthlyLimit, w.SpentThisMonth, w.PeriodStart)
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	return tx.GetContext(ctx, &t.Seq, `
		INSERT INTO wallet_transactions (id, wallet_id, transaction_type, amount, description, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`, t.ID, t.WalletID, t.Kind, t.Amount, t.Description, t.BalanceAfter, t.CreatedAt)
}

func (r *Repository) Mutate(ctx context.Context, accountID uuid.UUID, period time.Time, fn MutateFunc) (*Wallet, *Transaction, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, nil, mapLockError(ctx, err)
	}
	defer tx.Rollback()

	w, err := r.lockWallet(ctx, tx, accountID)
	if err != nil {
		return nil, nil, err
	}
	locked := time.Now()
	defer func() { metrics.ObserveLockHeld(time.Since(locked)) }()

	w.rollOver(period)

	draft, err := fn(w)
	if err != nil {
		return nil, nil, err
	}

	if err := r.updateWallet(ctx, tx, w); err != nil {
		return nil, nil, fmt.Errorf("wallet repository update: %w", mapLockError(ctx, err))
	}

	var entry *Transaction
	if draft != nil {
		entry = &Transaction{
			ID:           uuid.New(),
			WalletID:     w.ID,
			Kind:         draft.Kind,
			Amount:       draft.Amount,
			Description:  draft.Description,
			BalanceAfter: w.Balance,
			CreatedAt:    w.UpdatedAt,
		}
		if err := r.insertTransaction(ctx, tx, entry); err != nil {
			return nil, nil, fmt.Errorf("wallet repository append: %w", mapLockError(ctx, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("wallet repository commit: %w", mapLockError(ctx, err))
	}
	return w, entry, nil
}

func (r *Repository) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error) {
	var walletID uuid.UUID
	err := r.db.GetContext(ctx, &walletID, `SELECT id FROM wallets WHERE account_id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wallet repository list: %w", err)
	}

	txs := []Transaction{}
	err = r.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet repository list: %w", err)
	}
	return txs, nil
}

// RollOverPeriods relies on UPDATE taking the same row locks as Mutate.
func (r *Repository) RollOverPeriods(ctx context.Context, period time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallets
		SET spent_this_month = 0, period_start = $1, updated_at = GREATEST(clock_timestamp(), updated_at)
		WHERE period_start < $1
	`, period)
	if err != nil {
		return 0, fmt.Errorf("wallet repository rollover: %w", err)
	}
	return res.RowsAffected()
}

func mapLockError(ctx context.Context, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case sqlStateLockNotAvailable:
			return ErrWalletBusy
		case sqlStateQueryCanceled:
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrWalletBusy, ctx.Err())
			}
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, ctxErr) || errors.Is(err, sql.ErrTxDone)) {
		return fmt.Errorf("%w: %w", ErrWalletBusy, ctxErr)
	}
	return err
}
