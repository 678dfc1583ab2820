package wallet_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartpay/smartpay-api/internal/domain/user"
	"github.com/smartpay/smartpay-api/internal/domain/wallet"
	"github.com/smartpay/smartpay-api/internal/pkg/password"
)

const testPIN = "1234"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []wallet.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, accountID uuid.UUID, event wallet.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []wallet.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]wallet.Event(nil), p.events...)
}

type fixture struct {
	svc      *wallet.Service
	store    *wallet.MemoryStore
	accounts *user.MemoryRepository
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, wallet.Config{Location: time.UTC})
}

func newFixtureWith(t *testing.T, cfg wallet.Config) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	store := wallet.NewMemoryStore(200 * time.Millisecond)
	accounts := user.NewMemoryRepository(store)
	cfg.Clock = clock.Now
	svc := wallet.NewService(store, accounts, cfg)
	return &fixture{svc: svc, store: store, accounts: accounts, clock: clock}
}

// newAccount creates an account with an empty wallet in the current period.
func (f *fixture) newAccount(t *testing.T) uuid.UUID {
	t.Helper()
	pinHash, err := password.HashWithCost(testPIN, bcrypt.MinCost)
	require.NoError(t, err)

	u := &user.User{
		ID:           uuid.New(),
		Name:         "Asha Rao",
		Email:        uuid.NewString() + "@example.com",
		MobileNumber: "+919876543210",
		PasswordHash: "unused",
		PINHash:      pinHash,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	require.NoError(t, f.accounts.Create(context.Background(), u, f.svc.CurrentPeriod()))
	return u.ID
}

func (f *fixture) fund(t *testing.T, accountID uuid.UUID, amount string) {
	t.Helper()
	_, err := f.svc.AddMoney(context.Background(), accountID, dec(amount))
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
