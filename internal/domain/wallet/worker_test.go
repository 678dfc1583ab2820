package wallet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpay/smartpay-api/internal/domain/wallet"
)

func TestPeriodWorkerResetsElapsedPeriods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newAccount(t)
	f.fund(t, id, "100")
	_, err := f.svc.MakePayment(ctx, id, dec("25"), testPIN, "")
	require.NoError(t, err)

	w := wallet.NewPeriodWorker(f.store, f.svc.CurrentPeriod, time.Hour)
	assert.Equal(t, int64(0), w.RunOnce(), "current period is left alone")

	f.clock.Set(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(1), w.RunOnce())
	assert.Equal(t, int64(0), w.RunOnce(), "sweep is idempotent")

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.SpentThisMonth.IsZero())
	assert.True(t, stored.Balance.Equal(dec("75")), "balance is untouched")
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), stored.PeriodStart)
}

func TestPeriodWorkerStartStop(t *testing.T) {
	f := newFixture(t)
	id := f.newAccount(t)
	f.fund(t, id, "10")
	_, err := f.svc.MakePayment(context.Background(), id, dec("5"), testPIN, "")
	require.NoError(t, err)
	f.clock.Set(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	w := wallet.NewPeriodWorker(f.store, f.svc.CurrentPeriod, time.Hour)
	w.Start()
	require.Eventually(t, func() bool {
		stored, err := f.store.Get(context.Background(), id)
		return err == nil && stored.SpentThisMonth.IsZero()
	}, time.Second, 10*time.Millisecond, "worker runs once on start")
	w.Stop()
	w.Stop()
}
