package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartpay/smartpay-api/internal/pkg/metrics"
)

// PeriodWorker starts new spending periods for wallets nobody has touched since the month changed.
type PeriodWorker struct {
	store    Store
	period   func() time.Time
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPeriodWorker creates the rollover worker. period returns the current period start.
func NewPeriodWorker(store Store, period func() time.Time, interval time.Duration) *PeriodWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PeriodWorker{
		store:    store,
		period:   period,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background worker
func (w *PeriodWorker) Start() {
	log.Info().Dur("interval", w.interval).Msg("Starting wallet period worker...")
	go w.loop()
}

// Stop stops the worker and waits for the current sweep to finish
func (w *PeriodWorker) Stop() {
	w.stopOnce.Do(func() {
		log.Info().Msg("Stopping wallet period worker...")
		close(w.stopCh)
	})
	<-w.done
}

func (w *PeriodWorker) loop() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.RunOnce()

	for {
		select {
		case <-ticker.C:
			w.RunOnce()
		case <-w.stopCh:
			return
		}
	}
}

// RunOnce performs a single sweep and returns how many wallets were reset.
func (w *PeriodWorker) RunOnce() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	period := w.period()
	count, err := w.store.RollOverPeriods(ctx, period)
	metrics.AddPeriodResets(count)
	if err != nil {
		log.Error().Err(err).Time("period_start", period).Msg("Failed to roll over wallet periods")
		return count
	}
	if count > 0 {
		log.Info().Int64("count", count).Time("period_start", period).Msg("Rolled over wallet spending periods")
	}
	return count
}
