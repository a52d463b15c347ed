/*
scheduler.go - Periodic payable snapshots

PURPOSE:
  Every interval, computes the aggregate payable/paid/pending of every
  member of every studio and stores it as a payable_snapshots row. The
  history backs the /snapshots endpoint.

DESIGN:
  - One background goroutine driven by a ticker
  - Runs once immediately on Start
  - A member whose load fails is logged and skipped; the run continues
  - Start and Stop are idempotent

USAGE:
  scheduler := NewPayableSnapshotScheduler(store, logger)
  scheduler.Interval = cfg.SnapshotInterval
  scheduler.Start()
  defer scheduler.Stop()

SEE ALSO:
  - finance/snapshot.go: Reconciler
  - store/sqlite/sqlite.go: SavePayableSnapshot
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/studio-finance/finance"
	"github.com/warp/studio-finance/store/sqlite"
)

// PayableSnapshotScheduler records payable snapshots on an interval.
type PayableSnapshotScheduler struct {
	Store      *sqlite.Store
	Reconciler *finance.Reconciler
	Interval   time.Duration
	Enabled    bool
	Now        func() time.Time

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayableSnapshotScheduler creates a scheduler with a one hour interval.
func NewPayableSnapshotScheduler(store *sqlite.Store, log *zap.Logger) *PayableSnapshotScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PayableSnapshotScheduler{
		Store:      store,
		Reconciler: finance.NewReconciler(store),
		Interval:   time.Hour,
		Enabled:    true,
		Now:        time.Now,
		log:        log.Named("snapshots"),
	}
}

// Start begins the scheduler. It is a no-op when disabled or running.
func (s *PayableSnapshotScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.log.Info("scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for an in-flight run.
func (s *PayableSnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.log.Info("scheduler stopped")
}

func (s *PayableSnapshotScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow snapshots every member synchronously and returns how many
// snapshots were written.
func (s *PayableSnapshotScheduler) RunNow(ctx context.Context) int {
	takenAt := s.Now().UTC()

	studios, err := s.Store.ListStudios(ctx)
	if err != nil {
		s.log.Error("listing studios failed", zap.Error(err))
		return 0
	}

	written, failed := 0, 0
	for _, studio := range studios {
		members, err := s.Store.ListMembers(ctx, studio)
		if err != nil {
			s.log.Error("listing members failed", zap.String("studio_id", string(studio)), zap.Error(err))
			failed++
			continue
		}

		for _, m := range members {
			if ctx.Err() != nil {
				return written
			}

			summary, err := s.Reconciler.Aggregate(ctx, studio, m.ID)
			if err != nil {
				s.log.Warn("snapshot skipped",
					zap.String("studio_id", string(studio)),
					zap.String("member_id", string(m.ID)),
					zap.Error(err),
				)
				failed++
				continue
			}

			err = s.Store.SavePayableSnapshot(ctx, sqlite.PayableSnapshot{
				StudioID: studio,
				MemberID: m.ID,
				Payable:  summary.Payable,
				Paid:     summary.Paid,
				Pending:  summary.Pending,
				Balance:  summary.Balance,
				TakenAt:  takenAt,
			})
			if err != nil {
				s.log.Error("saving snapshot failed",
					zap.String("studio_id", string(studio)),
					zap.String("member_id", string(m.ID)),
					zap.Error(err),
				)
				failed++
				continue
			}
			written++
		}
	}

	s.log.Info("snapshot run completed",
		zap.Int("studios", len(studios)),
		zap.Int("written", written),
		zap.Int("failed", failed),
	)
	return written
}
