package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dataguardian/agent/internal/ledger"
	"github.com/dataguardian/agent/internal/store"
	"github.com/rs/zerolog"
)

// drainTimeout bounds the final flush during shutdown.
const drainTimeout = 10 * time.Second

// PersistenceService periodically flushes the ledger to the snapshot
// store, and performs one final flush on shutdown.
type PersistenceService struct {
	Interval time.Duration
	Ledger   *ledger.Ledger
	Store    *store.Store
	Logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPersistenceService initializes a new PersistenceService.
func NewPersistenceService(interval time.Duration, usageLedger *ledger.Ledger,
	snapshotStore *store.Store, logger zerolog.Logger) *PersistenceService {

	return &PersistenceService{
		Interval: interval,
		Ledger:   usageLedger,
		Store:    snapshotStore,
		Logger:   logger,
	}
}

// Start launches the persistence loop in a separate goroutine.
func (p *PersistenceService) Start() error {
	if p.ctx != nil {
		p.Logger.Warn().Msg("PersistenceService is already running")
		return errors.New("persistence service is already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runPersistenceLoop()
	}()

	p.Logger.Info().Dur("interval", p.Interval).Msg("PersistenceService started successfully")
	return nil
}

// Stop gracefully stops the persistence service after one final flush.
// A flush failure during drain is logged, not returned: in-memory
// state is lost either way once the process exits, and shutdown must
// still report success.
func (p *PersistenceService) Stop() error {
	if p.ctx == nil {
		p.Logger.Warn().Msg("PersistenceService is not running")
		return errors.New("persistence service is not running")
	}

	p.cancel()
	p.wg.Wait()

	p.drain()

	p.ctx = nil
	p.cancel = nil

	p.Logger.Info().Msg("PersistenceService stopped successfully")
	return nil
}

// runPersistenceLoop flushes the ledger once per tick until cancelled.
func (p *PersistenceService) runPersistenceLoop() {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flush()

		case <-p.ctx.Done():
			p.Logger.Info().Msg("PersistenceService stopping gracefully")
			return
		}
	}
}

// flush snapshots the ledger and writes it out. The ledger lock is
// held only while cloning records; encode, compress and write happen
// off the lock. A failed flush keeps in-memory state and retries
// naturally on the next tick.
func (p *PersistenceService) flush() {
	records := p.Ledger.Snapshot()
	if err := p.Store.Save(records); err != nil {
		p.Logger.Error().Err(err).Msg("Failed to persist usage data")
	}
}

// drain performs the shutdown flush, bounded so a hung disk cannot
// stall process exit indefinitely.
func (p *PersistenceService) drain() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.flush()
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		p.Logger.Error().Dur("timeout", drainTimeout).Msg("Final persist timed out, exiting anyway")
	}
}
