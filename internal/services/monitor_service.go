package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dataguardian/agent/internal/alerting"
	"github.com/dataguardian/agent/internal/ledger"
	"github.com/dataguardian/agent/pkg/notify"
	"github.com/dataguardian/agent/pkg/procio"
	"github.com/rs/zerolog"
)

// MonitorService runs the periodic check cycle: sample process I/O,
// merge into the ledger, evaluate alerts, deliver notifications.
type MonitorService struct {
	Interval  time.Duration
	Collector procio.Collector
	Ledger    *ledger.Ledger
	Engine    *alerting.Engine
	Notifier  notify.Notifier
	Logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitorService initializes a new MonitorService.
func NewMonitorService(interval time.Duration, collector procio.Collector, usageLedger *ledger.Ledger,
	engine *alerting.Engine, notifier notify.Notifier, logger zerolog.Logger) *MonitorService {

	return &MonitorService{
		Interval:  interval,
		Collector: collector,
		Ledger:    usageLedger,
		Engine:    engine,
		Notifier:  notifier,
		Logger:    logger,
	}
}

// Start launches the check loop in a separate goroutine.
func (m *MonitorService) Start() error {
	if m.ctx != nil {
		m.Logger.Warn().Msg("MonitorService is already running")
		return errors.New("monitor service is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runCheckLoop()
	}()

	m.Logger.Info().Dur("interval", m.Interval).Msg("MonitorService started successfully")
	return nil
}

// Stop gracefully stops the monitor service.
func (m *MonitorService) Stop() error {
	if m.ctx == nil {
		m.Logger.Warn().Msg("MonitorService is not running")
		return errors.New("monitor service is not running")
	}

	m.cancel()
	m.wg.Wait()

	m.ctx = nil
	m.cancel = nil

	m.Logger.Info().Msg("MonitorService stopped successfully")
	return nil
}

// runCheckLoop executes one check cycle per tick until cancelled.
func (m *MonitorService) runCheckLoop() {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runCheckCycle()

		case <-m.ctx.Done():
			m.Logger.Info().Msg("MonitorService stopping gracefully")
			return
		}
	}
}

// runCheckCycle performs sample -> merge -> evaluate -> notify.
// Notifications are delivered after the ledger lock is released, so
// slow delivery never blocks a concurrent persist.
func (m *MonitorService) runCheckCycle() {
	samples, err := m.Collector.Snapshot(m.ctx)
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to sample process I/O")
		return
	}

	alerts := m.Ledger.Check(samples, m.Engine, time.Now())

	for _, alert := range alerts {
		if err := m.Notifier.Notify(m.ctx, alert.Identity, alert.TotalBytes); err != nil {
			m.Logger.Error().Err(err).Str("identity", alert.Identity).
				Msg("Failed to send notification")
			continue
		}
		m.Logger.Info().Str("identity", alert.Identity).
			Uint64("total_bytes", alert.TotalBytes).
			Msg("Application exceeded data limit")
	}
}
