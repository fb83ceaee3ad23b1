package ledger

import (
	"sync"
	"time"

	"github.com/dataguardian/agent/internal/alerting"
	"github.com/dataguardian/agent/internal/models"
	"github.com/rs/zerolog"
)

// Ledger is the in-memory authoritative mapping of application
// identity to accumulated usage. It is shared between the monitor and
// persistence services; one mutex guards the whole map so a merge
// cycle is atomic relative to a concurrent snapshot.
type Ledger struct {
	mu      sync.Mutex
	records map[string]*models.UsageRecord
	logger  zerolog.Logger
}

// NewLedger returns an empty Ledger.
func NewLedger(logger zerolog.Logger) *Ledger {
	return &Ledger{
		records: make(map[string]*models.UsageRecord),
		logger:  logger,
	}
}

// Merge folds one cycle's samples into the ledger and returns the
// identities whose TotalBytes changed.
func (l *Ledger) Merge(samples []models.ProcessSample) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mergeLocked(samples)
}

// Check runs a full check cycle: merge every sample, then evaluate the
// changed identities against the engine, all under one lock. Alerts
// have LastAlertAt recorded before the lock is released so concurrent
// evaluation at the same instant can never double-fire.
func (l *Ledger) Check(samples []models.ProcessSample, engine *alerting.Engine, now time.Time) []models.Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	var alerts []models.Alert
	for _, identity := range l.mergeLocked(samples) {
		rec := l.records[identity]
		if !engine.ShouldAlert(rec, now) {
			if rec.TotalBytes >= engine.DataLimit {
				l.logger.Debug().Str("identity", identity).
					Uint64("total_bytes", rec.TotalBytes).
					Msg("Over limit but in cooldown, skipping alert")
			}
			continue
		}
		firedAt := now
		rec.LastAlertAt = &firedAt
		alerts = append(alerts, models.Alert{
			Identity:   identity,
			TotalBytes: rec.TotalBytes,
			FiredAt:    firedAt,
		})
	}
	return alerts
}

func (l *Ledger) mergeLocked(samples []models.ProcessSample) []string {
	var changed []string
	seen := make(map[string]bool)
	for _, sample := range samples {
		if sample.Identity == "" {
			continue
		}

		rec, exists := l.records[sample.Identity]
		if !exists {
			rec = &models.UsageRecord{Identity: sample.Identity}
			l.records[sample.Identity] = rec
		}

		bytes := sample.Bytes()
		var delta uint64
		switch {
		case exists && rec.LastSeenPID == sample.PID && bytes >= rec.LastSeenProcessBytes:
			// Same process instance, counters moved forward.
			delta = bytes - rec.LastSeenProcessBytes
		case exists && rec.LastSeenPID == sample.PID:
			// Same PID but the counter regressed. Clamp to zero: on
			// Linux /proc io counters do not reset mid-lifetime, so
			// this is a sampling race, not a restart.
			delta = 0
		default:
			// First sighting of the identity, or a new process
			// instance under it. Its counters measure from its own
			// zero; a previous instance's final value is already in
			// TotalBytes.
			delta = bytes
		}

		rec.LastSeenPID = sample.PID
		rec.LastSeenProcessBytes = bytes
		if delta > 0 {
			rec.TotalBytes += delta
			if !seen[sample.Identity] {
				seen[sample.Identity] = true
				changed = append(changed, sample.Identity)
			}
		}
	}
	return changed
}

// Snapshot returns a copy of every record, safe to encode and write
// without holding the ledger lock.
func (l *Ledger) Snapshot() []models.UsageRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]models.UsageRecord, 0, len(l.records))
	for _, rec := range l.records {
		records = append(records, *rec)
	}
	return records
}

// Restore replaces the ledger's contents with the given records. It is
// a full replacement, used once at startup from the persisted snapshot.
func (l *Ledger) Restore(records []models.UsageRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]*models.UsageRecord, len(records))
	for _, rec := range records {
		if rec.Identity == "" {
			continue
		}
		r := rec
		l.records[rec.Identity] = &r
	}
}

// Get returns a copy of the record for the identity, if present.
func (l *Ledger) Get(identity string) (models.UsageRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identity]
	if !ok {
		return models.UsageRecord{}, false
	}
	return *rec, true
}

// Len returns the number of tracked identities.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
