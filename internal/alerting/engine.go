package alerting

import (
	"time"

	"github.com/dataguardian/agent/internal/models"
)

// DefaultCooldown is the minimum gap between two alerts for the same
// identity. It is deliberately longer than any sane check interval so
// an application staying over the limit does not alert every cycle.
const DefaultCooldown = 5 * time.Minute

// Engine decides whether a usage record warrants an alert right now.
// Cooldown state is not kept here; it is derived from the record's
// LastAlertAt, so it survives restarts along with the record.
type Engine struct {
	DataLimit uint64
	Cooldown  time.Duration
}

// NewEngine returns an Engine with the given data limit and the
// default cooldown.
func NewEngine(dataLimit uint64) *Engine {
	return &Engine{
		DataLimit: dataLimit,
		Cooldown:  DefaultCooldown,
	}
}

// ShouldAlert reports whether the record is over the limit and out of
// cooldown at the given instant. It does not mutate the record; the
// caller records LastAlertAt once the alert is actually emitted.
func (e *Engine) ShouldAlert(rec *models.UsageRecord, now time.Time) bool {
	if rec.TotalBytes < e.DataLimit {
		return false
	}
	if rec.LastAlertAt == nil {
		return true
	}
	return now.Sub(*rec.LastAlertAt) >= e.Cooldown
}

// InCooldown reports whether the record alerted within the cooldown
// window ending at now.
func (e *Engine) InCooldown(rec *models.UsageRecord, now time.Time) bool {
	return rec.LastAlertAt != nil && now.Sub(*rec.LastAlertAt) < e.Cooldown
}
