package alerting

import (
	"testing"
	"time"

	"github.com/dataguardian/agent/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestEngine_ShouldAlert_UnderLimit(t *testing.T) {
	engine := NewEngine(1000)
	rec := &models.UsageRecord{Identity: "chrome", TotalBytes: 999}

	assert.False(t, engine.ShouldAlert(rec, time.Now()))
}

func TestEngine_ShouldAlert_FirstCrossing(t *testing.T) {
	engine := NewEngine(1000)
	rec := &models.UsageRecord{Identity: "chrome", TotalBytes: 1000}

	assert.True(t, engine.ShouldAlert(rec, time.Now()))
}

func TestEngine_ShouldAlert_CooldownWindow(t *testing.T) {
	engine := &Engine{DataLimit: 100, Cooldown: 5 * time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fired := now
	rec := &models.UsageRecord{Identity: "chrome", TotalBytes: 150, LastAlertAt: &fired}

	assert.False(t, engine.ShouldAlert(rec, now))
	assert.False(t, engine.ShouldAlert(rec, now.Add(4*time.Minute)))
	assert.True(t, engine.ShouldAlert(rec, now.Add(5*time.Minute)))
	assert.True(t, engine.ShouldAlert(rec, now.Add(time.Hour)))
}

func TestEngine_ShouldAlert_IdempotentAtOneInstant(t *testing.T) {
	engine := &Engine{DataLimit: 100, Cooldown: 5 * time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := &models.UsageRecord{Identity: "chrome", TotalBytes: 150}

	// ShouldAlert never mutates; only recording LastAlertAt (the
	// caller's act of emitting) transitions the record into cooldown.
	assert.True(t, engine.ShouldAlert(rec, now))
	assert.True(t, engine.ShouldAlert(rec, now))

	rec.LastAlertAt = &now
	assert.False(t, engine.ShouldAlert(rec, now))
	assert.False(t, engine.ShouldAlert(rec, now))
}

func TestEngine_InCooldown(t *testing.T) {
	engine := &Engine{DataLimit: 100, Cooldown: 5 * time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := &models.UsageRecord{Identity: "chrome", TotalBytes: 150}
	assert.False(t, engine.InCooldown(rec, now))

	rec.LastAlertAt = &now
	assert.True(t, engine.InCooldown(rec, now.Add(time.Minute)))
	assert.False(t, engine.InCooldown(rec, now.Add(10*time.Minute)))
}

func TestNewEngine_Defaults(t *testing.T) {
	engine := NewEngine(1 << 30)
	assert.Equal(t, uint64(1<<30), engine.DataLimit)
	assert.Equal(t, DefaultCooldown, engine.Cooldown)
}
