package models

import "time"

// ProcessSample is one process observation from a single check cycle.
// ReadBytes and WriteBytes are cumulative for the lifetime of that
// process instance and reset to zero when the process restarts.
type ProcessSample struct {
	Identity   string
	PID        int32
	ReadBytes  uint64
	WriteBytes uint64
	ObservedAt time.Time
}

// Bytes returns the combined read+write counter for the sample.
func (s ProcessSample) Bytes() uint64 {
	return s.ReadBytes + s.WriteBytes
}

// UsageRecord accumulates disk usage for one application identity
// across process restarts. TotalBytes never decreases.
type UsageRecord struct {
	Identity             string     `json:"identity"`
	TotalBytes           uint64     `json:"total_bytes"`
	LastSeenPID          int32      `json:"last_seen_pid"`
	LastSeenProcessBytes uint64     `json:"last_seen_process_bytes"`
	LastAlertAt          *time.Time `json:"last_alert_at,omitempty"`
}

// Alert is the outcome of a check cycle for an identity that crossed
// the data limit while not in cooldown.
type Alert struct {
	Identity   string
	TotalBytes uint64
	FiredAt    time.Time
}
