package state

import (
	"time"

	"github.com/doridoridoriand/pinglog/internal/loss"
	"github.com/doridoridoriand/pinglog/internal/ping"
)

// Status represents target health.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusUp      Status = "UP"
	StatusSlow    Status = "SLOW"
	StatusLoss    Status = "LOSS"
)

// Snapshot captures the live view of the monitored target.
type Snapshot struct {
	Target        string
	ThresholdMs   int
	Status        Status
	LastRTT       time.Duration
	LastProbeAt   time.Time
	LossStartedAt time.Time
	LossCount     int
	Lines         []string
}

// Store defines operations for tracking the live state.
type Store interface {
	Update(at time.Time, result ping.Result, tracker loss.State)
	Snapshot() Snapshot
}
