package state

import (
	"strings"
	"sync"
	"time"

	"github.com/doridoridoriand/pinglog/internal/loss"
	"github.com/doridoridoriand/pinglog/internal/ping"
)

const defaultLineHistory = 200

// StoreImpl is a thread-safe in-memory state store. It also implements
// io.Writer, keeping the most recent complete lines written to it, so it can
// stand in for the console while the dashboard owns the terminal.
type StoreImpl struct {
	mu          sync.RWMutex
	snapshot    Snapshot
	lineHistory int
	partial     strings.Builder
}

// NewStore creates a store for target.
func NewStore(target string, thresholdMs int) *StoreImpl {
	return &StoreImpl{
		snapshot: Snapshot{
			Target:      target,
			ThresholdMs: thresholdMs,
			Status:      StatusUnknown,
		},
		lineHistory: defaultLineHistory,
	}
}

// Update records the latest probe result and the tracker state after it.
func (s *StoreImpl) Update(at time.Time, result ping.Result, tracker loss.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastProbeAt = at
	if period, ok := tracker.Open(); ok {
		s.snapshot.Status = StatusLoss
		s.snapshot.LossStartedAt = period.Start
		s.snapshot.LossCount = period.Count
		return
	}

	s.snapshot.LossStartedAt = time.Time{}
	s.snapshot.LossCount = 0
	s.snapshot.LastRTT = result.RTT
	if float64(result.RTT)/float64(time.Millisecond) > float64(s.snapshot.ThresholdMs) {
		s.snapshot.Status = StatusSlow
	} else {
		s.snapshot.Status = StatusUp
	}
}

// Snapshot returns a copy of the current state.
func (s *StoreImpl) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := s.snapshot
	if len(s.snapshot.Lines) > 0 {
		clone.Lines = append([]string(nil), s.snapshot.Lines...)
	}
	return clone
}

// Write splits p into lines and appends complete ones to the history.
func (s *StoreImpl) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial.Write(p)
	buffered := s.partial.String()
	idx := strings.LastIndexByte(buffered, '\n')
	if idx < 0 {
		return len(p), nil
	}
	complete, rest := buffered[:idx], buffered[idx+1:]
	s.partial.Reset()
	s.partial.WriteString(rest)

	for _, line := range strings.Split(complete, "\n") {
		s.appendLine(line)
	}
	return len(p), nil
}

func (s *StoreImpl) appendLine(line string) {
	if s.lineHistory <= 0 {
		return
	}
	if len(s.snapshot.Lines) < s.lineHistory {
		s.snapshot.Lines = append(s.snapshot.Lines, line)
		return
	}
	copy(s.snapshot.Lines, s.snapshot.Lines[1:])
	s.snapshot.Lines[len(s.snapshot.Lines)-1] = line
}
