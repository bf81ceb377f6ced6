// Package loss classifies probe outcomes into drop, loss-period and
// high-ping events.
package loss

import "time"

// DefaultThresholdMs is the high-ping threshold used when none is configured.
const DefaultThresholdMs = 100

// Outcome is the result of one probe: a success with a latency, or a failure.
type Outcome struct {
	Success   bool
	LatencyMs float64
}

// Succeeded returns a successful outcome with the given latency.
func Succeeded(latencyMs float64) Outcome {
	if latencyMs < 0 {
		latencyMs = 0
	}
	return Outcome{Success: true, LatencyMs: latencyMs}
}

// Failed returns a failed outcome.
func Failed() Outcome {
	return Outcome{}
}

// Period is one contiguous run of failed probes.
type Period struct {
	Start time.Time
	Count int
}

// State is the tracker state. The zero value is Idle.
type State struct {
	open *Period
}

// InLoss reports whether a loss period is open.
func (s State) InLoss() bool {
	return s.open != nil
}

// Open returns a copy of the open loss period, if any.
func (s State) Open() (Period, bool) {
	if s.open == nil {
		return Period{}, false
	}
	return *s.open, true
}

// Kind identifies an event type.
type Kind int

const (
	KindDrop Kind = iota + 1
	KindLossStarted
	KindLossEnded
	KindHighPing
)

var kindNames = map[Kind]string{
	KindDrop:        "drop",
	KindLossStarted: "loss_started",
	KindLossEnded:   "loss_ended",
	KindHighPing:    "high_ping",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is emitted by Step. Only the fields relevant to Kind are set.
type Event struct {
	Kind        Kind
	At          time.Time
	Duration    time.Duration // KindLossEnded
	Count       int           // KindLossEnded
	LatencyMs   float64       // KindHighPing
	ThresholdMs float64       // KindHighPing
}

// Step applies one outcome observed at now to s and returns the next state
// with the events to record, in order: loss events first, then the
// high-ping check.
func Step(s State, o Outcome, now time.Time, thresholdMs float64) (State, []Event) {
	var events []Event

	if !o.Success {
		events = append(events, Event{Kind: KindDrop, At: now})
		if s.open == nil {
			events = append(events, Event{Kind: KindLossStarted, At: now})
			return State{open: &Period{Start: now, Count: 1}}, events
		}
		next := *s.open
		next.Count++
		return State{open: &next}, events
	}

	if s.open != nil {
		duration := now.Sub(s.open.Start)
		if duration < 0 {
			duration = 0
		}
		events = append(events, Event{
			Kind:     KindLossEnded,
			At:       now,
			Duration: duration,
			Count:    s.open.Count,
		})
	}

	if o.LatencyMs > thresholdMs {
		events = append(events, Event{
			Kind:        KindHighPing,
			At:          now,
			LatencyMs:   o.LatencyMs,
			ThresholdMs: thresholdMs,
		})
	}
	return State{}, events
}

// Tracker owns a State and a threshold and feeds outcomes through Step.
// It is not safe for concurrent use.
type Tracker struct {
	state       State
	thresholdMs float64
}

// NewTracker returns an Idle tracker. A non-positive threshold is replaced by
// DefaultThresholdMs.
func NewTracker(thresholdMs float64) *Tracker {
	if thresholdMs <= 0 {
		thresholdMs = DefaultThresholdMs
	}
	return &Tracker{thresholdMs: thresholdMs}
}

// Observe records one outcome and returns the resulting events.
func (t *Tracker) Observe(o Outcome, now time.Time) []Event {
	next, events := Step(t.state, o, now, t.thresholdMs)
	t.state = next
	return events
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// ThresholdMs returns the high-ping threshold in milliseconds.
func (t *Tracker) ThresholdMs() float64 {
	return t.thresholdMs
}
