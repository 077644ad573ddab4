package orchestrator

import (
	"time"
)

// EventType represents the type of pipeline event.
type EventType string

const (
	// EventClassified is emitted once the routing decision is made.
	EventClassified EventType = "classified"
	// EventDispatchStarted is emitted before a specialist call.
	EventDispatchStarted EventType = "dispatch_started"
	// EventDispatchFinished is emitted after a successful specialist call.
	EventDispatchFinished EventType = "dispatch_finished"
	// EventDispatchFailed is emitted after a failed specialist call.
	EventDispatchFailed EventType = "dispatch_failed"
	// EventSynthesisStarted is emitted before the merge call.
	EventSynthesisStarted EventType = "synthesis_started"
	// EventSynthesisFinished is emitted after the merge call, failed or not.
	EventSynthesisFinished EventType = "synthesis_finished"
)

// Event is a progress notification. Handlers may be called from several
// goroutines at once and must not block.
type Event struct {
	Type       EventType
	Specialist string
	// Specialists is set on EventClassified.
	Specialists []string
	Duration    time.Duration
	Error       error
	Timestamp   time.Time
}

// EventHandler receives pipeline events.
type EventHandler func(Event)

func (h EventHandler) emit(e Event) {
	if h == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	h(e)
}
