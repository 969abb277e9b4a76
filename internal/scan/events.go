package scan

import "time"

// State names the phase a run is in. Terminal states are Complete, Error and
// Cancelled.
type State string

const (
	StateIdle        State = "idle"
	StateEnumerating State = "enumerating"
	StateParsing     State = "parsing"
	StatePersisting  State = "persisting"
	StateComplete    State = "complete"
	StateError       State = "error"
	StateCancelled   State = "cancelled"
)

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateError, StateCancelled:
		return true
	}
	return false
}

// Event is one progress or terminal notification from a run. Terminal events
// carry the summary and are delivered exactly once, after every progress
// event for the run.
type Event struct {
	RunID      string
	LocationID int64
	State      State
	Path       string
	Processed  int
	Total      int
	Summary    *Summary
	Err        error
}

// Summary aggregates the outcome of one run.
type Summary struct {
	RunID      string
	LocationID int64
	State      State

	ProjectsSeen     int
	ProjectsInserted int
	ProjectsUpdated  int
	ProjectsMoved    int
	ProjectsFailed   int
	ExportsSeen      int
	MarkedMissing    int

	Warnings []string
	Duration time.Duration
}

// publisher pushes events into a subscriber-owned channel. Progress is sent
// non-blocking so a slow consumer drops progress instead of stalling the run;
// the terminal event always blocks until delivered.
type publisher struct {
	events  chan<- Event
	dropped int
}

func (p *publisher) progress(ev Event) {
	if p.events == nil {
		return
	}
	select {
	case p.events <- ev:
	default:
		p.dropped++
	}
}

func (p *publisher) terminal(ev Event) {
	if p.events == nil {
		return
	}
	p.events <- ev
}
