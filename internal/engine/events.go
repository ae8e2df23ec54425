package engine

import (
	"time"

	"github.com/ShayCichocki/invested/internal/debate"
)

// EventType classifies progress events emitted during a run.
type EventType string

const (
	// EventRunStarted fires once, after the run record is created.
	EventRunStarted EventType = "run_started"
	// EventNodeEntered fires when the state machine enters a node.
	EventNodeEntered EventType = "node_entered"
	// EventIterationDone fires after validation completes a round.
	EventIterationDone EventType = "iteration_done"
	// EventRunFinished fires once, after the terminal action (or a failure).
	EventRunFinished EventType = "run_finished"
)

// Event is one progress report. Events are emitted synchronously on the run
// goroutine; sinks that need to buffer should do so themselves.
type Event struct {
	Type        EventType
	RunID       string
	ArtifactKey string
	Node        debate.Node
	Iteration   int
	Confidence  float64
	Violations  int
	Message     string
	Time        time.Time
}

// EventSink receives progress events. A nil sink disables reporting.
type EventSink func(Event)

// emit sends an event to the sink if one is configured.
func (o *Optimizer) emit(e Event) {
	if o.events == nil {
		return
	}
	e.Time = time.Now()
	o.events(e)
}
