package domain

// EventKind names an outward notification raised by a host.
type EventKind string

// Host events broadcast to the surrounding simulation.
const (
	EventNewClinicalCase EventKind = "new_clinical_case"
	EventNewSevereCase   EventKind = "new_severe_case"
	EventSevereAnemia    EventKind = "severe_anemia"
	EventInfectionClear  EventKind = "infection_cleared"
	EventHostDeath       EventKind = "host_death"
)

// Event is a single notification. HostID is stamped by the host before the
// event leaves it; Cause is only set for severe cases.
type Event struct {
	Kind   EventKind      `json:"kind"`
	HostID string         `json:"host_id"`
	Cause  SevereCaseType `json:"cause,omitempty"`
}

// EventSink receives host events. Implementations are called synchronously
// from the stepping goroutine of the host.
type EventSink interface {
	Broadcast(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Broadcast calls f(e).
func (f EventSinkFunc) Broadcast(e Event) { f(e) }

// DiscardEvents is a sink that drops every event.
var DiscardEvents EventSink = EventSinkFunc(func(Event) {})
