package image

import "time"

// EventKind classifies a filesystem notification.
type EventKind int

// EventKind values. Deleted is ordered highest so coalescing can keep the
// strongest pending kind for a path.
const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// PendingEvent is a filesystem notification held only long enough to apply
// debouncing.
type PendingEvent struct {
	path       string
	kind       EventKind
	observedAt time.Time
}

// NewPendingEvent creates a PendingEvent.
func NewPendingEvent(path string, kind EventKind, observedAt time.Time) PendingEvent {
	return PendingEvent{path: path, kind: kind, observedAt: observedAt}
}

// Path returns the affected path.
func (e PendingEvent) Path() string { return e.path }

// Kind returns the event kind.
func (e PendingEvent) Kind() EventKind { return e.kind }

// ObservedAt returns when the notification was received.
func (e PendingEvent) ObservedAt() time.Time { return e.observedAt }

// Supersede merges a newer notification for the same path into this pending
// event. The timestamp always advances; a deleted kind is never downgraded by
// an older created/modified that happens to arrive late, and a deleted
// arriving after create/modify always wins.
func (e PendingEvent) Supersede(next PendingEvent) PendingEvent {
	kind := next.kind
	if e.kind == EventDeleted && next.kind != EventDeleted {
		// A create after a delete means the path exists again.
		if next.kind == EventCreated {
			kind = EventCreated
		} else {
			kind = EventDeleted
		}
	}
	return PendingEvent{path: e.path, kind: kind, observedAt: next.observedAt}
}
