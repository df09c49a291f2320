package protocol

// Queue is the ordered buffer of pending outbound events. It is owned by a
// single goroutine and is not safe for concurrent use.
type Queue struct {
	events []Event
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// EnqueueMouse appends a mouse event.
func (q *Queue) EnqueueMouse(kind Kind, x, y, button int, modifiers Modifiers) {
	q.events = append(q.events, NewMouseEvent(kind, x, y, button, modifiers))
}

// EnqueueKeyboard appends a keyboard event.
func (q *Queue) EnqueueKeyboard(kind Kind, code int, modifiers Modifiers) {
	q.events = append(q.events, NewKeyboardEvent(kind, code, modifiers))
}

// Len returns the number of queued events before coalescing.
func (q *Queue) Len() int {
	return len(q.events)
}

// Take coalesces the queued events, empties the queue and returns the batch.
// Events enqueued after Take go into a fresh buffer.
func (q *Queue) Take() []Event {
	if len(q.events) == 0 {
		return nil
	}
	batch := Coalesce(q.events)
	q.events = nil
	return batch
}

// Reset drops every queued event.
func (q *Queue) Reset() {
	q.events = nil
}

// Coalesce collapses every run of consecutive mouse moves into a single move
// at the last position of the run. Any other event ends the current run and
// passes through unchanged. Coalescing an already coalesced slice returns an
// equal slice.
func Coalesce(events []Event) []Event {
	out := make([]Event, 0, len(events))

	var pending *Event
	for i := range events {
		e := events[i]
		if e.IsMouseMove() {
			pending = &e
			continue
		}
		if pending != nil {
			out = append(out, *pending)
			pending = nil
		}
		out = append(out, e)
	}
	// trailing run
	if pending != nil {
		out = append(out, *pending)
	}

	return out
}
