// Package protocol defines the client side of the console event protocol:
// the event kinds and modifier masks shared with the session host, the
// outbound event queue and the pipe-delimited batch encoding.
package protocol

import "fmt"

// Kind identifies a mouse or keyboard event on the wire.
type Kind int

// Event kinds (matching the session host protocol)
const (
	MouseMove        Kind = 1
	MouseDown        Kind = 2
	MouseUp          Kind = 3
	KeyPress         Kind = 4
	KeyDown          Kind = 5
	KeyUp            Kind = 6
	EventBag         Kind = 7
	MouseDoubleClick Kind = 8
)

func (k Kind) String() string {
	switch k {
	case MouseMove:
		return "mouse_move"
	case MouseDown:
		return "mouse_down"
	case MouseUp:
		return "mouse_up"
	case KeyPress:
		return "key_press"
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case EventBag:
		return "event_bag"
	case MouseDoubleClick:
		return "mouse_dblclick"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsMouse reports whether k is a pointer event kind.
func (k Kind) IsMouse() bool {
	switch k {
	case MouseMove, MouseDown, MouseUp, MouseDoubleClick:
		return true
	}
	return false
}

// Modifiers is a bitmask of held modifier keys. Bit positions follow the
// Java AWT masks the session host expects.
type Modifiers int

const (
	ModShift     Modifiers = 64
	ModCtrl      Modifiers = 128
	ModMeta      Modifiers = 256
	ModAlt       Modifiers = 512
	ModLeftShift Modifiers = 1024
	ModLeftCtrl  Modifiers = 2048
	ModLeftAlt   Modifiers = 4096
)

// Has reports whether every bit of m2 is set in m.
func (m Modifiers) Has(m2 Modifiers) bool {
	return m&m2 == m2
}

// Shift reports whether a shift key is held.
func (m Modifiers) Shift() bool {
	return m&ModShift != 0
}

// AltGr reports whether the AltGr chord (Alt together with Ctrl) is held.
func (m Modifiers) AltGr() bool {
	return m&ModAlt != 0 && m&ModCtrl != 0
}

// EventType is the discriminator of a queued event record.
type EventType int

const (
	EventTypeMouse    EventType = 1
	EventTypeKeyboard EventType = 2
)

// Event is a queued client event, either a mouse or a keyboard event
// depending on Type. Mouse events use X, Y and Button; keyboard events use
// Code.
type Event struct {
	Type      EventType
	Kind      Kind
	X         int
	Y         int
	Button    int
	Code      int
	Modifiers Modifiers
}

// NewMouseEvent builds a mouse event record.
func NewMouseEvent(kind Kind, x, y, button int, modifiers Modifiers) Event {
	return Event{
		Type:      EventTypeMouse,
		Kind:      kind,
		X:         x,
		Y:         y,
		Button:    button,
		Modifiers: modifiers,
	}
}

// NewKeyboardEvent builds a keyboard event record.
func NewKeyboardEvent(kind Kind, code int, modifiers Modifiers) Event {
	return Event{
		Type:      EventTypeKeyboard,
		Kind:      kind,
		Code:      code,
		Modifiers: modifiers,
	}
}

// IsMouseMove reports whether e is a pointer motion event.
func (e Event) IsMouseMove() bool {
	return e.Type == EventTypeMouse && e.Kind == MouseMove
}
