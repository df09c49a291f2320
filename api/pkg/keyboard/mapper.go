// Package keyboard translates browser key events into the keysym stream
// understood by the remote console. Translation is table driven per
// keyboard profile; see Mapper for the two input-handling strategies.
package keyboard

import (
	"github.com/helixml/consoleviewer/api/pkg/protocol"
)

// Guest OS and browser hints as reported by the session bootstrap.
const (
	GuestWindows   = "windows"
	GuestUnset     = ""
	guestUnsetNull = "null"

	BrowserFirefox = "firefox"
	BrowserChrome  = "chrome"
	BrowserSafari  = "safari"
	BrowserMSIE    = "msie"
)

// Input is a raw local key event together with the context conditional
// entries are matched against.
type Input struct {
	Kind           protocol.Kind
	Code           int
	Modifiers      protocol.Modifiers
	GuestOS        string
	Browser        string
	BrowserVersion string
}

// Event is a translated key event ready to be queued for the host.
type Event struct {
	Kind      protocol.Kind
	Code      int
	Modifiers protocol.Modifiers
}

// Mapper translates key input under the active profile. Output accumulates
// in a pending queue that is only ever read through Drain. A Mapper is not
// safe for concurrent use.
type Mapper struct {
	profile Profile
	keymap  *Keymap
	keymaps map[Profile]*Keymap

	pending []Event
}

// Option customizes a Mapper.
type Option func(*Mapper)

// WithKeymap overrides the built-in keymap of a profile.
func WithKeymap(p Profile, km *Keymap) Option {
	return func(m *Mapper) {
		m.keymaps[p] = km
	}
}

// NewMapper returns a mapper using the given profile.
func NewMapper(profile Profile, opts ...Option) *Mapper {
	m := &Mapper{
		keymaps: make(map[Profile]*Keymap, len(builtinKeymaps)),
	}
	for p, km := range builtinKeymaps {
		m.keymaps[p] = km
	}
	for _, opt := range opts {
		opt(m)
	}
	m.SetProfile(profile)
	return m
}

// SetProfile switches the active profile. Pending output is kept.
func (m *Mapper) SetProfile(p Profile) {
	km, ok := m.keymaps[p]
	if !ok {
		p = ProfileUS
		km = m.keymaps[p]
	}
	m.profile = p
	m.keymap = km
}

// Profile returns the active profile.
func (m *Mapper) Profile() Profile {
	return m.profile
}

// Drain returns the pending translated events and clears the queue.
func (m *Mapper) Drain() []Event {
	out := m.pending
	m.pending = nil
	return out
}

// Feed translates one local key event and appends the result, zero or more
// events, to the pending queue. Mapping is total: unknown codes are passed
// through.
func (m *Mapper) Feed(in Input) {
	if m.profile.Raw() {
		m.feedRaw(in)
	} else {
		m.feedCooked(in)
	}
}

// feedRaw handles profiles whose primary signal is Down/Up.
func (m *Mapper) feedRaw(in Input) {
	switch in.Kind {
	case protocol.KeyDown, protocol.KeyUp:
		if m.ctrlAltInsert(in) {
			return
		}

		rule, ok := m.keymap.KeyCode(in.Code)
		// the rule is skipped for pure-Shift chords on non-Windows guests,
		// except for Caps Lock which always maps
		if ok && (in.GuestOS == GuestWindows || in.Modifiers != protocol.ModShift || in.Code == JSKeyCapsLock) {
			if !m.applyKeyCode(rule, in) {
				return
			}
		} else {
			m.emit(in.Kind, in.Code, in.Modifiers)
		}
		m.releaseModifier(in)

	case protocol.KeyPress:
		if !guestUnset(in.GuestOS) {
			// Down/Up already carried the key
			return
		}
		if in.Code == JSKeyEnter || in.Code == JSKeyBackspace || in.Code <= 0 {
			return
		}
		if rule, ok := m.keymap.KeyPress(in.Code); ok {
			m.applyKeyPress(rule, in)
			return
		}
		if (in.Code == 48 && in.Modifiers == protocol.ModShift) || (in.Code == 95 && in.Modifiers == 0) {
			return
		}
		m.emitStroke(in.Code, in.Modifiers)
	}
}

// feedCooked handles profiles whose characters arrive through KeyPress.
func (m *Mapper) feedCooked(in Input) {
	switch in.Kind {
	case protocol.KeyDown, protocol.KeyUp:
		if m.ctrlAltInsert(in) {
			return
		}

		if rule, ok := m.keymap.KeyCode(in.Code); ok {
			if !m.applyKeyCode(rule, in) {
				return
			}
		} else if in.Modifiers&(protocol.ModCtrl|protocol.ModAlt) != 0 {
			// plain characters follow as KeyPress; only chords go through here
			m.emit(in.Kind, in.Code, in.Modifiers)
		}
		m.releaseModifier(in)

	case protocol.KeyPress:
		switch in.Code {
		case JSNumpadMultiply, JSNumpadPlus:
			// no distinct numpad operator keysym: type the shifted literal
			m.emit(protocol.KeyDown, XKShiftL, in.Modifiers)
			m.emit(protocol.KeyDown, in.Code, in.Modifiers)
			m.emit(protocol.KeyUp, in.Code, in.Modifiers)
			m.emit(protocol.KeyUp, XKShiftL, in.Modifiers)
			return
		case JSKeyEnter, JSKeyBackspace:
			return
		}
		if in.Code <= 0 {
			return
		}
		if rule, ok := m.keymap.KeyPress(in.Code); ok {
			m.applyKeyPress(rule, in)
			return
		}
		m.emitStroke(in.Code, in.Modifiers)
	}
}

// ctrlAltInsert rewrites Ctrl+Alt+Insert into Delete, so the chord can
// stand in for Ctrl+Alt+Del which the local OS usually intercepts.
func (m *Mapper) ctrlAltInsert(in Input) bool {
	if in.Code != JSKeyInsert || !in.Modifiers.Has(protocol.ModCtrl|protocol.ModAlt) {
		return false
	}
	m.emit(in.Kind, XKDelete, in.Modifiers)
	return true
}

// releaseModifier re-sends the release of Alt and Ctrl so the host never
// keeps a stuck modifier.
func (m *Mapper) releaseModifier(in Input) {
	if in.Kind != protocol.KeyUp || (in.Code != JSKeyAlt && in.Code != JSKeyCtrl) {
		return
	}
	if sym, ok := m.directCode(in.Code); ok {
		m.emit(protocol.KeyUp, sym, in.Modifiers)
	}
}

func (m *Mapper) directCode(code int) (int, bool) {
	rule, ok := m.keymap.KeyCode(code)
	if !ok {
		return 0, false
	}
	d, ok := rule.(Direct)
	return int(d), ok
}

// applyKeyCode applies a Down/Up rule. It returns false when the rule
// suppresses the key.
func (m *Mapper) applyKeyCode(rule Rule, in Input) bool {
	switch r := rule.(type) {
	case Direct:
		m.emit(in.Kind, int(r), in.Modifiers)
	case Suppress:
		return false
	case Conditional:
		m.emitMatching(r, in)
	}
	return true
}

// applyKeyPress applies a KeyPress rule; a direct substitution becomes a
// full Down+Up stroke.
func (m *Mapper) applyKeyPress(rule Rule, in Input) {
	switch r := rule.(type) {
	case Direct:
		m.emitStroke(int(r), in.Modifiers)
	case Conditional:
		m.emitMatching(r, in)
	}
}

func (m *Mapper) emitMatching(entries Conditional, in Input) {
	for _, e := range entries {
		if e.Matches(in) {
			m.emit(e.Kind, e.Code, e.Modifiers)
		}
	}
}

func (m *Mapper) emitStroke(code int, modifiers protocol.Modifiers) {
	m.emit(protocol.KeyDown, code, modifiers)
	m.emit(protocol.KeyUp, code, modifiers)
}

func (m *Mapper) emit(kind protocol.Kind, code int, modifiers protocol.Modifiers) {
	m.pending = append(m.pending, Event{Kind: kind, Code: code, Modifiers: modifiers})
}

func guestUnset(guestOS string) bool {
	return guestOS == GuestUnset || guestOS == guestUnsetNull
}
