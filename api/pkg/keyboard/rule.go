package keyboard

import (
	"github.com/helixml/consoleviewer/api/pkg/protocol"
	"github.com/helixml/consoleviewer/api/pkg/ptr"
)

// Rule is a keymap entry for one local key code. It is one of Direct,
// Suppress or Conditional.
type Rule interface {
	isRule()
}

// Direct substitutes the local code with a single keysym.
type Direct int

// Suppress drops the Down/Up pair of the key entirely.
type Suppress struct{}

// Conditional is an ordered list of entries. Every entry whose conditions
// match the input fires, in table order.
type Conditional []Entry

func (Direct) isRule()      {}
func (Suppress) isRule()    {}
func (Conditional) isRule() {}

// Entry is one candidate output of a Conditional rule. Nil condition fields
// are not checked.
type Entry struct {
	Kind      protocol.Kind
	Code      int
	Modifiers protocol.Modifiers

	Shift          *bool
	AltGr          *bool
	GuestOS        *string
	Browser        *string
	BrowserVersion *string
}

// Matches reports whether every present condition of e agrees with the
// input. For Down/Up input the entry kind must equal the input kind; for
// KeyPress input the entry kind is what gets emitted and is not compared.
func (e Entry) Matches(in Input) bool {
	if (in.Kind == protocol.KeyDown || in.Kind == protocol.KeyUp) && e.Kind != in.Kind {
		return false
	}
	if !ptr.UnsetOrEqual(e.Shift, in.Modifiers.Shift()) {
		return false
	}
	if !ptr.UnsetOrEqual(e.AltGr, in.Modifiers.AltGr()) {
		return false
	}
	if !ptr.UnsetOrEqual(e.GuestOS, in.GuestOS) {
		return false
	}
	if !ptr.UnsetOrEqual(e.Browser, in.Browser) {
		return false
	}
	return ptr.UnsetOrEqual(e.BrowserVersion, in.BrowserVersion)
}

// Table maps local key codes to rules.
type Table map[int]Rule

func (t Table) clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// helpers used to build the built-in tables

// shifted produces unshifted when Shift is up and shiftedSym (with Shift
// held) otherwise, for both edges of the key.
func shifted(unshifted, shiftedSym int) Rule {
	return Conditional{
		{Kind: protocol.KeyDown, Code: unshifted, Shift: ptr.To(false)},
		{Kind: protocol.KeyDown, Code: shiftedSym, Modifiers: protocol.ModShift, Shift: ptr.To(true)},
		{Kind: protocol.KeyUp, Code: unshifted, Shift: ptr.To(false)},
		{Kind: protocol.KeyUp, Code: shiftedSym, Modifiers: protocol.ModShift, Shift: ptr.To(true)},
	}
}

// onBrowser restricts every entry of rule to one browser.
func onBrowser(browser string, rule Rule) Rule {
	c, ok := rule.(Conditional)
	if !ok {
		return rule
	}
	out := make(Conditional, len(c))
	for i, e := range c {
		e.Browser = ptr.To(browser)
		out[i] = e
	}
	return out
}

// typed synthesizes a Down/Up pair of sym carrying modifiers, guarded by
// the Shift condition.
func typed(sym int, modifiers protocol.Modifiers, shift bool) Conditional {
	return Conditional{
		{Kind: protocol.KeyDown, Code: sym, Modifiers: modifiers, Shift: ptr.To(shift)},
		{Kind: protocol.KeyUp, Code: sym, Modifiers: modifiers, Shift: ptr.To(shift)},
	}
}

// altGrChar types sym with the AltGr chord when AltGr is held and plain
// otherwise.
func altGrChar(sym int) Rule {
	altgr := protocol.ModCtrl | protocol.ModAlt
	return Conditional{
		{Kind: protocol.KeyDown, Code: sym, Modifiers: altgr, AltGr: ptr.To(true)},
		{Kind: protocol.KeyUp, Code: sym, Modifiers: altgr, AltGr: ptr.To(true)},
		{Kind: protocol.KeyDown, Code: sym, AltGr: ptr.To(false)},
		{Kind: protocol.KeyUp, Code: sym, AltGr: ptr.To(false)},
	}
}
