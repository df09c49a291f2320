package viewer

import (
	"fmt"

	"github.com/helixml/consoleviewer/api/pkg/keyboard"
	"github.com/helixml/consoleviewer/api/pkg/protocol"
)

const diagnosticsChord = protocol.ModCtrl | protocol.ModAlt | protocol.ModShift

func (v *Viewer) handleKey(kind protocol.Kind, code int, modifiers protocol.Modifiers) {
	if !v.started {
		return
	}
	if v.opts.EnableDiagnostics && code == keyboard.JSKeySpace && modifiers.Has(diagnosticsChord) {
		if kind == protocol.KeyDown {
			v.toggleDiagnostics()
		}
		return
	}

	v.mapper.Feed(keyboard.Input{
		Kind:           kind,
		Code:           code,
		Modifiers:      modifiers,
		GuestOS:        v.opts.GuestOS,
		Browser:        v.opts.Browser,
		BrowserVersion: v.opts.BrowserVersion,
	})
	for _, e := range v.mapper.Drain() {
		v.queue.EnqueueKeyboard(e.Kind, e.Code, e.Modifiers)
	}

	// keydown waits for the matching keypress or keyup
	if kind != protocol.KeyDown {
		v.flush()
	}
}

func (v *Viewer) handleMouse(kind protocol.Kind, x, y, button int, modifiers protocol.Modifiers) {
	if !v.started {
		return
	}
	if kind == protocol.MouseMove {
		v.moveCount++
		if v.moveCount <= 5 || v.moveCount%100 == 0 {
			v.logger.Trace().Int("x", x).Int("y", y).Int("count", v.moveCount).Msg("mouse move")
		}
	} else {
		v.logger.Trace().Str("kind", kind.String()).Int("x", x).Int("y", y).Int("button", button).Msg("mouse event")
	}

	v.queue.EnqueueMouse(kind, x, y, button, modifiers)
	if kind == protocol.MouseUp {
		v.detectDoubleClick(x, y, button, modifiers)
	}
	v.flush()
}

// detectDoubleClick synthesizes a double click from the previous mouse-up
// when it happened within the threshold, then records this one.
func (v *Viewer) detectDoubleClick(x, y, button int, modifiers protocol.Modifiers) {
	now := v.opts.Clock()
	prev := v.lastClick
	if prev.valid && now.Sub(prev.at) < v.opts.DoubleClickThreshold {
		v.queue.EnqueueMouse(protocol.MouseDoubleClick, prev.x, prev.y, prev.button, prev.modifiers)
		v.stats.DoubleClicks++
	}
	v.lastClick = lastClick{
		valid:     true,
		x:         x,
		y:         y,
		button:    button,
		modifiers: modifiers,
		at:        now,
	}
}

func (v *Viewer) toggleDiagnostics() {
	v.diagnostics = !v.diagnostics
	v.logger.Info().Bool("enabled", v.diagnostics).Msg("diagnostics overlay toggled")
	v.publishDiagnostics()
}

func (v *Viewer) sendCtrlAltDel() {
	v.sendChord(keyboard.XKDelete)
}

func (v *Viewer) sendCtrlEsc() {
	v.sendKeys(
		keyboard.Event{Kind: protocol.KeyDown, Code: keyboard.XKControlL, Modifiers: protocol.ModCtrl},
		keyboard.Event{Kind: protocol.KeyDown, Code: keyboard.XKEscape, Modifiers: protocol.ModCtrl},
		keyboard.Event{Kind: protocol.KeyUp, Code: keyboard.XKEscape, Modifiers: protocol.ModCtrl},
		keyboard.Event{Kind: protocol.KeyUp, Code: keyboard.XKControlL, Modifiers: 0},
	)
}

// sendChord presses Ctrl, Alt and key, then releases them in reverse order.
func (v *Viewer) sendChord(key int) {
	both := protocol.ModCtrl | protocol.ModAlt
	v.sendKeys(
		keyboard.Event{Kind: protocol.KeyDown, Code: keyboard.XKControlL, Modifiers: protocol.ModCtrl},
		keyboard.Event{Kind: protocol.KeyDown, Code: keyboard.XKAltL, Modifiers: both},
		keyboard.Event{Kind: protocol.KeyDown, Code: key, Modifiers: both},
		keyboard.Event{Kind: protocol.KeyUp, Code: key, Modifiers: both},
		keyboard.Event{Kind: protocol.KeyUp, Code: keyboard.XKAltL, Modifiers: protocol.ModCtrl},
		keyboard.Event{Kind: protocol.KeyUp, Code: keyboard.XKControlL, Modifiers: 0},
	)
}

// sendKeys queues already translated key events, bypassing the mapper.
func (v *Viewer) sendKeys(events ...keyboard.Event) {
	if !v.started {
		return
	}
	for _, e := range events {
		v.queue.EnqueueKeyboard(e.Kind, e.Code, e.Modifiers)
	}
	v.flush()
}

// flush hands the pending queue to the transport unless a batch is already
// in flight. The completion clears the in-flight flag and continues with
// the update cycle.
func (v *Viewer) flush() {
	if !v.started || v.send.inFlight || v.queue.Len() == 0 {
		return
	}

	events := v.queue.Take()
	batch := protocol.EncodeBatch(events)
	v.send.inFlight = true
	v.notify(StatusSending)

	gen := v.generation
	ctx := v.sessionCtx
	v.async(func() func() {
		err := v.transport.SendEvents(ctx, batch)
		return func() { v.onSent(gen, len(events), len(batch), err) }
	})
}

func (v *Viewer) onSent(gen uint64, events, size int, err error) {
	if !v.current(gen) {
		return
	}
	v.send.inFlight = false

	if err != nil {
		v.stats.SendErrors++
		v.fail(fmt.Errorf("failed to send %d events: %w", events, err))
	} else {
		v.stats.BatchesSent++
		v.stats.EventsSent += events
		v.stats.BytesSent += uint64(size)
		v.logger.Trace().Int("events", events).Int("bytes", size).Msg("event batch sent")
		v.notify(StatusSent)
	}

	v.checkUpdate()
}
