package keyboard

import (
	"fmt"
	"strings"
)

// Describe renders a rule for display, e.g. "0xff0d", "suppressed" or one
// line per conditional entry.
func Describe(r Rule) string {
	switch rule := r.(type) {
	case Direct:
		return fmt.Sprintf("0x%04x", int(rule))
	case Suppress:
		return "suppressed"
	case Conditional:
		lines := make([]string, 0, len(rule))
		for _, e := range rule {
			lines = append(lines, e.String())
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("%T", r)
	}
}

func (e Entry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s 0x%04x", e.Kind, e.Code)
	if e.Modifiers != 0 {
		fmt.Fprintf(&sb, " mods=%d", int(e.Modifiers))
	}

	var when []string
	if e.Shift != nil {
		when = append(when, fmt.Sprintf("shift=%t", *e.Shift))
	}
	if e.AltGr != nil {
		when = append(when, fmt.Sprintf("altgr=%t", *e.AltGr))
	}
	if e.GuestOS != nil {
		when = append(when, "guest="+*e.GuestOS)
	}
	if e.Browser != nil {
		when = append(when, "browser="+*e.Browser)
	}
	if e.BrowserVersion != nil {
		when = append(when, "version="+*e.BrowserVersion)
	}
	if len(when) > 0 {
		sb.WriteString(" if ")
		sb.WriteString(strings.Join(when, ","))
	}
	return sb.String()
}
