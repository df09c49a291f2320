package keymap

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/helixml/consoleviewer/api/pkg/keyboard"
	"github.com/helixml/consoleviewer/api/pkg/protocol"
)

var (
	translateProfile        string
	translateGuestOS        string
	translateBrowser        string
	translateBrowserVersion string
)

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&translateProfile, "profile", "p", "us", "Keyboard profile or locale")
	translateCmd.Flags().StringVar(&translateGuestOS, "guest", "", "Guest operating system (e.g. windows)")
	translateCmd.Flags().StringVar(&translateBrowser, "browser", keyboard.BrowserChrome, "Browser the key codes come from")
	translateCmd.Flags().StringVar(&translateBrowserVersion, "browser-version", "", "Browser version")
}

var translateCmd = &cobra.Command{
	Use:   "translate EVENT [EVENT...]",
	Short: "Translate local key events into remote key events",
	Long: `Feed a sequence of local key events through a keyboard profile and print the
remote events it produces.

An event is KIND:CODE[+MODIFIER...] where KIND is down, up or press, CODE is a
decimal or 0x-prefixed key code (or a single character for press) and
MODIFIER is one of shift, ctrl, alt or meta.

Examples:
  # Shift+2 on a Japanese keyboard
  console-viewer keymap translate -p ja down:16+shift down:50+shift press:'"'+shift up:50+shift up:16

  # Ctrl+Alt+Insert
  console-viewer keymap translate down:45+ctrl+alt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := keyboard.ParseProfile(translateProfile)
		if err != nil {
			return err
		}

		inputs := make([]keyboard.Input, 0, len(args))
		for _, arg := range args {
			in, err := ParseInput(arg)
			if err != nil {
				return err
			}
			in.GuestOS = strings.ToLower(translateGuestOS)
			in.Browser = strings.ToLower(translateBrowser)
			in.BrowserVersion = translateBrowserVersion
			inputs = append(inputs, in)
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Input", "Kind", "Keysym", "Modifiers")

		for i, row := range Translate(profile, inputs) {
			if len(row) == 0 {
				if err := table.Append([]string{args[i], "-", "-", "-"}); err != nil {
					return err
				}
				continue
			}
			for _, e := range row {
				err := table.Append([]string{
					args[i],
					e.Kind.String(),
					fmt.Sprintf("0x%04x", e.Code),
					FormatModifiers(e.Modifiers),
				})
				if err != nil {
					return err
				}
			}
		}

		return table.Render()
	},
}

// Translate feeds inputs through a mapper and returns the events each one
// produced.
func Translate(profile keyboard.Profile, inputs []keyboard.Input) [][]keyboard.Event {
	m := keyboard.NewMapper(profile)
	out := make([][]keyboard.Event, 0, len(inputs))
	for _, in := range inputs {
		m.Feed(in)
		out = append(out, m.Drain())
	}
	return out
}

var modifierNames = []struct {
	name string
	mod  protocol.Modifiers
}{
	{"shift", protocol.ModShift},
	{"ctrl", protocol.ModCtrl},
	{"meta", protocol.ModMeta},
	{"alt", protocol.ModAlt},
}

// ParseInput parses KIND:CODE[+MODIFIER...].
func ParseInput(s string) (keyboard.Input, error) {
	kindStr, rest, ok := strings.Cut(s, ":")
	if !ok {
		return keyboard.Input{}, fmt.Errorf("invalid event %q, expected KIND:CODE", s)
	}

	var in keyboard.Input
	switch strings.ToLower(kindStr) {
	case "down":
		in.Kind = protocol.KeyDown
	case "up":
		in.Kind = protocol.KeyUp
	case "press":
		in.Kind = protocol.KeyPress
	default:
		return keyboard.Input{}, fmt.Errorf("invalid event kind %q in %q", kindStr, s)
	}

	codeStr, mods := rest, ""
	// a literal "+" can be typed as press:+
	if idx := strings.Index(rest[min(1, len(rest)):], "+"); idx >= 0 {
		codeStr, mods = rest[:idx+1], rest[idx+2:]
	}

	code, err := parseCode(codeStr, in.Kind == protocol.KeyPress)
	if err != nil {
		return keyboard.Input{}, fmt.Errorf("invalid code in %q: %w", s, err)
	}
	in.Code = code

	if mods != "" {
	next:
		for _, m := range strings.Split(mods, "+") {
			for _, n := range modifierNames {
				if strings.EqualFold(m, n.name) {
					in.Modifiers |= n.mod
					continue next
				}
			}
			return keyboard.Input{}, fmt.Errorf("unknown modifier %q in %q", m, s)
		}
	}
	return in, nil
}

func parseCode(s string, allowChar bool) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty code")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseInt(s[2:], 16, 32)
		return int(n), err
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if allowChar && utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return int(r), nil
	}
	return 0, fmt.Errorf("%q is not a key code", s)
}

// FormatModifiers renders a modifier mask as "shift+ctrl", or "-" if empty.
func FormatModifiers(m protocol.Modifiers) string {
	var names []string
	for _, n := range modifierNames {
		if m.Has(n.mod) {
			names = append(names, n.name)
		}
	}
	if rest := m &^ (protocol.ModShift | protocol.ModCtrl | protocol.ModMeta | protocol.ModAlt); rest != 0 {
		names = append(names, strconv.Itoa(int(rest)))
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "+")
}
