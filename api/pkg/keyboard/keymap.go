package keyboard

import (
	"fmt"
	"sort"
	"strings"
)

// Profile selects a keyboard layout and its input-handling strategy.
type Profile int

const (
	ProfileUS Profile = iota
	ProfileUK
	ProfileJapanese
	ProfileFrench
)

// Profiles lists every supported profile.
var Profiles = []Profile{ProfileUS, ProfileUK, ProfileJapanese, ProfileFrench}

func (p Profile) String() string {
	switch p {
	case ProfileUS:
		return "us"
	case ProfileUK:
		return "uk"
	case ProfileJapanese:
		return "jp"
	case ProfileFrench:
		return "fr"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// Raw reports whether the profile treats Down/Up as the primary signal.
// All other profiles are cooked: KeyPress carries the characters.
func (p Profile) Raw() bool {
	return p == ProfileJapanese
}

// ParseProfile maps a locale string such as "en-GB" or "ja" to a profile.
func ParseProfile(locale string) (Profile, error) {
	l := strings.ToLower(strings.TrimSpace(locale))
	l = strings.ReplaceAll(l, "_", "-")

	switch l {
	case "", "us", "en", "en-us", "cooked":
		return ProfileUS, nil
	case "uk", "gb", "en-gb", "en-uk":
		return ProfileUK, nil
	case "jp", "ja", "ja-jp", "raw":
		return ProfileJapanese, nil
	case "fr", "fr-fr", "fr-be", "fr-ch":
		return ProfileFrench, nil
	}

	lang, _, _ := strings.Cut(l, "-")
	switch lang {
	case "en":
		return ProfileUS, nil
	case "ja":
		return ProfileJapanese, nil
	case "fr":
		return ProfileFrench, nil
	}

	return ProfileUS, fmt.Errorf("unknown keyboard locale %q", locale)
}

// ProfileFromLocale is ParseProfile falling back to the US profile.
func ProfileFromLocale(locale string) Profile {
	p, err := ParseProfile(locale)
	if err != nil {
		return ProfileUS
	}
	return p
}

// Keymap holds the two tables of a profile: one for Down/Up key codes and
// one for KeyPress character codes. A Keymap is immutable once built.
type Keymap struct {
	keyCodes Table
	keyPress Table
}

// NewKeymap builds a keymap from copies of the given tables.
func NewKeymap(keyCodes, keyPress Table) *Keymap {
	if keyCodes == nil {
		keyCodes = Table{}
	}
	if keyPress == nil {
		keyPress = Table{}
	}
	return &Keymap{
		keyCodes: keyCodes.clone(),
		keyPress: keyPress.clone(),
	}
}

// KeyCode returns the Down/Up rule for a local key code.
func (k *Keymap) KeyCode(code int) (Rule, bool) {
	r, ok := k.keyCodes[code]
	return r, ok
}

// KeyPress returns the KeyPress rule for a character code.
func (k *Keymap) KeyPress(code int) (Rule, bool) {
	r, ok := k.keyPress[code]
	return r, ok
}

// KeyCodes returns the mapped Down/Up codes in ascending order.
func (k *Keymap) KeyCodes() []int {
	return sortedCodes(k.keyCodes)
}

// KeyPressCodes returns the mapped KeyPress codes in ascending order.
func (k *Keymap) KeyPressCodes() []int {
	return sortedCodes(k.keyPress)
}

func sortedCodes(t Table) []int {
	codes := make([]int, 0, len(t))
	for c := range t {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

var builtinKeymaps = map[Profile]*Keymap{
	ProfileUS:       NewKeymap(usKeyCodes(), usKeyPress()),
	ProfileUK:       NewKeymap(ukKeyCodes(), ukKeyPress()),
	ProfileJapanese: NewKeymap(jpKeyCodes(), jpKeyPress()),
	ProfileFrench:   NewKeymap(frKeyCodes(), frKeyPress()),
}

// KeymapFor returns the built-in keymap of a profile, or the US keymap for
// an unknown profile value.
func KeymapFor(p Profile) *Keymap {
	if km, ok := builtinKeymaps[p]; ok {
		return km
	}
	return builtinKeymaps[ProfileUS]
}

// baseKeyCodes maps the non-printing keys every layout shares.
func baseKeyCodes() Table {
	t := Table{
		JSKeyBackspace:   Direct(XKBackSpace),
		JSKeyTab:         Direct(XKTab),
		JSKeyEnter:       Direct(XKReturn),
		JSKeyShift:       Direct(XKShiftL),
		JSKeyCtrl:        Direct(XKControlL),
		JSKeyAlt:         Direct(XKAltL),
		JSKeyPause:       Direct(XKPause),
		JSKeyEscape:      Direct(XKEscape),
		JSKeyPageUp:      Direct(XKPageUp),
		JSKeyPageDown:    Direct(XKPageDown),
		JSKeyEnd:         Direct(XKEnd),
		JSKeyHome:        Direct(XKHome),
		JSKeyLeft:        Direct(XKLeft),
		JSKeyUp:          Direct(XKUp),
		JSKeyRight:       Direct(XKRight),
		JSKeyDown:        Direct(XKDown),
		JSKeyInsert:      Direct(XKInsert),
		JSKeyDelete:      Direct(XKDelete),
		JSKeyLeftWindow:  Direct(XKSuperL),
		JSKeyRightWindow: Direct(XKSuperR),
		JSKeySelect:      Direct(XKMenu),
		JSKeyScrollLock:  Direct(XKScrollLock),
	}
	for i := 0; i <= JSKeyF12-JSKeyF1; i++ {
		t[JSKeyF1+i] = Direct(XKF1 + i)
	}
	return t
}

// cookedKeyCodes is the base table for cooked profiles. Lock keys are
// dropped because the browser already applies them to KeyPress characters.
func cookedKeyCodes() Table {
	t := baseKeyCodes()
	t[JSKeyCapsLock] = Suppress{}
	t[JSKeyNumLock] = Suppress{}
	return t
}
