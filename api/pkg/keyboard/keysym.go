package keyboard

// Browser key codes (KeyboardEvent.keyCode) reported for keydown/keyup.
const (
	JSKeyBackspace    = 8
	JSKeyTab          = 9
	JSKeyEnter        = 13
	JSKeyShift        = 16
	JSKeyCtrl         = 17
	JSKeyAlt          = 18
	JSKeyPause        = 19
	JSKeyCapsLock     = 20
	JSKeyEscape       = 27
	JSKeySpace        = 32
	JSKeyPageUp       = 33
	JSKeyPageDown     = 34
	JSKeyEnd          = 35
	JSKeyHome         = 36
	JSKeyLeft         = 37
	JSKeyUp           = 38
	JSKeyRight        = 39
	JSKeyDown         = 40
	JSKeyInsert       = 45
	JSKeyDelete       = 46
	JSKeyLeftWindow   = 91
	JSKeyRightWindow  = 92
	JSKeySelect       = 93
	JSKeyNumpad0      = 96
	JSKeyMultiply     = 106
	JSKeyAdd          = 107
	JSKeySubtract     = 109
	JSKeyDecimal      = 110
	JSKeyDivide       = 111
	JSKeyF1           = 112
	JSKeyF12          = 123
	JSKeyNumLock      = 144
	JSKeyScrollLock   = 145
	JSKeySemicolon    = 186
	JSKeyEqual        = 187
	JSKeyComma        = 188
	JSKeyDash         = 189
	JSKeyPeriod       = 190
	JSKeySlash        = 191
	JSKeyGrave        = 192
	JSKeyOpenBracket  = 219
	JSKeyBackSlash    = 220
	JSKeyCloseBracket = 221
	JSKeyQuote        = 222

	// Firefox reports different codes for a few punctuation keys
	JSKeyFirefoxSemicolon = 59
	JSKeyFirefoxEqual     = 61
	JSKeyFirefoxDash      = 173
)

// Japanese keyboard specific key codes.
const (
	JSKeyJPColon        = 186
	JSKeyJPSemicolon    = 187
	JSKeyJPAt           = 192
	JSKeyJPOpenBracket  = 219
	JSKeyJPYen          = 220
	JSKeyJPCloseBracket = 221
	JSKeyJPCaret        = 222
	JSKeyJPRo           = 226
	JSKeyJPHenkan       = 28
	JSKeyJPMuhenkan     = 29
	JSKeyJPEisu         = 240
	JSKeyJPKana         = 242
	JSKeyJPZenkaku      = 243
	JSKeyJPHankaku      = 244
)

// French (AZERTY) key codes as reported by Chrome and Firefox.
const (
	JSKeyFRTwoSuperior       = 222
	JSKeyFRCloseParen        = 219
	JSKeyFRCircumflex        = 221
	JSKeyFRDollar            = 186
	JSKeyFRUgrave            = 192
	JSKeyFRAsterisk          = 220
	JSKeyFRExclam            = 223
	JSKeyFRLess              = 226
	JSKeyFRFirefoxCloseParen = 169
	JSKeyFRFirefoxCircumflex = 160
	JSKeyFRFirefoxDollar     = 164
	JSKeyFRFirefoxUgrave     = 165
	JSKeyFRFirefoxAsterisk   = 170
	JSKeyFRFirefoxExclam     = 161
)

// UK keyboard specific key codes.
const (
	JSKeyUKBackQuote = 223
	JSKeyUKHash      = 222
	JSKeyUKQuote     = 192
	JSKeyUKBackSlash = 220
)

// Keypress character codes handled specially.
const (
	JSNumpadMultiply = 42
	JSNumpadPlus     = 43
)

// X11 keysyms understood by the remote display.
const (
	XKBackSpace  = 0xff08
	XKTab        = 0xff09
	XKReturn     = 0xff0d
	XKPause      = 0xff13
	XKScrollLock = 0xff14
	XKEscape     = 0xff1b
	XKHome       = 0xff50
	XKLeft       = 0xff51
	XKUp         = 0xff52
	XKRight      = 0xff53
	XKDown       = 0xff54
	XKPageUp     = 0xff55
	XKPageDown   = 0xff56
	XKEnd        = 0xff57
	XKInsert     = 0xff63
	XKMenu       = 0xff67
	XKNumLock    = 0xff7f
	XKKPMultiply = 0xffaa
	XKKPAdd      = 0xffab
	XKKPSubtract = 0xffad
	XKKPDecimal  = 0xffae
	XKKPDivide   = 0xffaf
	XKKP0        = 0xffb0
	XKF1         = 0xffbe
	XKShiftL     = 0xffe1
	XKControlL   = 0xffe3
	XKCapsLock   = 0xffe5
	XKAltL       = 0xffe9
	XKSuperL     = 0xffeb
	XKSuperR     = 0xffec
	XKDelete     = 0xffff

	XKMuhenkan         = 0xff22
	XKHenkan           = 0xff23
	XKHiraganaKatakana = 0xff27
	XKZenkakuHankaku   = 0xff2a
	XKEisuToggle       = 0xff30

	XKDeadCircumflex = 0xfe52
	XKDeadDiaeresis  = 0xfe57
)

// Latin-1 keysyms (identical to their character code).
const (
	XKExclam       = 0x21
	XKQuoteDbl     = 0x22
	XKNumberSign   = 0x23
	XKDollar       = 0x24
	XKAmpersand    = 0x26
	XKApostrophe   = 0x27
	XKParenLeft    = 0x28
	XKParenRight   = 0x29
	XKAsterisk     = 0x2a
	XKPlus         = 0x2b
	XKComma        = 0x2c
	XKMinus        = 0x2d
	XKPeriod       = 0x2e
	XKSlash        = 0x2f
	XKColon        = 0x3a
	XKSemicolon    = 0x3b
	XKLess         = 0x3c
	XKEqual        = 0x3d
	XKGreater      = 0x3e
	XKQuestion     = 0x3f
	XKAt           = 0x40
	XKBracketLeft  = 0x5b
	XKBackslash    = 0x5c
	XKBracketRight = 0x5d
	XKAsciiCircum  = 0x5e
	XKUnderscore   = 0x5f
	XKGrave        = 0x60
	XKBraceLeft    = 0x7b
	XKBar          = 0x7c
	XKBraceRight   = 0x7d
	XKAsciiTilde   = 0x7e
	XKBrokenBar    = 0xa6
	XKSterling     = 0xa3
	XKYen          = 0xa5
	XKSection      = 0xa7
	XKNotSign      = 0xac
	XKDegree       = 0xb0
	XKTwoSuperior  = 0xb2
	XKMu           = 0xb5
	XKUgrave       = 0xf9
	XKEuroSign     = 0x20ac
)
