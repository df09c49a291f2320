package keyboard

import (
	"github.com/helixml/consoleviewer/api/pkg/protocol"
	"github.com/helixml/consoleviewer/api/pkg/ptr"
)

// US English (cooked)

func usKeyCodes() Table {
	return cookedKeyCodes()
}

func usKeyPress() Table {
	return Table{}
}

// UK English (cooked)

func ukKeyCodes() Table {
	t := cookedKeyCodes()
	// Chrome reports 223 for the back-quote key; passed through it would
	// read as keysym 0xdf (ssharp) on the host.
	t[JSKeyUKBackQuote] = Suppress{}
	return t
}

func ukKeyPress() Table {
	return Table{
		// £ is Shift+3
		int(XKSterling): append(typed(XKSterling, protocol.ModShift, true), typed(XKSterling, 0, false)...),
		// ¬ is Shift+`
		int(XKNotSign): append(typed(XKNotSign, protocol.ModShift, true), typed(XKNotSign, 0, false)...),
		// ¦ and € are AltGr chords
		int(XKBrokenBar): altGrChar(XKBrokenBar),
		8364:             altGrChar(XKEuroSign),
	}
}

// Japanese (raw)

func jpKeyCodes() Table {
	t := baseKeyCodes()

	t[JSKeyCapsLock] = Direct(XKCapsLock)
	t[JSKeyNumLock] = Direct(XKNumLock)

	for i := 0; i <= 9; i++ {
		t[JSKeyNumpad0+i] = Direct(XKKP0 + i)
	}
	t[JSKeyMultiply] = Direct(XKKPMultiply)
	t[JSKeyAdd] = Direct(XKKPAdd)
	t[JSKeySubtract] = Direct(XKKPSubtract)
	t[JSKeyDecimal] = Direct(XKKPDecimal)
	t[JSKeyDivide] = Direct(XKKPDivide)

	t[JSKeyJPColon] = shifted(XKColon, XKAsterisk)
	t[JSKeyJPSemicolon] = shifted(XKSemicolon, XKPlus)
	t[JSKeyComma] = shifted(XKComma, XKLess)
	t[JSKeyDash] = shifted(XKMinus, XKEqual)
	t[JSKeyPeriod] = shifted(XKPeriod, XKGreater)
	t[JSKeySlash] = shifted(XKSlash, XKQuestion)
	t[JSKeyJPAt] = shifted(XKAt, XKGrave)
	t[JSKeyJPOpenBracket] = shifted(XKBracketLeft, XKBraceLeft)
	t[JSKeyJPYen] = shifted(XKBackslash, XKBar)
	t[JSKeyJPCloseBracket] = shifted(XKBracketRight, XKBraceRight)
	t[JSKeyJPCaret] = shifted(XKAsciiCircum, XKAsciiTilde)
	t[JSKeyJPRo] = shifted(XKBackslash, XKUnderscore)

	// Firefox reports the semicolon and dash keys with its own codes
	t[JSKeyFirefoxSemicolon] = onBrowser(BrowserFirefox, shifted(XKSemicolon, XKPlus))
	t[JSKeyFirefoxDash] = onBrowser(BrowserFirefox, shifted(XKMinus, XKEqual))

	t[JSKeyJPHenkan] = Direct(XKHenkan)
	t[JSKeyJPMuhenkan] = Direct(XKMuhenkan)
	t[JSKeyJPKana] = Direct(XKHiraganaKatakana)
	t[JSKeyJPZenkaku] = Direct(XKZenkakuHankaku)
	t[JSKeyJPHankaku] = Direct(XKZenkakuHankaku)
	t[JSKeyJPEisu] = Direct(XKEisuToggle)

	return t
}

func jpKeyPress() Table {
	return Table{
		// the yen sign is typed on the backslash keysym of a JP layout
		int(XKYen): Direct(XKBackslash),
		// overline (Shift+^ on JIS keyboards)
		0x203e: Direct(XKAsciiTilde),
	}
}

// French AZERTY (cooked)

func frKeyCodes() Table {
	t := cookedKeyCodes()
	// Dead and layout specific keys arrive as composed KeyPress characters;
	// forwarding their codes with Ctrl/Alt held would produce unrelated
	// Latin-1 keysyms.
	for _, code := range []int{
		JSKeyFRTwoSuperior,
		JSKeyFRExclam,
		JSKeyFRCircumflex,
		JSKeyFRFirefoxCircumflex,
		JSKeyFRFirefoxExclam,
	} {
		t[code] = Suppress{}
	}
	// Chrome and Firefox disagree on the code of the ")" key
	t[JSKeyFRFirefoxCloseParen] = Conditional{
		{Kind: protocol.KeyDown, Code: XKParenRight, Browser: ptr.To(BrowserFirefox), Shift: ptr.To(false)},
		{Kind: protocol.KeyDown, Code: XKDegree, Modifiers: protocol.ModShift, Browser: ptr.To(BrowserFirefox), Shift: ptr.To(true)},
		{Kind: protocol.KeyUp, Code: XKParenRight, Browser: ptr.To(BrowserFirefox), Shift: ptr.To(false)},
		{Kind: protocol.KeyUp, Code: XKDegree, Modifiers: protocol.ModShift, Browser: ptr.To(BrowserFirefox), Shift: ptr.To(true)},
	}
	return t
}

func frKeyPress() Table {
	t := Table{
		int(XKTwoSuperior): Direct(XKTwoSuperior),
		int(XKDegree):      Direct(XKDegree),
		int(XKSterling):    Direct(XKSterling),
		int(XKMu):          Direct(XKMu),
		int(XKSection):     Direct(XKSection),
		int(XKUgrave):      Direct(XKUgrave),
		8364:               altGrChar(XKEuroSign),
	}
	// characters reached through AltGr on AZERTY
	for _, sym := range []int{
		XKAsciiTilde, XKNumberSign, XKBraceLeft, XKBracketLeft, XKBar,
		XKGrave, XKBackslash, XKAsciiCircum, XKAt, XKBracketRight, XKBraceRight,
	} {
		t[sym] = altGrChar(sym)
	}
	return t
}
