package terminal

import (
	"strconv"
	"unicode/utf8"
)

const (
	maxParams     = 32
	maxParamValue = 9999
	maxOSC        = 4096
)

type parseState uint8

const (
	stateGround parseState = iota
	stateEscape
	stateEscapeInter
	stateCSIEntry
	stateCSIParam
	stateCSIIgnore
	stateOSC
	stateString // DCS, SOS, PM and APC payloads are skipped
)

// parser is a VT500-style escape sequence state machine feeding a screen.
// State persists across feed calls so sequences split between reads are
// handled.
type parser struct {
	scr   *screen
	state parseState

	params  []int
	private byte
	inter   []byte
	osc     []byte

	pending  [utf8.UTFMax]byte
	npending int

	title string
}

func newParser(scr *screen) *parser {
	return &parser{
		scr:    scr,
		params: make([]int, 0, maxParams),
		inter:  make([]byte, 0, 2),
		osc:    make([]byte, 0, 64),
	}
}

func (p *parser) feed(data []byte) {
	for _, b := range data {
		switch p.state {
		case stateGround:
			p.ground(b)
		case stateEscape:
			p.escape(b)
		case stateEscapeInter:
			p.escapeInter(b)
		case stateCSIEntry, stateCSIParam, stateCSIIgnore:
			p.csi(b)
		case stateOSC:
			p.oscByte(b)
		case stateString:
			if b == 0x1b {
				p.state = stateEscape
			} else if b == 0x07 {
				p.state = stateGround
			}
		}
	}
}

func (p *parser) ground(b byte) {
	if p.npending > 0 {
		if b&0xC0 == 0x80 {
			p.pending[p.npending] = b
			p.npending++
			if utf8.FullRune(p.pending[:p.npending]) {
				r, _ := utf8.DecodeRune(p.pending[:p.npending])
				p.npending = 0
				p.scr.put(r)
			}
			return
		}
		// Truncated sequence; the current byte starts something new.
		p.npending = 0
		p.scr.put(utf8.RuneError)
	}

	switch {
	case b == 0x1b:
		p.state = stateEscape
	case b < 0x20:
		p.control(b)
	case b == 0x7f:
	case b < 0x80:
		p.scr.put(rune(b))
	case b >= 0xC2 && b <= 0xF4:
		p.pending[0] = b
		p.npending = 1
	default:
		p.scr.put(utf8.RuneError)
	}
}

func (p *parser) control(b byte) {
	switch b {
	case '\b':
		p.scr.backspace()
	case '\t':
		p.scr.tab()
	case '\n', '\v', '\f':
		p.scr.lineFeed()
	case '\r':
		p.scr.carriageReturn()
	}
}

func (p *parser) escape(b byte) {
	p.state = stateGround
	switch {
	case b == '[':
		p.params = p.params[:0]
		p.inter = p.inter[:0]
		p.private = 0
		p.state = stateCSIEntry
	case b == ']':
		p.osc = p.osc[:0]
		p.state = stateOSC
	case b == 'P', b == 'X', b == '^', b == '_':
		p.state = stateString
	case b == '7':
		p.scr.saveCursor()
	case b == '8':
		p.scr.restoreCursor()
	case b == 'D':
		p.scr.lineFeed()
	case b == 'E':
		p.scr.carriageReturn()
		p.scr.lineFeed()
	case b == 'M':
		p.scr.reverseIndex()
	case b == 'c':
		p.scr.reset()
	case b == 0x1b:
		p.state = stateEscape
	case b >= 0x20 && b <= 0x2f:
		p.state = stateEscapeInter
	}
}

// escapeInter swallows charset designations such as ESC ( B.
func (p *parser) escapeInter(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2f:
	case b == 0x1b:
		p.state = stateEscape
	default:
		p.state = stateGround
	}
}

func (p *parser) csi(b byte) {
	switch {
	case b >= '0' && b <= '9':
		if p.state == stateCSIIgnore {
			return
		}
		if len(p.params) == 0 {
			p.params = append(p.params, 0)
		}
		i := len(p.params) - 1
		p.params[i] = min(p.params[i]*10+int(b-'0'), maxParamValue)
		p.state = stateCSIParam
	case b == ';', b == ':':
		if p.state == stateCSIIgnore {
			return
		}
		if len(p.params) == 0 {
			p.params = append(p.params, 0)
		}
		if len(p.params) < maxParams {
			p.params = append(p.params, 0)
		}
		p.state = stateCSIParam
	case b >= '<' && b <= '?':
		if p.state == stateCSIEntry {
			p.private = b
		} else {
			p.state = stateCSIIgnore
		}
	case b >= 0x20 && b <= 0x2f:
		if len(p.inter) < cap(p.inter) {
			p.inter = append(p.inter, b)
		}
	case b >= 0x40 && b <= 0x7e:
		if p.state != stateCSIIgnore {
			p.dispatch(b)
		}
		p.state = stateGround
	case b == 0x1b:
		p.state = stateEscape
	case b < 0x20:
		p.control(b)
	}
}

func (p *parser) param(i, def int) int {
	if i < len(p.params) && p.params[i] > 0 {
		return p.params[i]
	}
	return def
}

func (p *parser) dispatch(final byte) {
	s := p.scr
	if p.private != 0 {
		if p.private == '?' && (final == 'h' || final == 'l') {
			p.setModes(final == 'h')
		}
		return
	}
	if len(p.inter) > 0 {
		return
	}

	n := p.param(0, 1)
	switch final {
	case 'A':
		s.moveBy(-n, 0)
	case 'B', 'e':
		s.moveBy(n, 0)
	case 'C', 'a':
		s.moveBy(0, n)
	case 'D':
		s.moveBy(0, -n)
	case 'E':
		s.moveBy(n, 0)
		s.carriageReturn()
	case 'F':
		s.moveBy(-n, 0)
		s.carriageReturn()
	case 'G', '`':
		s.setCol(n - 1)
	case 'H', 'f':
		s.moveTo(p.param(0, 1)-1, p.param(1, 1)-1)
	case 'd':
		s.moveTo(n-1, s.cur.col)
	case 'J':
		s.eraseDisplay(p.param(0, 0))
	case 'K':
		s.eraseLine(p.param(0, 0))
	case 'L':
		s.insertLines(n)
	case 'M':
		s.deleteLines(n)
	case 'P':
		s.deleteChars(n)
	case '@':
		s.insertChars(n)
	case 'X':
		s.eraseChars(n)
	case 'S':
		s.scrollUp(s.top, n)
	case 'T':
		s.scrollDown(s.top, n)
	case 'm':
		p.sgr()
	case 'r':
		s.setRegion(p.param(0, 1)-1, p.param(1, s.rows)-1)
	case 's':
		s.saveCursor()
	case 'u':
		s.restoreCursor()
	}
}

func (p *parser) setModes(on bool) {
	s := p.scr
	for _, mode := range p.params {
		switch mode {
		case 6:
			s.originMode = on
			s.moveTo(0, 0)
		case 7:
			s.autoWrap = on
			if !on {
				s.cur.pendingWrap = false
			}
		case 25:
			s.cursorHidden = !on
		case 47, 1047:
			if on {
				s.enterAlternate()
			} else {
				s.leaveAlternate()
			}
		case 1049:
			if on {
				s.saveCursor()
				s.enterAlternate()
			} else {
				s.leaveAlternate()
				s.restoreCursor()
			}
		}
	}
}

func (p *parser) sgr() {
	st := &p.scr.cur.style
	if len(p.params) == 0 {
		*st = DefaultStyle
		return
	}
	for i := 0; i < len(p.params); i++ {
		switch n := p.params[i]; {
		case n == 0:
			*st = DefaultStyle
		case n == 1:
			st.Attrs |= AttrBold
		case n == 3:
			st.Attrs |= AttrItalic
		case n == 4, n == 21:
			st.Attrs |= AttrUnderline
		case n == 22:
			st.Attrs &^= AttrBold
		case n == 23:
			st.Attrs &^= AttrItalic
		case n == 24:
			st.Attrs &^= AttrUnderline
		case n >= 30 && n <= 37:
			st.Fg = Color(n - 30)
		case n == 38:
			c, used := p.extendedColor(i)
			st.Fg = c
			i += used
		case n == 39:
			st.Fg = ColorDefault
		case n >= 40 && n <= 47:
			st.Bg = Color(n - 40)
		case n == 48:
			c, used := p.extendedColor(i)
			st.Bg = c
			i += used
		case n == 49:
			st.Bg = ColorDefault
		case n >= 90 && n <= 97:
			st.Fg = Color(n-90) + BrightBlack
		case n >= 100 && n <= 107:
			st.Bg = Color(n-100) + BrightBlack
		}
	}
}

// extendedColor decodes the 38/48 forms starting at params[i] and returns
// the color and how many extra params it consumed.
func (p *parser) extendedColor(i int) (Color, int) {
	rest := p.params[i+1:]
	if len(rest) == 0 {
		return ColorDefault, 0
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return ColorDefault, len(rest)
		}
		return indexedColor(rest[1]), 2
	case 2:
		if len(rest) < 4 {
			return ColorDefault, len(rest)
		}
		return nearestColor(byteParam(rest[1]), byteParam(rest[2]), byteParam(rest[3])), 4
	}
	return ColorDefault, 1
}

func byteParam(v int) uint8 {
	return uint8(clamp(v, 0, 255))
}

func (p *parser) oscByte(b byte) {
	switch b {
	case 0x07:
		p.endOSC()
		p.state = stateGround
	case 0x1b:
		p.endOSC()
		p.state = stateEscape
	default:
		if len(p.osc) < maxOSC {
			p.osc = append(p.osc, b)
		}
	}
}

func (p *parser) endOSC() {
	data := string(p.osc)
	cmd, value := data, ""
	for i := 0; i < len(data); i++ {
		if data[i] == ';' {
			cmd, value = data[:i], data[i+1:]
			break
		}
	}
	switch n, err := strconv.Atoi(cmd); {
	case err != nil:
	case n == 0, n == 2:
		p.title = value
	}
}
