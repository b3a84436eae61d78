package terminal

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

type cursor struct {
	row, col int
	style    Style
	// pendingWrap is set after writing the last column; the next printable
	// rune wraps first.
	pendingWrap bool
}

// screen is the cell grid of one pseudo-terminal. It is not safe for
// concurrent use; Buffer serializes access.
type screen struct {
	rows, cols int
	lines      [][]Cell

	cur   cursor
	saved cursor

	// Scroll region, inclusive.
	top, bottom int

	autoWrap     bool
	originMode   bool
	cursorHidden bool

	// primary holds the main screen while the alternate screen is active.
	primary      [][]Cell
	primarySaved cursor
}

func newScreen(rows, cols int) *screen {
	s := &screen{rows: rows, cols: cols}
	s.reset()
	return s
}

func (s *screen) reset() {
	s.lines = make([][]Cell, s.rows)
	for i := range s.lines {
		s.lines[i] = blankLine(s.cols)
	}
	s.cur = cursor{style: DefaultStyle}
	s.saved = s.cur
	s.top, s.bottom = 0, s.rows-1
	s.autoWrap = true
	s.originMode = false
	s.cursorHidden = false
	s.primary = nil
}

// put writes r at the cursor and advances it.
func (s *screen) put(r rune) {
	w := runewidth.RuneWidth(r)
	if w == 0 || w > s.cols {
		return
	}
	if s.cur.pendingWrap {
		s.cur.col = 0
		s.lineFeed()
	}
	if s.cur.col+w > s.cols {
		if s.autoWrap {
			s.cur.col = 0
			s.lineFeed()
		} else {
			s.cur.col = s.cols - w
		}
	}

	line := s.lines[s.cur.row]
	s.splitWide(line, s.cur.col)
	if w == 2 {
		s.splitWide(line, s.cur.col+1)
		line[s.cur.col+1] = Cell{Width: 0, Style: s.cur.style}
	}
	line[s.cur.col] = Cell{Rune: r, Width: uint8(w), Style: s.cur.style}

	s.cur.col += w
	if s.cur.col >= s.cols {
		s.cur.col = s.cols - 1
		s.cur.pendingWrap = s.autoWrap
	}
}

// splitWide blanks the other half of a wide rune about to be overwritten at col.
func (s *screen) splitWide(line []Cell, col int) {
	switch {
	case line[col].Width == 2 && col+1 < len(line):
		line[col+1] = blankCell
	case line[col].Width == 0 && col > 0:
		line[col-1] = blankCell
	}
}

func (s *screen) lineFeed() {
	s.cur.pendingWrap = false
	switch {
	case s.cur.row == s.bottom:
		s.scrollUp(s.top, 1)
	case s.cur.row < s.rows-1:
		s.cur.row++
	}
}

func (s *screen) reverseIndex() {
	s.cur.pendingWrap = false
	switch {
	case s.cur.row == s.top:
		s.scrollDown(s.top, 1)
	case s.cur.row > 0:
		s.cur.row--
	}
}

func (s *screen) carriageReturn() {
	s.cur.col = 0
	s.cur.pendingWrap = false
}

func (s *screen) backspace() {
	if s.cur.col > 0 {
		s.cur.col--
	}
	s.cur.pendingWrap = false
}

func (s *screen) tab() {
	next := (s.cur.col/8 + 1) * 8
	s.cur.col = min(next, s.cols-1)
	s.cur.pendingWrap = false
}

// moveTo positions the cursor absolutely, relative to the scroll region in
// origin mode.
func (s *screen) moveTo(row, col int) {
	lo, hi := 0, s.rows-1
	if s.originMode {
		row += s.top
		lo, hi = s.top, s.bottom
	}
	s.cur.row = clamp(row, lo, hi)
	s.cur.col = clamp(col, 0, s.cols-1)
	s.cur.pendingWrap = false
}

// moveBy moves the cursor relatively. Vertical movement stops at the scroll
// margins when the cursor starts inside the region.
func (s *screen) moveBy(dr, dc int) {
	lo, hi := 0, s.rows-1
	if s.cur.row >= s.top && s.cur.row <= s.bottom {
		lo, hi = s.top, s.bottom
	}
	s.cur.row = clamp(s.cur.row+dr, lo, hi)
	s.cur.col = clamp(s.cur.col+dc, 0, s.cols-1)
	s.cur.pendingWrap = false
}

func (s *screen) setCol(col int) {
	s.cur.col = clamp(col, 0, s.cols-1)
	s.cur.pendingWrap = false
}

// scrollUp shifts lines from..bottom up by n, blanking the vacated lines.
func (s *screen) scrollUp(from, n int) {
	span := s.bottom - from + 1
	if n <= 0 || span <= 0 {
		return
	}
	n = min(n, span)
	copy(s.lines[from:s.bottom+1], s.lines[from+n:s.bottom+1])
	for i := s.bottom - n + 1; i <= s.bottom; i++ {
		s.lines[i] = blankLine(s.cols)
	}
}

// scrollDown shifts lines from..bottom down by n, blanking the vacated lines.
func (s *screen) scrollDown(from, n int) {
	span := s.bottom - from + 1
	if n <= 0 || span <= 0 {
		return
	}
	n = min(n, span)
	copy(s.lines[from+n:s.bottom+1], s.lines[from:s.bottom+1-n])
	for i := from; i < from+n; i++ {
		s.lines[i] = blankLine(s.cols)
	}
}

func (s *screen) insertLines(n int) {
	if s.cur.row < s.top || s.cur.row > s.bottom {
		return
	}
	s.scrollDown(s.cur.row, n)
	s.carriageReturn()
}

func (s *screen) deleteLines(n int) {
	if s.cur.row < s.top || s.cur.row > s.bottom {
		return
	}
	s.scrollUp(s.cur.row, n)
	s.carriageReturn()
}

func (s *screen) eraseRange(row, from, to int) {
	line := s.lines[row]
	from, to = clamp(from, 0, s.cols), clamp(to, 0, s.cols)
	for i := from; i < to; i++ {
		line[i] = blankCell
	}
	if from > 0 && line[from-1].Width == 2 {
		line[from-1] = blankCell
	}
	if to < s.cols && line[to].Width == 0 {
		line[to] = blankCell
	}
}

// eraseDisplay implements ED: 0 below, 1 above, 2 and 3 everything.
func (s *screen) eraseDisplay(mode int) {
	switch mode {
	case 0:
		s.eraseRange(s.cur.row, s.cur.col, s.cols)
		for r := s.cur.row + 1; r < s.rows; r++ {
			s.lines[r] = blankLine(s.cols)
		}
	case 1:
		for r := 0; r < s.cur.row; r++ {
			s.lines[r] = blankLine(s.cols)
		}
		s.eraseRange(s.cur.row, 0, s.cur.col+1)
	case 2, 3:
		for r := range s.lines {
			s.lines[r] = blankLine(s.cols)
		}
	}
}

// eraseLine implements EL: 0 right of cursor, 1 left of cursor, 2 whole line.
func (s *screen) eraseLine(mode int) {
	switch mode {
	case 0:
		s.eraseRange(s.cur.row, s.cur.col, s.cols)
	case 1:
		s.eraseRange(s.cur.row, 0, s.cur.col+1)
	case 2:
		s.lines[s.cur.row] = blankLine(s.cols)
	}
}

func (s *screen) eraseChars(n int) {
	s.eraseRange(s.cur.row, s.cur.col, s.cur.col+max(n, 1))
}

func (s *screen) insertChars(n int) {
	line := s.lines[s.cur.row]
	n = clamp(n, 0, s.cols-s.cur.col)
	copy(line[s.cur.col+n:], line[s.cur.col:s.cols-n])
	for i := s.cur.col; i < s.cur.col+n; i++ {
		line[i] = blankCell
	}
	s.cur.pendingWrap = false
}

func (s *screen) deleteChars(n int) {
	line := s.lines[s.cur.row]
	n = clamp(n, 0, s.cols-s.cur.col)
	copy(line[s.cur.col:], line[s.cur.col+n:])
	for i := s.cols - n; i < s.cols; i++ {
		line[i] = blankCell
	}
	s.cur.pendingWrap = false
}

// setRegion implements DECSTBM with 0-based inclusive margins.
func (s *screen) setRegion(top, bottom int) {
	top = max(top, 0)
	bottom = min(bottom, s.rows-1)
	if top >= bottom {
		return
	}
	s.top, s.bottom = top, bottom
	s.moveTo(0, 0)
}

func (s *screen) saveCursor() {
	s.saved = s.cur
}

func (s *screen) restoreCursor() {
	s.cur = s.saved
	s.cur.row = clamp(s.cur.row, 0, s.rows-1)
	s.cur.col = clamp(s.cur.col, 0, s.cols-1)
}

// enterAlternate switches to a blank alternate screen, keeping the main one.
func (s *screen) enterAlternate() {
	if s.primary != nil {
		return
	}
	s.primary = s.lines
	s.primarySaved = s.cur
	s.lines = make([][]Cell, s.rows)
	for i := range s.lines {
		s.lines[i] = blankLine(s.cols)
	}
}

func (s *screen) leaveAlternate() {
	if s.primary == nil {
		return
	}
	s.lines = s.primary
	s.primary = nil
	s.cur = s.primarySaved
	s.cur.row = clamp(s.cur.row, 0, s.rows-1)
	s.cur.col = clamp(s.cur.col, 0, s.cols-1)
}

// resize reshapes the grid. When rows shrink below the cursor, lines are
// dropped from the top so the cursor line stays visible.
func (s *screen) resize(rows, cols int) {
	if rows == s.rows && cols == s.cols {
		return
	}
	shift := max(s.cur.row-rows+1, 0)
	s.lines = reshape(s.lines, rows, cols, shift)
	if s.primary != nil {
		pshift := max(s.primarySaved.row-rows+1, 0)
		s.primary = reshape(s.primary, rows, cols, pshift)
		s.primarySaved.row -= pshift
		s.primarySaved.col = min(s.primarySaved.col, cols-1)
	}

	s.rows, s.cols = rows, cols
	s.top, s.bottom = 0, rows-1
	s.cur.row = clamp(s.cur.row-shift, 0, rows-1)
	s.cur.col = clamp(s.cur.col, 0, cols-1)
	s.cur.pendingWrap = false
	s.saved.row = clamp(s.saved.row-shift, 0, rows-1)
	s.saved.col = clamp(s.saved.col, 0, cols-1)
}

func reshape(old [][]Cell, rows, cols, shift int) [][]Cell {
	lines := make([][]Cell, rows)
	for i := range lines {
		line := blankLine(cols)
		if src := i + shift; src < len(old) {
			copy(line, old[src])
		}
		if line[cols-1].Width == 2 {
			line[cols-1] = blankCell
		}
		lines[i] = line
	}
	return lines
}

func (s *screen) grid() Grid {
	g := Grid{
		Rows:          s.rows,
		Cols:          s.cols,
		Cells:         make([]Cell, 0, s.rows*s.cols),
		CursorRow:     s.cur.row,
		CursorCol:     s.cur.col,
		CursorVisible: !s.cursorHidden,
	}
	for _, line := range s.lines {
		g.Cells = append(g.Cells, line...)
	}
	return g
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Grid is an immutable copy of a buffer's cells, row-major.
type Grid struct {
	Rows, Cols    int
	Cells         []Cell
	CursorRow     int
	CursorCol     int
	CursorVisible bool
}

// At returns the cell at row, col, or a blank cell when out of range.
func (g Grid) At(row, col int) Cell {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return blankCell
	}
	return g.Cells[row*g.Cols+col]
}

// Line returns the text of one row without trailing blanks.
func (g Grid) Line(row int) string {
	if row < 0 || row >= g.Rows {
		return ""
	}
	var sb strings.Builder
	for _, c := range g.Cells[row*g.Cols : (row+1)*g.Cols] {
		if c.Width == 0 {
			continue
		}
		sb.WriteRune(c.Rune)
	}
	return strings.TrimRight(sb.String(), " ")
}

// Text returns all rows joined by newlines, trailing blank rows dropped.
func (g Grid) Text() string {
	lines := make([]string, g.Rows)
	for r := range lines {
		lines[r] = g.Line(r)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
