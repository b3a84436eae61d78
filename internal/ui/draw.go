package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/dshills/flok/internal/app"
	"github.com/dshills/flok/internal/process"
	"github.com/dshills/flok/internal/supervisor"
	"github.com/dshills/flok/internal/terminal"
)

const (
	runningMark = '●'
	hints       = " ↑/k ↓/j select  Enter start  r restart  q quit"
)

var (
	borderStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	selectedStyle = tcell.StyleDefault.Reverse(true)
	markStyle     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	warningStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	hintStyle     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	errorStyle    = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// canvas draws onto a screen with clipping to rectangles.
type canvas struct {
	screen tcell.Screen
}

// text writes s from x, y, never past x+width. It returns the next column.
func (c canvas) text(x, y, width int, s string, style tcell.Style) int {
	end := x + width
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > end {
			break
		}
		c.screen.SetContent(x, y, r, nil, style)
		x += w
	}
	return x
}

// box draws a one-cell border around r with title on the top edge.
func (c canvas) box(r app.Rect, title string, style tcell.Style) {
	if r.Width < 2 || r.Height < 2 {
		return
	}
	right, bottom := r.X+r.Width-1, r.Y+r.Height-1
	for x := r.X + 1; x < right; x++ {
		c.screen.SetContent(x, r.Y, tcell.RuneHLine, nil, style)
		c.screen.SetContent(x, bottom, tcell.RuneHLine, nil, style)
	}
	for y := r.Y + 1; y < bottom; y++ {
		c.screen.SetContent(r.X, y, tcell.RuneVLine, nil, style)
		c.screen.SetContent(right, y, tcell.RuneVLine, nil, style)
	}
	c.screen.SetContent(r.X, r.Y, tcell.RuneULCorner, nil, style)
	c.screen.SetContent(right, r.Y, tcell.RuneURCorner, nil, style)
	c.screen.SetContent(r.X, bottom, tcell.RuneLLCorner, nil, style)
	c.screen.SetContent(right, bottom, tcell.RuneLRCorner, nil, style)

	if title != "" {
		c.text(r.X+1, r.Y, r.Width-2, " "+title+" ", tcell.StyleDefault.Bold(true))
	}
}

func (c canvas) sidebar(f app.Frame) {
	r := f.Layout.Sidebar
	c.box(r, "Flocks", borderStyle)
	in := r.Inner()
	for i, fl := range f.Snapshot.Flocks {
		if i >= in.Height {
			break
		}
		y := in.Y + i
		style := tcell.StyleDefault
		if fl.Selected {
			style = selectedStyle
			for x := in.X; x < in.X+in.Width; x++ {
				c.screen.SetContent(x, y, ' ', nil, style)
			}
		}
		x := in.X
		if fl.Running > 0 && in.Width > 2 {
			c.screen.SetContent(x, y, runningMark, nil, markStyle.Reverse(fl.Selected))
		}
		x += 2
		c.text(x, y, in.Width-2, fl.Name, style)
	}
}

func (c canvas) panes(f app.Frame) {
	if f.Snapshot.Selected < 0 || f.Snapshot.Selected >= len(f.Snapshot.Flocks) {
		return
	}
	procs := f.Snapshot.Flocks[f.Snapshot.Selected].Processes
	for i, pane := range f.Layout.Panes(len(procs)) {
		c.pane(pane, procs[i])
	}
}

func (c canvas) pane(r app.Rect, pv supervisor.ProcessView) {
	title := pv.Name
	if ind := Indicator(pv); ind != "" {
		title += " " + ind
	}
	c.box(r, title, borderStyle)

	in := r.Inner()
	if in.Empty() {
		return
	}
	switch {
	case pv.Idle:
		c.text(in.X, in.Y, in.Width, "Press Enter to start", hintStyle)
		return
	case pv.Status.Phase == process.PhaseFailed && pv.Err != nil:
		c.text(in.X, in.Y, in.Width, pv.Err.Error(), errorStyle)
		return
	}
	c.grid(in, pv.Grid)
}

// grid copies the cells of g into r, clipped to both.
func (c canvas) grid(r app.Rect, g terminal.Grid) {
	rows, cols := min(g.Rows, r.Height), min(g.Cols, r.Width)
	for row := range rows {
		for col := range cols {
			cell := g.At(row, col)
			if cell.Width == 0 {
				continue
			}
			ch := cell.Rune
			if ch == 0 {
				ch = ' '
			}
			if cell.Width > 1 && col+int(cell.Width) > cols {
				ch = ' '
			}
			c.screen.SetContent(r.X+col, r.Y+row, ch, nil, convertStyle(cell.Style))
		}
	}
}

func (c canvas) status(f app.Frame) {
	r := f.Layout.Status
	if r.Empty() {
		return
	}
	if f.Warning != "" {
		c.text(r.X, r.Y, r.Width, " ⚠ "+f.Warning, warningStyle)
		return
	}
	c.text(r.X, r.Y, r.Width, hints, hintStyle)
}

// Indicator returns the bracketed state shown after a process name.
func Indicator(pv supervisor.ProcessView) string {
	st := pv.Status
	switch {
	case pv.Idle:
		return ""
	case pv.Restarting:
		return "[Restarting...]"
	case st.Phase == process.PhaseFailed:
		return "[Failed]"
	case st.Unresponsive:
		return "[Unresponsive]"
	case st.Phase == process.PhaseStarting:
		return "[Starting...]"
	case st.Phase == process.PhaseTerminating:
		return "[Stopping...]"
	case st.Phase == process.PhaseExited && st.Signal != "":
		return "[Killed]"
	case st.Phase == process.PhaseExited:
		return fmt.Sprintf("[Exited %d]", st.ExitCode)
	}
	return ""
}

// convertStyle maps a cell style onto tcell's palette colors.
func convertStyle(s terminal.Style) tcell.Style {
	style := tcell.StyleDefault
	if !s.Fg.IsDefault() {
		style = style.Foreground(tcell.PaletteColor(int(s.Fg)))
	}
	if !s.Bg.IsDefault() {
		style = style.Background(tcell.PaletteColor(int(s.Bg)))
	}
	if s.Attrs.Has(terminal.AttrBold) {
		style = style.Bold(true)
	}
	if s.Attrs.Has(terminal.AttrItalic) {
		style = style.Italic(true)
	}
	if s.Attrs.Has(terminal.AttrUnderline) {
		style = style.Underline(true)
	}
	return style
}
