package app

// Rect is a screen area in cells.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Inner returns r without its one-cell border.
func (r Rect) Inner() Rect {
	in := Rect{X: r.X + 1, Y: r.Y + 1, Width: r.Width - 2, Height: r.Height - 2}
	if in.Width < 0 {
		in.Width = 0
	}
	if in.Height < 0 {
		in.Height = 0
	}
	return in
}

// Empty reports whether r has no cells.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// sidebarPercent is the share of the width given to the flock list.
const sidebarPercent = 20

// Layout partitions the screen. Every flock shares the same main area, so
// changing the selection never changes a pane size.
type Layout struct {
	Width, Height int

	Sidebar Rect
	Main    Rect
	Status  Rect
}

// NewLayout computes the layout for a width by height screen. The bottom
// row is the status line.
func NewLayout(width, height int) Layout {
	width, height = max(width, 0), max(height, 0)

	statusHeight := 0
	if height > 1 {
		statusHeight = 1
	}
	body := height - statusHeight
	side := width * sidebarPercent / 100

	return Layout{
		Width:   width,
		Height:  height,
		Sidebar: Rect{X: 0, Y: 0, Width: side, Height: body},
		Main:    Rect{X: side, Y: 0, Width: width - side, Height: body},
		Status:  Rect{X: 0, Y: body, Width: width, Height: statusHeight},
	}
}

// Panes splits the main area into n stacked panes of equal height; the
// first panes absorb the remainder.
func (l Layout) Panes(n int) []Rect {
	if n <= 0 {
		return nil
	}
	panes := make([]Rect, n)
	base, rem := l.Main.Height/n, l.Main.Height%n
	y := l.Main.Y
	for i := range panes {
		h := base
		if i < rem {
			h++
		}
		panes[i] = Rect{X: l.Main.X, Y: y, Width: l.Main.Width, Height: h}
		y += h
	}
	return panes
}

// PaneSize returns the pseudo-terminal size for a bordered pane, never
// smaller than 1x1.
func PaneSize(pane Rect) (rows, cols int) {
	return max(pane.Height-2, 1), max(pane.Width-2, 1)
}
