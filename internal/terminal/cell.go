package terminal

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an entry of the 16-color ANSI palette, or ColorDefault.
type Color int8

// ColorDefault selects the renderer's default foreground or background.
const ColorDefault Color = -1

// Palette entries, in SGR order.
const (
	Black Color = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
	BrightBlack
	BrightRed
	BrightGreen
	BrightYellow
	BrightBlue
	BrightMagenta
	BrightCyan
	BrightWhite
)

// xterm's default RGB values for the palette.
var paletteRGB = [16][3]uint8{
	{0, 0, 0}, {205, 0, 0}, {0, 205, 0}, {205, 205, 0},
	{0, 0, 238}, {205, 0, 205}, {0, 205, 205}, {229, 229, 229},
	{127, 127, 127}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
	{92, 92, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
}

// IsDefault reports whether c is the default color.
func (c Color) IsDefault() bool {
	return c < 0 || c > BrightWhite
}

// nearestColor quantizes an RGB triple to the closest palette entry in Lab space.
func nearestColor(r, g, b uint8) Color {
	want := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	best, bestDist := Black, -1.0
	for i, rgb := range paletteRGB {
		c := colorful.Color{R: float64(rgb[0]) / 255, G: float64(rgb[1]) / 255, B: float64(rgb[2]) / 255}
		if d := want.DistanceLab(c); bestDist < 0 || d < bestDist {
			best, bestDist = Color(i), d
		}
	}
	return best
}

// indexedColor maps a 256-color index onto the palette.
func indexedColor(index int) Color {
	switch {
	case index < 0 || index > 255:
		return ColorDefault
	case index < 16:
		return Color(index)
	case index < 232:
		index -= 16
		step := func(v int) uint8 {
			if v == 0 {
				return 0
			}
			return uint8(55 + v*40)
		}
		return nearestColor(step(index/36), step((index/6)%6), step(index%6))
	default:
		gray := uint8((index-232)*10 + 8)
		return nearestColor(gray, gray, gray)
	}
}

// Attr is a set of text attributes.
type Attr uint8

const (
	AttrBold Attr = 1 << iota
	AttrItalic
	AttrUnderline
)

// Has reports whether all of attr are set.
func (a Attr) Has(attr Attr) bool {
	return a&attr == attr
}

// Style is the rendition applied to a cell.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs Attr
}

// DefaultStyle has default colors and no attributes.
var DefaultStyle = Style{Fg: ColorDefault, Bg: ColorDefault}

// Cell is one character position of the grid. A wide rune occupies two
// cells; the second has Width 0 and carries no rune.
type Cell struct {
	Rune  rune
	Width uint8
	Style Style
}

var blankCell = Cell{Rune: ' ', Width: 1, Style: DefaultStyle}

func blankLine(cols int) []Cell {
	line := make([]Cell, cols)
	for i := range line {
		line[i] = blankCell
	}
	return line
}
