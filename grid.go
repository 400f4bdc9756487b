package img2ascii

import (
	"strings"

	"github.com/wbrown/img2ascii/imageutil"
)

// ColorMode selects how a CharacterGrid is colored.
type ColorMode int

const (
	// Monochrome paints every cell with one fixed foreground color.
	Monochrome ColorMode = iota
	// Color carries a per-cell RGB triple taken from the source.
	Color
)

// String returns the config/flag spelling of the mode.
func (m ColorMode) String() string {
	if m == Color {
		return "color"
	}
	return "mono"
}

// ParseColorMode accepts "mono", "monochrome" or "color".
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "mono", "monochrome":
		return Monochrome, nil
	case "color", "colour":
		return Color, nil
	}
	return Monochrome, &InputError{Field: "color", Reason: "unknown color mode " + s}
}

// CharacterGrid is the output of a converter: Width x Height characters
// and a parallel color grid of the same dimensions. Grids are not
// modified after a converter returns them.
type CharacterGrid struct {
	Width  int
	Height int
	Chars  [][]rune
	Colors [][]imageutil.RGB
	Mode   ColorMode
}

// newGrid allocates a grid with matching character and color planes.
func newGrid(width, height int, mode ColorMode) *CharacterGrid {
	g := &CharacterGrid{
		Width:  width,
		Height: height,
		Chars:  make([][]rune, height),
		Colors: make([][]imageutil.RGB, height),
		Mode:   mode,
	}
	for y := 0; y < height; y++ {
		g.Chars[y] = make([]rune, width)
		g.Colors[y] = make([]imageutil.RGB, width)
	}
	return g
}

// Rows returns each row of characters as a string.
func (g *CharacterGrid) Rows() []string {
	rows := make([]string, g.Height)
	for y, row := range g.Chars {
		rows[y] = string(row)
	}
	return rows
}

// Text returns the plain-text dump of the grid: rows joined by newlines,
// columns concatenated without separators and no trailing newline.
func (g *CharacterGrid) Text() string {
	var sb strings.Builder
	sb.Grow(g.Height * (g.Width + 1))
	for y, row := range g.Chars {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for _, r := range row {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
