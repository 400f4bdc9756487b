package img2ascii

import (
	"strconv"
	"strings"

	"github.com/wbrown/img2ascii/imageutil"
)

// ESC is the ANSI escape character.
const ESC = "\u001b"

const ansiReset = ESC + "[0m"

// ANSI renders the grid for a 24-bit color terminal. Runs of cells sharing
// a color are written under a single escape code, spaces never change the
// current color, and every line ends with a reset.
func (g *CharacterGrid) ANSI() string {
	var sb strings.Builder
	sb.Grow(g.Height * (g.Width + 24))

	for y, row := range g.Chars {
		if y > 0 {
			sb.WriteByte('\n')
		}
		var current imageutil.RGB
		colored := false
		for x, r := range row {
			if r != ' ' {
				c := g.Colors[y][x]
				if !colored || c != current {
					writeForeground(&sb, c)
					current, colored = c, true
				}
			}
			sb.WriteRune(r)
		}
		sb.WriteString(ansiReset)
	}
	return sb.String()
}

// writeForeground writes a truecolor foreground escape code.
func writeForeground(sb *strings.Builder, c imageutil.RGB) {
	sb.WriteString(ESC)
	sb.WriteString("[38;2;")
	sb.WriteString(strconv.Itoa(int(c.R)))
	sb.WriteByte(';')
	sb.WriteString(strconv.Itoa(int(c.G)))
	sb.WriteByte(';')
	sb.WriteString(strconv.Itoa(int(c.B)))
	sb.WriteByte('m')
}
