package img2ascii

import (
	"math"

	"github.com/wbrown/img2ascii/imageutil"
)

// EdgeName is the registry name of the edge-based converter.
const EdgeName = "edge"

// EdgeBased downsamples the source to the grid size, runs Canny on the
// result and draws edge cells from the edge charset and everything else
// from the fill charset.
type EdgeBased struct{}

// NewEdgeBased returns the edge-based converter.
func NewEdgeBased() *EdgeBased {
	return &EdgeBased{}
}

func (e *EdgeBased) Name() string { return EdgeName }

func (e *EdgeBased) Description() string {
	return "Canny edge outlines with brightness-mapped fill"
}

func (e *EdgeBased) Convert(img *imageutil.RGBAImage, opts Options) (*CharacterGrid, error) {
	if err := checkInput(img, opts); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	width := opts.Width
	height := EdgeHeight(width, img.Width(), img.Height())

	small := imageutil.DownsampleArea(img, width, height)
	gray := imageutil.ToGrayscale(small)
	mask := imageutil.Canny(gray, opts.LowThreshold, opts.HighThreshold)

	edgeSet := []rune(opts.EdgeCharset)
	fillSet := []rune(opts.FillCharset)
	grid := newGrid(width, height, opts.ColorMode)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			set := fillSet
			if mask.GetGray(x, y) == 255 {
				set = edgeSet
			}
			idx := charIndex(float64(gray.GetGray(x, y)), len(set))
			grid.Chars[y][x] = set[idx]
			grid.Colors[y][x] = cellColor(small.GetRGB(x, y), opts, false)
		}
	}
	return grid, nil
}

// EdgeHeight returns the row count for the edge converter. Cells are
// imgW/width pixels wide and twice that tall.
func EdgeHeight(width, imgW, imgH int) int {
	// floor(imgH / (2*imgW/width)) with the division done last.
	h := int(math.Floor(float64(imgH) * float64(width) / (2 * float64(imgW))))
	if h < 1 {
		return 1
	}
	return h
}
