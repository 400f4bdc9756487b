package img2ascii

import (
	"math"

	"github.com/wbrown/img2ascii/imageutil"
)

// DensityName is the registry name of the density converter.
const DensityName = "density"

// aspectCompensation accounts for character cells being roughly twice as
// tall as they are wide.
const aspectCompensation = 0.5

// Density maps each cell to a character by the brightness of the source
// pixel nearest the cell centre.
type Density struct{}

// NewDensity returns the density converter.
func NewDensity() *Density {
	return &Density{}
}

func (d *Density) Name() string { return DensityName }

func (d *Density) Description() string {
	return "Brightness-mapped characters, light to dark"
}

// Convert samples one pixel per cell. Output height is
// floor(width * (h/w) * 0.5), at least 1.
func (d *Density) Convert(img *imageutil.RGBAImage, opts Options) (*CharacterGrid, error) {
	if err := checkInput(img, opts); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	imgW, imgH := img.Width(), img.Height()
	width := opts.Width
	height := DensityHeight(width, imgW, imgH)

	charset := []rune(opts.Charset)
	grid := newGrid(width, height, opts.ColorMode)

	cellW := float64(imgW) / float64(width)
	cellH := float64(imgH) / float64(height)

	for y := 0; y < height; y++ {
		sy := nearestSample(y, cellH, imgH)
		for x := 0; x < width; x++ {
			sx := nearestSample(x, cellW, imgW)
			px := img.GetRGB(sx, sy)

			idx := charIndex(imageutil.MeanBrightness(px), len(charset))
			grid.Chars[y][x] = charset[idx]
			grid.Colors[y][x] = cellColor(px, opts, true)
		}
	}
	return grid, nil
}

// DensityHeight returns the number of rows the density converter emits for
// a source of imgW x imgH pixels at the given column count.
func DensityHeight(width, imgW, imgH int) int {
	h := int(math.Floor(float64(width) * float64(imgH) / float64(imgW) * aspectCompensation))
	if h < 1 {
		return 1
	}
	return h
}

// nearestSample returns the source coordinate whose pixel is nearest to the
// centre of cell i.
func nearestSample(i int, cell float64, limit int) int {
	c := int(math.Floor((float64(i) + 0.5) * cell))
	if c >= limit {
		c = limit - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}
