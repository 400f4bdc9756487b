package img2ascii

import (
	"github.com/wbrown/img2ascii/imageutil"
)

// Converter maps a pixel buffer to a CharacterGrid. Implementations are
// stateless; the same converter may serve many conversions.
type Converter interface {
	// Name is the registry key, e.g. "density".
	Name() string
	// Description is a one-line human readable summary.
	Description() string
	// Convert produces a grid. It fails with an *InputError when img is
	// empty or opts.Width < 1.
	Convert(img *imageutil.RGBAImage, opts Options) (*CharacterGrid, error)
}

// ConverterInfo describes a registered converter.
type ConverterInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func checkInput(img *imageutil.RGBAImage, opts Options) error {
	if img.Empty() {
		return &InputError{Field: "image", Reason: "empty pixel buffer"}
	}
	if opts.Width < 1 {
		return &InputError{Field: "width", Reason: "must be at least 1"}
	}
	return nil
}

// cellColor returns the color a cell is painted with.
func cellColor(src imageutil.RGB, opts Options, saturate bool) imageutil.RGB {
	if opts.ColorMode != Color {
		return opts.Foreground
	}
	if saturate {
		src = adjustSaturation(src, opts.Saturation)
	}
	return boostLuminance(src, opts.LuminanceBoost)
}
