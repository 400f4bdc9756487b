package img2ascii

import (
	"github.com/wbrown/img2ascii/imageutil"
)

// Default character sets. Density sets run light to dark; the edge set
// holds strong line-like glyphs and the fill set lighter texture glyphs.
const (
	DefaultCharset     = " .:-=+*#%@"
	DefaultEdgeCharset = "ILJTFYVCXZAHKNMBDPQRUWG@#%&"
	DefaultFillCharset = " .'`,;:_-~\"<>+*^ilcstfvoabdeghknpqruymwxzj"
)

// Valid option ranges.
const (
	MinWidth          = 20
	MaxWidth          = 300
	MinSaturation     = 0.5
	MaxSaturation     = 2.0
	MinLuminanceBoost = 1.0
	MaxLuminanceBoost = 3.0
)

// Defaults applied by DefaultOptions.
const (
	DefaultWidth          = 100
	DefaultSaturation     = 1.0
	DefaultLuminanceBoost = 1.5
)

// DefaultForeground is the monochrome glyph color.
var DefaultForeground = imageutil.RGB{R: 255, G: 255, B: 255}

// Options control a single conversion.
type Options struct {
	// Charset is used by the density converter.
	Charset string
	// EdgeCharset and FillCharset are used by the edge converter.
	EdgeCharset string
	FillCharset string

	// Width is the number of character columns.
	Width int

	ColorMode  ColorMode
	Foreground imageutil.RGB

	// Saturation multiplies HSL saturation in color mode; 1.0 is identity.
	Saturation float64
	// LuminanceBoost brightens colors drawn on a dark background.
	LuminanceBoost float64

	// Canny thresholds for the edge converter.
	LowThreshold  float64
	HighThreshold float64
}

// DefaultOptions returns options with every field at its default.
func DefaultOptions() Options {
	return Options{
		Charset:        DefaultCharset,
		EdgeCharset:    DefaultEdgeCharset,
		FillCharset:    DefaultFillCharset,
		Width:          DefaultWidth,
		ColorMode:      Monochrome,
		Foreground:     DefaultForeground,
		Saturation:     DefaultSaturation,
		LuminanceBoost: DefaultLuminanceBoost,
		LowThreshold:   imageutil.DefaultLowThreshold,
		HighThreshold:  imageutil.DefaultHighThreshold,
	}
}

// Validate checks every option against its valid range. Low > High is
// allowed.
func (o Options) Validate() error {
	if o.Width < MinWidth || o.Width > MaxWidth {
		return rangeError("width", o.Width, MinWidth, MaxWidth)
	}
	if o.Saturation < MinSaturation || o.Saturation > MaxSaturation {
		return rangeError("saturation", o.Saturation, MinSaturation, MaxSaturation)
	}
	if o.LuminanceBoost < MinLuminanceBoost || o.LuminanceBoost > MaxLuminanceBoost {
		return rangeError("luminance_boost", o.LuminanceBoost, MinLuminanceBoost, MaxLuminanceBoost)
	}
	if o.LowThreshold < 0 || o.LowThreshold > 255 {
		return rangeError("low_threshold", o.LowThreshold, 0, 255)
	}
	if o.HighThreshold < 0 || o.HighThreshold > 255 {
		return rangeError("high_threshold", o.HighThreshold, 0, 255)
	}
	if o.ColorMode != Monochrome && o.ColorMode != Color {
		return &InputError{Field: "color", Reason: "unknown color mode"}
	}
	return nil
}

// withDefaults fills zero-valued fields a converter cannot work without.
func (o Options) withDefaults() Options {
	if o.Charset == "" {
		o.Charset = DefaultCharset
	}
	if o.EdgeCharset == "" {
		o.EdgeCharset = DefaultEdgeCharset
	}
	if o.FillCharset == "" {
		o.FillCharset = DefaultFillCharset
	}
	if o.Saturation == 0 {
		o.Saturation = DefaultSaturation
	}
	if o.LuminanceBoost == 0 {
		o.LuminanceBoost = DefaultLuminanceBoost
	}
	return o
}
