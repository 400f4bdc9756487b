package img2ascii

import (
	"math"

	"github.com/wbrown/img2ascii/imageutil"
)

// darkLuma is the luma below which boostLuminance applies the extra
// dark-pixel multiplier.
const (
	darkLuma       = 64
	darkBoostScale = 1.3
)

// charIndex maps a brightness in [0, 255] onto a character set of length
// n: floor(b/255*(n-1)), clamped to [0, n-1].
func charIndex(brightness float64, n int) int {
	if n <= 1 {
		return 0
	}
	idx := int(math.Floor(brightness / 255 * float64(n-1)))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// boostLuminance brightens a color for display on a dark canvas. Every
// channel is scaled by boost, or by boost*1.3 when the color's luma is
// below 64, and clamped to 255.
func boostLuminance(c imageutil.RGB, boost float64) imageutil.RGB {
	factor := boost
	if c.Luma() < darkLuma {
		factor *= darkBoostScale
	}
	return imageutil.RGB{
		R: scaleChannel(c.R, factor),
		G: scaleChannel(c.G, factor),
		B: scaleChannel(c.B, factor),
	}
}

func scaleChannel(v uint8, factor float64) uint8 {
	f := math.Round(float64(v) * factor)
	if f > 255 {
		return 255
	}
	if f < 0 {
		return 0
	}
	return uint8(f)
}

// adjustSaturation multiplies the HSL saturation of c by factor, clamping
// the result to [0, 1]. A factor of 1 returns c unchanged.
func adjustSaturation(c imageutil.RGB, factor float64) imageutil.RGB {
	if factor == 1 {
		return c
	}
	h, s, l := rgbToHSL(c)
	s *= factor
	if s > 1 {
		s = 1
	}
	if s < 0 {
		s = 0
	}
	return hslToRGB(h, s, l)
}

// rgbToHSL converts to hue in [0, 1), saturation and lightness in [0, 1].
func rgbToHSL(c imageutil.RGB) (h, s, l float64) {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	l = (maxC + minC) / 2

	if maxC == minC {
		return 0, 0, l
	}

	d := maxC - minC
	if l > 0.5 {
		s = d / (2 - maxC - minC)
	} else {
		s = d / (maxC + minC)
	}

	switch maxC {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6
	return h, s, l
}

func hslToRGB(h, s, l float64) imageutil.RGB {
	if s == 0 {
		v := uint8(math.Round(l * 255))
		return imageutil.RGB{R: v, G: v, B: v}
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return imageutil.RGB{
		R: uint8(math.Round(hueToRGB(p, q, h+1.0/3) * 255)),
		G: uint8(math.Round(hueToRGB(p, q, h) * 255)),
		B: uint8(math.Round(hueToRGB(p, q, h-1.0/3) * 255)),
	}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
