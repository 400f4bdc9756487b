package imageutil

import (
	"math"

	"github.com/nfnt/resize"
)

// DownsampleArea resizes an image to width x height by area averaging:
// every destination pixel is the rounded mean of all source pixels whose
// centres fall inside its source rectangle. When a rectangle contains no
// pixel centre (upscaling) the nearest source pixel is used.
func DownsampleArea(img *RGBAImage, width, height int) *RGBAImage {
	dst := NewRGBAImage(width, height)
	srcW, srcH := img.Width(), img.Height()
	if srcW == 0 || srcH == 0 || width == 0 || height == 0 {
		return dst
	}

	xs := areaSpans(srcW, width)
	ys := areaSpans(srcH, height)

	for y := 0; y < height; y++ {
		y0, y1 := ys[y][0], ys[y][1]
		for x := 0; x < width; x++ {
			x0, x1 := xs[x][0], xs[x][1]

			var sumR, sumG, sumB int
			for sy := y0; sy < y1; sy++ {
				row := img.Pix[sy*img.Stride:]
				for sx := x0; sx < x1; sx++ {
					i := sx * 4
					sumR += int(row[i])
					sumG += int(row[i+1])
					sumB += int(row[i+2])
				}
			}

			n := float64((y1 - y0) * (x1 - x0))
			dst.SetRGB(x, y, RGB{
				R: clampUint8(float64(sumR) / n),
				G: clampUint8(float64(sumG) / n),
				B: clampUint8(float64(sumB) / n),
			})
		}
	}

	return dst
}

// areaSpans returns, for each of n destination cells along an axis of
// length src, the half-open range of source indices whose centres (i+0.5)
// fall in [k*src/n, (k+1)*src/n). Empty ranges collapse to the nearest
// source index.
func areaSpans(src, n int) [][2]int {
	spans := make([][2]int, n)
	scale := float64(src) / float64(n)
	for k := 0; k < n; k++ {
		lo := float64(k) * scale
		hi := float64(k+1) * scale
		start := int(math.Ceil(lo - 0.5))
		end := int(math.Ceil(hi - 0.5))
		start = clampInt(start, 0, src)
		end = clampInt(end, 0, src)
		if end <= start {
			c := clampInt(int((lo+hi)/2), 0, src-1)
			start, end = c, c+1
		}
		spans[k] = [2]int{start, end}
	}
	return spans
}

// ShrinkToWidth scales an image down to maxWidth pixels wide, keeping the
// aspect ratio. Images already narrow enough are returned unchanged.
func ShrinkToWidth(img *RGBAImage, maxWidth int) *RGBAImage {
	if maxWidth <= 0 || img.Width() <= maxWidth {
		return img
	}
	scaled := resize.Resize(uint(maxWidth), 0, img.RGBA, resize.Lanczos3)
	return RGBAImageFromImage(scaled)
}
