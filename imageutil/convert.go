package imageutil

// ToGrayscale converts an RGBA image to grayscale using the standard
// luminance formula: Y = 0.299*R + 0.587*G + 0.114*B, rounded.
func ToGrayscale(img *RGBAImage) *GrayImage {
	width, height := img.Width(), img.Height()
	gray := NewGrayImage(width, height)

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			i := x * 4
			gray.Gray.Pix[y*gray.Stride+x] = luma(row[i], row[i+1], row[i+2])
		}
	}

	return gray
}

// luma computes BT.601 luminance with integer math scaled by 1000; the
// +500 term rounds to nearest.
func luma(r, g, b uint8) uint8 {
	lum := (299*int(r) + 587*int(g) + 114*int(b) + 500) / 1000
	if lum > 255 {
		lum = 255
	}
	return uint8(lum)
}

// MeanBrightness returns the unweighted mean of the R, G and B channels.
func MeanBrightness(c RGB) float64 {
	return (float64(c.R) + float64(c.G) + float64(c.B)) / 3
}
