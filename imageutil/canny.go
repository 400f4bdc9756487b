package imageutil

import "math"

// Default Canny thresholds.
const (
	DefaultLowThreshold  = 50
	DefaultHighThreshold = 150
)

// GradientField holds per-pixel gradient magnitude and direction (radians,
// (-pi, pi]) for a grayscale image. Border pixels are zero.
type GradientField struct {
	Width     int
	Height    int
	Magnitude [][]float64
	Direction [][]float64
}

// Canny performs Canny edge detection on a grayscale image and returns a
// binary mask of the same size: 255 for edge pixels, 0 otherwise.
func Canny(gray *GrayImage, lowThreshold, highThreshold float64) *GrayImage {
	blurred := BlurForCanny(gray)
	field := SobelGradients(blurred)
	suppressed := NonMaxSuppression(field)
	return Hysteresis(suppressed, lowThreshold, highThreshold)
}

// CannyDefault performs Canny edge detection with thresholds (50, 150).
func CannyDefault(gray *GrayImage) *GrayImage {
	return Canny(gray, DefaultLowThreshold, DefaultHighThreshold)
}

// BlurForCanny smooths the image with the 5x5 Gaussian, clamping samples at
// the border.
func BlurForCanny(gray *GrayImage) [][]float64 {
	return ConvolveGrayFloat(gray.Floats(), GaussianKernel5x5())
}

// SobelGradients computes gradient magnitude and direction over the image
// interior. The 1-pixel border is left at zero.
func SobelGradients(img [][]float64) *GradientField {
	height := len(img)
	width := 0
	if height > 0 {
		width = len(img[0])
	}

	field := &GradientField{
		Width:     width,
		Height:    height,
		Magnitude: make([][]float64, height),
		Direction: make([][]float64, height),
	}
	for y := 0; y < height; y++ {
		field.Magnitude[y] = make([]float64, width)
		field.Direction[y] = make([]float64, width)
	}

	sobelX, sobelY := SobelKernels()
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := convolveInterior(img, sobelX, x, y)
			gy := convolveInterior(img, sobelY, x, y)
			field.Magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			field.Direction[y][x] = math.Atan2(gy, gx)
		}
	}

	return field
}

// NonMaxSuppression thins the gradient field: a pixel keeps its magnitude
// only if it is at least as large as both neighbours along the gradient
// direction.
func NonMaxSuppression(field *GradientField) [][]float64 {
	width, height := field.Width, field.Height
	magnitude := field.Magnitude

	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
	}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			mag := magnitude[y][x]
			if mag == 0 {
				continue
			}

			// Normalize angle to [0, 180)
			angle := field.Direction[y][x] * 180.0 / math.Pi
			if angle < 0 {
				angle += 180
			}

			var q, r float64
			switch {
			case angle < 22.5 || angle >= 157.5:
				q = magnitude[y][x+1]
				r = magnitude[y][x-1]
			case angle < 67.5:
				q = magnitude[y+1][x+1]
				r = magnitude[y-1][x-1]
			case angle < 112.5:
				q = magnitude[y+1][x]
				r = magnitude[y-1][x]
			default:
				q = magnitude[y+1][x-1]
				r = magnitude[y-1][x+1]
			}

			if mag >= q && mag >= r {
				suppressed[y][x] = mag
			}
		}
	}

	return suppressed
}

// Hysteresis turns suppressed magnitudes into an edge mask. Pixels at or
// above highThreshold seed the trace; 8-connected neighbours at or above
// lowThreshold are promoted and traced in turn. A pixel ends up as an edge
// iff a chain of >=low pixels connects it to a >=high pixel. Zero-magnitude
// pixels are never edges, whatever the thresholds.
func Hysteresis(suppressed [][]float64, lowThreshold, highThreshold float64) *GrayImage {
	height := len(suppressed)
	width := 0
	if height > 0 {
		width = len(suppressed[0])
	}
	edges := NewGrayImage(width, height)
	visited := make([]bool, width*height)

	var stack []int
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if v := suppressed[y][x]; v > 0 && v >= highThreshold {
				idx := y*width + x
				visited[idx] = true
				edges.Gray.Pix[y*edges.Stride+x] = 255
				stack = append(stack, idx)
			}
		}
	}

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := idx%width, idx/width

		for dy := -1; dy <= 1; dy++ {
			ny := cy + dy
			if ny < 0 || ny >= height {
				continue
			}
			for dx := -1; dx <= 1; dx++ {
				nx := cx + dx
				if (dx == 0 && dy == 0) || nx < 0 || nx >= width {
					continue
				}
				nidx := ny*width + nx
				if visited[nidx] || suppressed[ny][nx] <= 0 || suppressed[ny][nx] < lowThreshold {
					continue
				}
				visited[nidx] = true
				edges.Gray.Pix[ny*edges.Stride+nx] = 255
				stack = append(stack, nidx)
			}
		}
	}

	return edges
}

// EdgeCount returns the number of edge pixels in a mask.
func EdgeCount(mask *GrayImage) int {
	count := 0
	for _, v := range mask.Pix {
		if v == 255 {
			count++
		}
	}
	return count
}
