package imageutil

import "math"

// Kernel represents a convolution kernel. The weighted sum is divided by
// Divisor after accumulation.
type Kernel struct {
	Values  [][]float64
	Divisor float64
	Width   int
	Height  int
}

// NewKernel creates a new kernel from a 2D slice.
func NewKernel(values [][]float64) *Kernel {
	height := len(values)
	width := 0
	if height > 0 {
		width = len(values[0])
	}
	return &Kernel{
		Values:  values,
		Divisor: 1,
		Width:   width,
		Height:  height,
	}
}

// NewIntKernel builds a kernel from integer weights and a common divisor.
// Keeping the weights integral means an image of integer samples
// accumulates exactly, so flat regions stay exactly flat.
func NewIntKernel(weights [][]int, divisor float64) *Kernel {
	values := make([][]float64, len(weights))
	for y, row := range weights {
		values[y] = make([]float64, len(row))
		for x, w := range row {
			values[y][x] = float64(w)
		}
	}
	k := NewKernel(values)
	k.Divisor = divisor
	return k
}

// GaussianKernel5x5 returns the 5x5 Gaussian (sigma ~1.4) used ahead of
// Canny gradient estimation. Weights sum to 159.
func GaussianKernel5x5() *Kernel {
	return NewIntKernel([][]int{
		{2, 4, 5, 4, 2},
		{4, 9, 12, 9, 4},
		{5, 12, 15, 12, 5},
		{4, 9, 12, 9, 4},
		{2, 4, 5, 4, 2},
	}, 159)
}

// SobelKernels returns the horizontal and vertical 3x3 Sobel kernels.
func SobelKernels() (gx, gy *Kernel) {
	gx = NewKernel([][]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	})
	gy = NewKernel([][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	})
	return gx, gy
}

// ConvolveGrayFloat applies a convolution kernel to a grayscale float image.
// Sample coordinates are clamped to the image border and the result is
// returned without clamping or rounding.
func ConvolveGrayFloat(img [][]float64, kernel *Kernel) [][]float64 {
	height := len(img)
	if height == 0 {
		return nil
	}
	width := len(img[0])

	dst := make([][]float64, height)
	for y := 0; y < height; y++ {
		dst[y] = make([]float64, width)
	}

	halfKW := kernel.Width / 2
	halfKH := kernel.Height / 2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64

			for ky := 0; ky < kernel.Height; ky++ {
				sy := clampInt(y+ky-halfKH, 0, height-1)
				for kx := 0; kx < kernel.Width; kx++ {
					sx := clampInt(x+kx-halfKW, 0, width-1)
					sum += img[sy][sx] * kernel.Values[ky][kx]
				}
			}

			dst[y][x] = sum / kernel.Divisor
		}
	}

	return dst
}

// convolveInterior applies a 3x3 kernel at (x, y), which must be at least
// one pixel away from every border.
func convolveInterior(img [][]float64, kernel *Kernel, x, y int) float64 {
	var sum float64
	for ky := 0; ky < 3; ky++ {
		row := img[y+ky-1]
		for kx := 0; kx < 3; kx++ {
			sum += row[x+kx-1] * kernel.Values[ky][kx]
		}
	}
	return sum
}

// clampInt clamps an integer to the given range.
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// clampUint8 clamps a float64 to [0, 255] and converts to uint8.
func clampUint8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}
