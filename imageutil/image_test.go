package imageutil

import (
	"bytes"
	"math"
	"math/bits"
	"path/filepath"
	"testing"
)

func TestNewRGBAImage(t *testing.T) {
	img := NewRGBAImage(100, 50)
	if img.Width() != 100 {
		t.Errorf("Expected width 100, got %d", img.Width())
	}
	if img.Height() != 50 {
		t.Errorf("Expected height 50, got %d", img.Height())
	}
	if img.Empty() {
		t.Error("100x50 image should not be empty")
	}
}

func TestRGBAImageEmpty(t *testing.T) {
	var nilImg *RGBAImage
	if !nilImg.Empty() {
		t.Error("nil image should be empty")
	}
	if !NewRGBAImage(0, 10).Empty() {
		t.Error("zero-width image should be empty")
	}
}

func TestRGBAImageFromPixels(t *testing.T) {
	pix := []uint8{
		10, 20, 30, 255, 40, 50, 60, 255,
		70, 80, 90, 255, 100, 110, 120, 255,
	}
	img, err := RGBAImageFromPixels(2, 2, pix)
	if err != nil {
		t.Fatalf("RGBAImageFromPixels failed: %v", err)
	}
	if got := img.GetRGB(1, 1); got != (RGB{R: 100, G: 110, B: 120}) {
		t.Errorf("Expected (100,110,120) at (1,1), got %v", got)
	}

	rejected := []struct {
		name          string
		width, height int
		pix           []uint8
	}{
		{"short slice", 2, 2, pix[:8]},
		{"negative width", -1, 2, nil},
		{"overflowing product", math.MaxInt / 2, math.MaxInt / 2, nil},
		{"overflowing height", 4, math.MaxInt / 8, nil},
		{"wrapping to zero", 1 << (bits.UintSize/2 - 1), 1 << (bits.UintSize/2 - 1), nil},
	}
	for _, tt := range rejected {
		if _, err := RGBAImageFromPixels(tt.width, tt.height, tt.pix); err == nil {
			t.Errorf("%s: %dx%d should be rejected", tt.name, tt.width, tt.height)
		}
	}

	if img, err := RGBAImageFromPixels(0, 0, nil); err != nil || !img.Empty() {
		t.Errorf("Zero dimensions should give an empty image, got err %v", err)
	}
}

func TestToGrayscale(t *testing.T) {
	tests := []struct {
		name string
		in   RGB
		want uint8
	}{
		{"white", RGB{255, 255, 255}, 255},
		{"black", RGB{0, 0, 0}, 0},
		{"red", RGB{255, 0, 0}, 76},   // 76.245
		{"green", RGB{0, 255, 0}, 150}, // 149.685
		{"blue", RGB{0, 0, 255}, 29},   // 29.07
		{"gray", RGB{128, 128, 128}, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := CreateSolidImage(1, 1, tt.in)
			got := ToGrayscale(img).GetGray(0, 0)
			if got != tt.want {
				t.Errorf("ToGrayscale(%v) = %d, want %d", tt.in, got, tt.want)
			}
			if tt.in.Luma() != tt.want {
				t.Errorf("Luma(%v) = %d, want %d", tt.in, tt.in.Luma(), tt.want)
			}
		})
	}
}

func TestMeanBrightness(t *testing.T) {
	if got := MeanBrightness(RGB{R: 30, G: 60, B: 90}); got != 60 {
		t.Errorf("Expected 60, got %f", got)
	}
}

func TestConvolveIdentity(t *testing.T) {
	gray := ToGrayscale(CreateGradientImage(10, 10))
	identity := NewKernel([][]float64{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	})
	result := ConvolveGrayFloat(gray.Floats(), identity)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if result[y][x] != float64(gray.GetGray(x, y)) {
				t.Errorf("Identity kernel should preserve pixel at (%d,%d)", x, y)
			}
		}
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	k := GaussianKernel5x5()
	var sum float64
	for _, row := range k.Values {
		for _, v := range row {
			sum += v
		}
	}
	if sum != k.Divisor || k.Divisor != 159 {
		t.Errorf("Expected weights summing to divisor 159, got sum=%f divisor=%f", sum, k.Divisor)
	}
}

func TestLoadSaveImage(t *testing.T) {
	tmpDir := t.TempDir()
	img := CreateCheckerboardImage(64, 64, 8)

	pngPath := filepath.Join(tmpDir, "test.png")
	if err := SaveImage(img.RGBA, pngPath); err != nil {
		t.Fatalf("Failed to save PNG: %v", err)
	}

	loaded, err := LoadImage(pngPath)
	if err != nil {
		t.Fatalf("Failed to load PNG: %v", err)
	}

	// PNG should be lossless
	if mse := CalculateMSE(img, loaded); mse > 0.01 {
		t.Errorf("PNG should be lossless, MSE=%f", mse)
	}
}

func TestEncodeDecodePNG(t *testing.T) {
	img := CreateEdgeImage(32, 16)
	data, err := EncodePNG(img.RGBA)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	decoded, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if decoded.Width() != 32 || decoded.Height() != 16 {
		t.Errorf("Expected 32x16, got %dx%d", decoded.Width(), decoded.Height())
	}
	if mse := CalculateMSE(img, decoded); mse != 0 {
		t.Errorf("PNG round trip should be exact, MSE=%f", mse)
	}
}
