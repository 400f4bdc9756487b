package img2ascii

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/wbrown/img2ascii/imageutil"
)

// Rasterizer defaults.
const (
	DefaultFontSize   = 12.0
	DefaultLineHeight = 1.2

	// cellAspect approximates the advance of a monospace glyph as a
	// fraction of the font size.
	cellAspect = 0.6
)

// ErrRasterizerClosed is returned by Render after Close.
var ErrRasterizerClosed = errors.New("rasterizer closed")

// Rasterizer draws CharacterGrids onto a reusable RGBA surface. The image
// returned by Render aliases that surface and stays valid until the next
// Render, Clear or Close. A Rasterizer is not safe for concurrent use.
type Rasterizer struct {
	FontSize   float64
	LineHeight float64
	Background imageutil.RGB

	fontPath string
	ttf      *truetype.Font
	face     font.Face
	ctx      *freetype.Context
	ascent   int

	surface *image.RGBA
	allocs  int
	closed  bool
}

// RasterizerOption is a functional option for configuring a Rasterizer.
type RasterizerOption func(*Rasterizer)

// WithFontSize sets the font size in pixels.
func WithFontSize(size float64) RasterizerOption {
	return func(r *Rasterizer) {
		r.FontSize = size
	}
}

// WithLineHeight sets the cell height as a multiple of the font size.
func WithLineHeight(mult float64) RasterizerOption {
	return func(r *Rasterizer) {
		r.LineHeight = mult
	}
}

// WithBackground sets the surface fill color.
func WithBackground(c imageutil.RGB) RasterizerOption {
	return func(r *Rasterizer) {
		r.Background = c
	}
}

// WithFontFile replaces the embedded Go Mono face with a TrueType file.
func WithFontFile(path string) RasterizerOption {
	return func(r *Rasterizer) {
		r.fontPath = path
	}
}

// NewRasterizer creates a Rasterizer. Defaults: FontSize=12,
// LineHeight=1.2, black background, embedded Go Mono.
func NewRasterizer(opts ...RasterizerOption) (*Rasterizer, error) {
	r := &Rasterizer{
		FontSize:   DefaultFontSize,
		LineHeight: DefaultLineHeight,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.FontSize <= 0 {
		return nil, &InputError{Field: "font_size", Reason: "must be positive"}
	}
	if r.LineHeight <= 0 {
		return nil, &InputError{Field: "line_height", Reason: "must be positive"}
	}

	ttf, err := loadFont(r.fontPath)
	if err != nil {
		return nil, err
	}
	r.ttf = ttf
	r.face = truetype.NewFace(ttf, &truetype.Options{
		Size:    r.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	r.ascent = r.face.Metrics().Ascent.Ceil()

	r.ctx = freetype.NewContext()
	r.ctx.SetDPI(72)
	r.ctx.SetFont(ttf)
	r.ctx.SetFontSize(r.FontSize)
	r.ctx.SetHinting(font.HintingFull)
	return r, nil
}

func loadFont(path string) (*truetype.Font, error) {
	data := gomono.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading font: %w", err)
		}
		data = b
	}
	f, err := freetype.ParseFont(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	return f, nil
}

// CellSize returns the pixel size of one character cell.
func (r *Rasterizer) CellSize() (w, h int) {
	w = int(math.Ceil(cellAspect * r.FontSize))
	h = int(math.Ceil(r.FontSize * r.LineHeight))
	return w, h
}

// Render fills the surface with the background and draws every non-space
// character at its cell origin in its cell color.
func (r *Rasterizer) Render(grid *CharacterGrid) (*image.RGBA, error) {
	if r.closed {
		return nil, ErrRasterizerClosed
	}
	if grid == nil || grid.Width < 1 || grid.Height < 1 {
		return nil, &InputError{Field: "grid", Reason: "empty character grid"}
	}

	cw, ch := r.CellSize()
	dst := r.surfaceFor(grid.Width*cw, grid.Height*ch)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.Background.ToColor()), image.Point{}, draw.Src)

	r.ctx.SetDst(dst)
	r.ctx.SetClip(dst.Bounds())

	// Offset the baseline so the glyph sits vertically centred in a cell
	// taller than the font.
	pad := (ch - int(math.Ceil(r.FontSize))) / 2
	var last color.RGBA
	haveSrc := false
	for y, row := range grid.Chars {
		baseline := y*ch + pad + r.ascent
		for x, c := range row {
			if c == ' ' {
				continue
			}
			col := grid.Colors[y][x].ToColor()
			if !haveSrc || col != last {
				r.ctx.SetSrc(image.NewUniform(col))
				last, haveSrc = col, true
			}
			if _, err := r.ctx.DrawString(string(c), freetype.Pt(x*cw, baseline)); err != nil {
				return nil, fmt.Errorf("drawing %q at %d,%d: %w", c, x, y, err)
			}
		}
	}
	return dst, nil
}

// surfaceFor resizes the backing surface, reusing its pixel buffer when the
// capacity allows.
func (r *Rasterizer) surfaceFor(w, h int) *image.RGBA {
	n := w * h * 4
	if r.surface == nil || cap(r.surface.Pix) < n {
		r.surface = image.NewRGBA(image.Rect(0, 0, w, h))
		r.allocs++
		return r.surface
	}
	r.surface.Pix = r.surface.Pix[:n]
	r.surface.Stride = 4 * w
	r.surface.Rect = image.Rect(0, 0, w, h)
	return r.surface
}

// Surface returns the current backing surface, or nil before the first
// Render.
func (r *Rasterizer) Surface() *image.RGBA {
	return r.surface
}

// Clear zeroes the backing surface in place.
func (r *Rasterizer) Clear() {
	if r.surface != nil {
		clear(r.surface.Pix)
	}
}

// Close releases the surface and font face. The Rasterizer cannot be used
// afterwards.
func (r *Rasterizer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.surface = nil
	return r.face.Close()
}

// EncodePNG encodes the current surface as PNG.
func (r *Rasterizer) EncodePNG() ([]byte, error) {
	if r.surface == nil {
		return nil, errors.New("nothing rendered")
	}
	return imageutil.EncodePNG(r.surface)
}

// EncodeWebP encodes the current surface as lossless WebP.
func (r *Rasterizer) EncodeWebP() ([]byte, error) {
	if r.surface == nil {
		return nil, errors.New("nothing rendered")
	}
	return imageutil.EncodeWebP(r.surface)
}

// RawPixels returns a copy of the surface's RGBA bytes, row-major with no
// padding.
func (r *Rasterizer) RawPixels() []byte {
	if r.surface == nil {
		return nil
	}
	out := make([]byte, len(r.surface.Pix))
	copy(out, r.surface.Pix)
	return out
}
