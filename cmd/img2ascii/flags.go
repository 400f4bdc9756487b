package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/imageutil"
	"github.com/wbrown/img2ascii/internal/config"
)

// conversionFlags are shared by every command that converts. Only flags
// set on the command line override the config file.
type conversionFlags struct {
	converter   string
	width       int
	color       string
	charset     string
	edgeCharset string
	fillCharset string
	foreground  string
	saturation  float64
	low         float64
	high        float64
	boost       float64
}

func (f *conversionFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.converter, "converter", "c", img2ascii.DensityName, "Converter to use (density, edge)")
	fs.IntVarP(&f.width, "width", "w", img2ascii.DefaultWidth,
		fmt.Sprintf("Output width in characters (%d-%d)", img2ascii.MinWidth, img2ascii.MaxWidth))
	fs.StringVar(&f.color, "color", "mono", "Color mode (mono, color)")
	fs.StringVar(&f.charset, "charset", img2ascii.DefaultCharset, "Density ramp, sparsest glyph first")
	fs.StringVar(&f.edgeCharset, "edge-charset", img2ascii.DefaultEdgeCharset, "Characters for edge cells")
	fs.StringVar(&f.fillCharset, "fill-charset", img2ascii.DefaultFillCharset, "Characters for non-edge cells")
	fs.StringVar(&f.foreground, "foreground", "#ffffff", "Monochrome foreground color")
	fs.Float64Var(&f.saturation, "saturation", img2ascii.DefaultSaturation, "Color saturation multiplier")
	fs.Float64Var(&f.low, "low", imageutil.DefaultLowThreshold, "Canny low threshold")
	fs.Float64Var(&f.high, "high", imageutil.DefaultHighThreshold, "Canny high threshold")
	fs.Float64Var(&f.boost, "boost", img2ascii.DefaultLuminanceBoost, "Luminance boost for color output")
}

// apply copies changed flags into c.
func (f *conversionFlags) apply(fs *pflag.FlagSet, c *config.Conversion) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("converter", func() { c.Converter = f.converter })
	set("width", func() { c.Width = f.width })
	set("color", func() { c.Color = f.color })
	set("charset", func() { c.Charset = f.charset })
	set("edge-charset", func() { c.EdgeCharset = f.edgeCharset })
	set("fill-charset", func() { c.FillCharset = f.fillCharset })
	set("foreground", func() { c.Foreground = f.foreground })
	set("saturation", func() { c.Saturation = f.saturation })
	set("low", func() { c.LowThreshold = f.low })
	set("high", func() { c.HighThreshold = f.high })
	set("boost", func() { c.LuminanceBoost = f.boost })
}

// options applies the flags to the loaded config and returns the
// validated conversion options.
func (f *conversionFlags) options(fs *pflag.FlagSet, cfg *config.Config) (img2ascii.Options, error) {
	f.apply(fs, &cfg.Conversion)
	return cfg.Options()
}

// Output kinds, chosen by file extension.
const (
	outputText = "text"
	outputANSI = "ansi"
	outputPNG  = "png"
	outputWebP = "webp"
)

func outputKind(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return outputText, nil
	case ".ans", ".ansi":
		return outputANSI, nil
	case ".png":
		return outputPNG, nil
	case ".webp":
		return outputWebP, nil
	}
	return "", fmt.Errorf("unsupported output extension %q (want .txt, .ans, .png or .webp)", filepath.Ext(path))
}

// writeGrid writes grid to path, or to stdout when path is empty. ANSI
// is used on stdout for color grids.
func (a *app) writeGrid(stdout io.Writer, grid *img2ascii.CharacterGrid, path string) error {
	if path == "" {
		text := grid.Text()
		if grid.Mode == img2ascii.Color {
			text = grid.ANSI()
		}
		_, err := fmt.Fprintln(stdout, text)
		return err
	}

	kind, err := outputKind(path)
	if err != nil {
		return err
	}
	var data []byte
	switch kind {
	case outputText:
		data = []byte(grid.Text() + "\n")
	case outputANSI:
		data = []byte(grid.ANSI() + "\n")
	default:
		data, err = a.renderGrid(grid, kind)
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	a.logger.Info("wrote output", "path", path, "bytes", len(data))
	return nil
}

// renderGrid rasterizes grid and encodes it as PNG or WebP.
func (a *app) renderGrid(grid *img2ascii.CharacterGrid, kind string) ([]byte, error) {
	r, err := a.rasterizer()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if _, err := r.Render(grid); err != nil {
		return nil, err
	}
	if kind == outputWebP {
		return r.EncodeWebP()
	}
	return r.EncodePNG()
}
