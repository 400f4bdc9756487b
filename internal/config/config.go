// Package config loads the img2ascii YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/imageutil"
	"github.com/wbrown/img2ascii/video"
)

const (
	// AppDir is the directory under the user config dir.
	AppDir = "img2ascii"
	// FileName is the name of the configuration file.
	FileName = "config.yaml"
)

// Video backends.
const (
	BackendFFmpeg = "ffmpeg"
	BackendOpenCV = "opencv"
)

// Config is the root of config.yaml.
type Config struct {
	Conversion Conversion `yaml:"conversion"`
	Render     Render     `yaml:"render"`
	Video      Video      `yaml:"video"`
	Server     Server     `yaml:"server"`
	Log        Log        `yaml:"log"`
}

// Conversion holds the default conversion options.
type Conversion struct {
	Converter      string  `yaml:"converter"`
	Width          int     `yaml:"width"`
	Charset        string  `yaml:"charset"`
	EdgeCharset    string  `yaml:"edge_charset"`
	FillCharset    string  `yaml:"fill_charset"`
	Color          string  `yaml:"color"`
	Foreground     string  `yaml:"foreground"`
	Saturation     float64 `yaml:"saturation"`
	LowThreshold   float64 `yaml:"low_threshold"`
	HighThreshold  float64 `yaml:"high_threshold"`
	LuminanceBoost float64 `yaml:"luminance_boost"`
}

// Render holds rasterizer settings.
type Render struct {
	FontSize   float64 `yaml:"font_size"`
	LineHeight float64 `yaml:"line_height"`
	FontFile   string  `yaml:"font_file"`
	Background string  `yaml:"background"`
}

// Video holds pipeline settings.
type Video struct {
	Backend       string  `yaml:"backend"`
	MaxFPS        float64 `yaml:"max_fps"`
	MaxFrameWidth int     `yaml:"max_frame_width"`
	IncludeAudio  bool    `yaml:"include_audio"`
	TempDir       string  `yaml:"temp_dir"`
}

// Server holds HTTP API settings.
type Server struct {
	Addr          string `yaml:"addr"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// Log holds logger settings.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	opts := img2ascii.DefaultOptions()
	return Config{
		Conversion: Conversion{
			Converter:      img2ascii.DensityName,
			Width:          opts.Width,
			Charset:        opts.Charset,
			EdgeCharset:    opts.EdgeCharset,
			FillCharset:    opts.FillCharset,
			Color:          opts.ColorMode.String(),
			Foreground:     "#ffffff",
			Saturation:     opts.Saturation,
			LowThreshold:   opts.LowThreshold,
			HighThreshold:  opts.HighThreshold,
			LuminanceBoost: opts.LuminanceBoost,
		},
		Render: Render{
			FontSize:   img2ascii.DefaultFontSize,
			LineHeight: img2ascii.DefaultLineHeight,
			Background: "#000000",
		},
		Video: Video{
			Backend:       BackendFFmpeg,
			MaxFrameWidth: video.DefaultMaxFrameWidth,
			IncludeAudio:  true,
		},
		Server: Server{
			Addr:          ":8080",
			MaxUploadSize: 32 << 20,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/img2ascii/config.yaml, or the
// platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".config", AppDir, FileName)
	}
	return filepath.Join(dir, AppDir, FileName)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.Options(); err != nil {
		return err
	}
	if c.Render.FontSize <= 0 || c.Render.LineHeight <= 0 {
		return errors.New("render: font_size and line_height must be positive")
	}
	if _, err := ParseHexColor(c.Render.Background); err != nil {
		return fmt.Errorf("render.background: %w", err)
	}
	switch c.Video.Backend {
	case BackendFFmpeg, BackendOpenCV:
	default:
		return fmt.Errorf("video.backend: unknown backend %q", c.Video.Backend)
	}
	if c.Video.MaxFPS < 0 || c.Video.MaxFrameWidth < 0 {
		return errors.New("video: max_fps and max_frame_width must not be negative")
	}
	return nil
}

// Options converts the conversion section to engine options.
func (c *Config) Options() (img2ascii.Options, error) {
	mode, err := img2ascii.ParseColorMode(c.Conversion.Color)
	if err != nil {
		return img2ascii.Options{}, err
	}
	fg, err := ParseHexColor(c.Conversion.Foreground)
	if err != nil {
		return img2ascii.Options{}, fmt.Errorf("conversion.foreground: %w", err)
	}
	opts := img2ascii.Options{
		Charset:        c.Conversion.Charset,
		EdgeCharset:    c.Conversion.EdgeCharset,
		FillCharset:    c.Conversion.FillCharset,
		Width:          c.Conversion.Width,
		ColorMode:      mode,
		Foreground:     fg,
		Saturation:     c.Conversion.Saturation,
		LowThreshold:   c.Conversion.LowThreshold,
		HighThreshold:  c.Conversion.HighThreshold,
		LuminanceBoost: c.Conversion.LuminanceBoost,
	}
	if err := opts.Validate(); err != nil {
		return img2ascii.Options{}, err
	}
	return opts, nil
}

// ParseHexColor parses "#rrggbb" or "rrggbb".
func ParseHexColor(s string) (imageutil.RGB, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	var c imageutil.RGB
	if len(s) != 6 {
		return c, fmt.Errorf("invalid color %q", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color %q", s)
	}
	return c, nil
}
