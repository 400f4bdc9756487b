package main

import (
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/internal/config"
	"github.com/wbrown/img2ascii/internal/logging"
	"github.com/wbrown/img2ascii/internal/metrics"
)

// app holds state shared by every subcommand once the root's pre-run has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg    *config.Config
	logger hclog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "img2ascii",
		Short: "Convert images and videos to ASCII art",
		Long: `img2ascii converts raster images and whole videos to ASCII art.

It supports:
  - Density conversion, mapping brightness to a character ramp
  - Edge conversion, drawing Canny edges over a filled background
  - Monochrome or per-cell color output with saturation control
  - Text, ANSI, PNG and WebP output
  - Frame-by-frame video conversion through ffmpeg or OpenCV
  - An HTTP API for conversions`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "Path to the configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Log in JSON")

	root.AddCommand(
		newImageCmd(a),
		newVideoCmd(a),
		newPreviewCmd(a),
		newConvertersCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// init loads the config file and builds the root logger. Flags override
// the file.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = a.logJSON
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Options{
		Level:  cfg.Log.Level,
		JSON:   cfg.Log.JSON,
		Output: cmd.ErrOrStderr(),
	})
	a.logger.Debug("loaded configuration", "path", a.configPath)
	return nil
}

// engine builds the default engine with metrics attached and the
// configured converter selected.
func (a *app) engine() (*img2ascii.Engine, error) {
	e := img2ascii.NewDefaultEngine(
		img2ascii.WithLogger(a.logger.Named("engine")),
		img2ascii.WithLifecycle(metrics.Chain(nil)),
	)
	if err := e.Select(a.cfg.Conversion.Converter); err != nil {
		return nil, err
	}
	return e, nil
}

// rasterizerOptions maps the render section to rasterizer options.
func (a *app) rasterizerOptions() ([]img2ascii.RasterizerOption, error) {
	bg, err := config.ParseHexColor(a.cfg.Render.Background)
	if err != nil {
		return nil, err
	}
	opts := []img2ascii.RasterizerOption{
		img2ascii.WithFontSize(a.cfg.Render.FontSize),
		img2ascii.WithLineHeight(a.cfg.Render.LineHeight),
		img2ascii.WithBackground(bg),
	}
	if a.cfg.Render.FontFile != "" {
		opts = append(opts, img2ascii.WithFontFile(a.cfg.Render.FontFile))
	}
	return opts, nil
}

func (a *app) rasterizer() (*img2ascii.Rasterizer, error) {
	opts, err := a.rasterizerOptions()
	if err != nil {
		return nil, err
	}
	return img2ascii.NewRasterizer(opts...)
}
