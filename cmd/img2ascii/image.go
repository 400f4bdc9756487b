package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/blacktop/go-termimg"
	"github.com/spf13/cobra"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/imageutil"
)

func newImageCmd(a *app) *cobra.Command {
	var (
		conv           conversionFlags
		output         string
		show           bool
		maxSourceWidth int
	)

	cmd := &cobra.Command{
		Use:   "image <input>",
		Short: "Convert an image",
		Long: `Convert an image to ASCII art.

Without -o the text is written to stdout, with ANSI colors in color mode.
The output extension selects the format: .txt, .ans, .png or .webp.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := conv.options(cmd.Flags(), a.cfg)
			if err != nil {
				return err
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}

			img, err := imageutil.LoadImage(args[0])
			if err != nil {
				return err
			}
			if maxSourceWidth > 0 {
				before := img.Width()
				img = imageutil.ShrinkToWidth(img, maxSourceWidth)
				a.logger.Debug("shrunk source", "from", before, "to", img.Width())
			}

			grid, err := engine.Convert(img, opts)
			if err != nil {
				return err
			}
			if show {
				return a.show(cmd.OutOrStdout(), grid)
			}
			return a.writeGrid(cmd.OutOrStdout(), grid, output)
		},
	}

	conv.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.txt, .ans, .png, .webp)")
	cmd.Flags().BoolVar(&show, "show", false, "Display the rendered PNG in the terminal")
	cmd.Flags().IntVar(&maxSourceWidth, "max-source-width", 0, "Shrink the source to this many pixels wide before converting")
	return cmd
}

// show rasterizes grid and draws it with the terminal's graphics
// protocol.
func (a *app) show(w io.Writer, grid *img2ascii.CharacterGrid) error {
	data, err := a.renderGrid(grid, outputPNG)
	if err != nil {
		return err
	}
	ti, err := termimg.From(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("preparing terminal image: %w", err)
	}
	protocol := termimg.DetectProtocol()
	a.logger.Debug("terminal graphics", "protocol", protocol)
	ti.Protocol(protocol).
		Width(grid.Width).
		Scale(termimg.ScaleFit)

	rendered, err := ti.Render()
	if err != nil {
		return fmt.Errorf("rendering to terminal: %w", err)
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}
