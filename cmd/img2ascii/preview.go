package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wbrown/img2ascii/video"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		conv    conversionFlags
		output  string
		at      float64
		backend string
	)

	cmd := &cobra.Command{
		Use:   "preview <video>",
		Short: "Convert a single frame of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := conv.options(cmd.Flags(), a.cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backend") {
				a.cfg.Video.Backend = backend
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			t, err := a.transcoder(a.cfg.Video.Backend)
			if err != nil {
				return err
			}
			defer func() {
				if err := t.Discard(context.WithoutCancel(cmd.Context())); err != nil {
					a.logger.Warn("discarding temporary files failed", "error", err)
				}
			}()

			p := video.NewPipeline(t, engine, nil, video.WithLogger(a.logger.Named("pipeline")))
			session, err := p.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			grid, err := p.Preview(cmd.Context(), session, at, opts)
			if err != nil {
				return err
			}
			return a.writeGrid(cmd.OutOrStdout(), grid, output)
		},
	}

	conv.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.txt, .ans, .png, .webp)")
	cmd.Flags().Float64Var(&at, "at", 0, "Time of the frame in seconds")
	cmd.Flags().StringVar(&backend, "backend", "", "Video backend (ffmpeg, opencv)")
	return cmd
}
