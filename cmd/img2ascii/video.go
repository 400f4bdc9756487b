package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/wbrown/img2ascii/internal/metrics"
	"github.com/wbrown/img2ascii/video"
)

// errCancelled makes a cancelled run exit non-zero.
var errCancelled = errors.New("conversion cancelled")

func newVideoCmd(a *app) *cobra.Command {
	var (
		conv    conversionFlags
		output  string
		fps     float64
		noAudio bool
		plain   bool
		backend string
	)

	cmd := &cobra.Command{
		Use:   "video <input>",
		Short: "Convert every frame of a video",
		Long: `Convert every frame of a video to ASCII art and re-encode the result.

Frames are extracted at the source frame rate, lowered by --fps or the
configured max_fps, converted, rasterized and encoded as H.264 MP4. The
source audio track is copied when present. Press ctrl+c to cancel.`,
		Args: cobra.ExactArgs(1),
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
			raster, err := a.rasterizer()
			if err != nil {
				return err
			}
			defer raster.Close()

			t, err := a.transcoder(a.cfg.Video.Backend)
			if err != nil {
				return err
			}
			p := video.NewPipeline(t, engine, raster,
				video.WithLogger(a.logger.Named("pipeline")),
				video.WithMaxFPS(a.cfg.Video.MaxFPS),
				video.WithMaxFrameWidth(a.cfg.Video.MaxFrameWidth),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, err := p.Load(ctx, args[0])
			if err != nil {
				return err
			}
			runOpts := video.RunOptions{
				Conversion:   opts,
				FPS:          fps,
				IncludeAudio: a.cfg.Video.IncludeAudio && !noAudio,
			}

			var res *video.Result
			if plain {
				res, err = p.Run(ctx, session, runOpts, metrics.CountFrames(newPlainReporter(a.logger).report))
			} else {
				res, err = a.runInteractive(ctx, p, session, runOpts, cmd.ErrOrStderr())
			}
			metrics.ObserveRun(res, err)
			if err != nil {
				return err
			}
			return a.writeResult(res, output)
		},
	}

	conv.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output MP4 file")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Output frame rate, never above the source rate")
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "Drop the audio track")
	cmd.Flags().BoolVar(&plain, "plain", false, "Log progress instead of drawing a progress bar")
	cmd.Flags().StringVar(&backend, "backend", "", "Video backend (ffmpeg, opencv)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) writeResult(res *video.Result, path string) error {
	if res.State == video.StateCancelled {
		return errCancelled
	}
	if err := os.WriteFile(path, res.Video, 0o644); err != nil {
		return err
	}
	a.logger.Info("wrote video", "path", path, "bytes", len(res.Video),
		"frames", res.Frames.Count, "fps", res.FPS, "audio", res.Audio)
	return nil
}

// plainReporter logs pipeline progress at every phase change and every
// tenth of a phase.
type plainReporter struct {
	logger hclog.Logger
	phase  video.State
	step   int
}

func newPlainReporter(logger hclog.Logger) *plainReporter {
	return &plainReporter{logger: logger, phase: video.StateIdle, step: -1}
}

func (r *plainReporter) report(p video.Progress) {
	step := int(p.Fraction * 10)
	if p.Phase == r.phase && step == r.step {
		return
	}
	r.phase, r.step = p.Phase, step
	r.logger.Info(phaseLabel(p.Phase), "progress", int(p.Fraction*100), "message", p.Message)
}
