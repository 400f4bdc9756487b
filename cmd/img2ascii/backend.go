package main

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/wbrown/img2ascii/internal/config"
	"github.com/wbrown/img2ascii/video"
	"github.com/wbrown/img2ascii/video/ffmpeg"
)

// transcoderFactory builds a video backend from the video config section.
type transcoderFactory func(cfg config.Video, logger hclog.Logger) (video.Transcoder, error)

// backends holds the transcoders compiled into this binary. The OpenCV
// backend registers itself when built with -tags gocv.
var backends = map[string]transcoderFactory{
	config.BackendFFmpeg: func(cfg config.Video, logger hclog.Logger) (video.Transcoder, error) {
		opts := []ffmpeg.Option{ffmpeg.WithLogger(logger)}
		if cfg.TempDir != "" {
			opts = append(opts, ffmpeg.WithTempDir(cfg.TempDir))
		}
		return ffmpeg.New(opts...)
	},
}

func (a *app) transcoder(backend string) (video.Transcoder, error) {
	factory, ok := backends[backend]
	if !ok {
		if backend == config.BackendOpenCV {
			return nil, fmt.Errorf("backend %q is not available in this build; rebuild with -tags gocv", backend)
		}
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	return factory(a.cfg.Video, a.logger.Named(backend))
}
