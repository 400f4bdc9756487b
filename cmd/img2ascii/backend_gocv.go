//go:build gocv

package main

import (
	"github.com/hashicorp/go-hclog"

	"github.com/wbrown/img2ascii/internal/config"
	"github.com/wbrown/img2ascii/video"
	"github.com/wbrown/img2ascii/video/cvmedia"
)

func init() {
	backends[config.BackendOpenCV] = func(cfg config.Video, logger hclog.Logger) (video.Transcoder, error) {
		opts := []cvmedia.Option{cvmedia.WithLogger(logger)}
		if cfg.TempDir != "" {
			opts = append(opts, cvmedia.WithTempDir(cfg.TempDir))
		}
		return cvmedia.New(opts...), nil
	}
}
