package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wbrown/img2ascii/video"
)

// probeResult is the subset of `ffprobe -of json` output we read.
type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Metadata runs ffprobe on source.
func (t *Transcoder) Metadata(ctx context.Context, source string) (video.Metadata, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "stream=codec_type,width,height,r_frame_rate,avg_frame_rate:format=duration",
		"-of", "json",
		source,
	)
	output, err := cmd.Output()
	if err != nil {
		return video.Metadata{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	meta, err := parseProbe(output)
	if err != nil {
		return video.Metadata{}, err
	}
	t.logger.Debug("probed source", "source", source, "fps", meta.FPS, "duration", meta.Duration)
	return meta, nil
}

func parseProbe(output []byte) (video.Metadata, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return video.Metadata{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var meta video.Metadata
	foundVideo := false
	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			meta.Width, meta.Height = s.Width, s.Height
			meta.FPS = parseRate(s.AvgFrameRate)
			if meta.FPS == 0 {
				meta.FPS = parseRate(s.RFrameRate)
			}
		case "audio":
			meta.HasAudio = true
		}
	}
	if !foundVideo {
		return video.Metadata{}, fmt.Errorf("no video streams found")
	}

	if result.Format.Duration != "" {
		d, err := strconv.ParseFloat(result.Format.Duration, 64)
		if err == nil {
			meta.Duration = d
		}
	}
	return meta, nil
}

// parseRate parses ffprobe rates such as "30000/1001" or "25". Invalid or
// zero-denominator rates yield 0.
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
