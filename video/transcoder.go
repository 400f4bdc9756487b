// Package video runs ASCII conversion over every frame of a video. Frame
// extraction, storage and final encoding are delegated to a Transcoder.
package video

import (
	"context"

	"github.com/wbrown/img2ascii/imageutil"
)

// Metadata describes a video source.
type Metadata struct {
	Duration float64 `json:"duration"` // seconds
	FPS      float64 `json:"fps"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	HasAudio bool    `json:"has_audio"`
}

// FrameSet is the contiguous run of 1-based frame indices produced by
// an extraction. Start is whatever index the transcoder assigned to the
// first frame and need not be 1.
type FrameSet struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// Index returns the frame index of the i-th frame, counting from 1.
func (f FrameSet) Index(i int) int {
	return f.Start + i - 1
}

// Last returns the index of the final frame.
func (f FrameSet) Last() int {
	return f.Start + f.Count - 1
}

// VideoCodec is the video stream configuration requested from EncodeVideo.
type VideoCodec struct {
	Codec       string
	Preset      string
	CRF         int
	PixelFormat string
}

// AudioCodec is the audio stream configuration requested from EncodeVideo.
type AudioCodec struct {
	Codec   string
	Bitrate string
}

var (
	// DefaultVideoCodec is H.264 at the medium preset, CRF 23, yuv420p.
	DefaultVideoCodec = VideoCodec{Codec: "libx264", Preset: "medium", CRF: 23, PixelFormat: "yuv420p"}
	// DefaultAudioCodec is AAC at 128 kbit/s.
	DefaultAudioCodec = AudioCodec{Codec: "aac", Bitrate: "128k"}
)

// EncodeRequest asks a Transcoder to encode the stored frames.
type EncodeRequest struct {
	Frames       FrameSet
	FPS          float64
	IncludeAudio bool
	Video        VideoCodec
	Audio        AudioCodec
}

// FractionFunc receives a completion fraction in [0, 1].
type FractionFunc func(fraction float64)

// Transcoder is the media collaborator the pipeline drives. An instance
// holds the temporary workspace for one session at a time; Discard
// removes everything it has written.
type Transcoder interface {
	// Metadata probes the source.
	Metadata(ctx context.Context, source string) (Metadata, error)
	// ExtractFrame decodes the frame shown at the given time.
	ExtractFrame(ctx context.Context, source string, seconds float64) (*imageutil.RGBAImage, error)
	// ExtractAllFrames decodes the whole source at fps, scaled down to at
	// most maxWidth pixels wide, into the workspace.
	ExtractAllFrames(ctx context.Context, source string, fps float64, maxWidth int, onProgress FractionFunc) (FrameSet, error)
	// Frame loads an extracted frame.
	Frame(ctx context.Context, index int) (*imageutil.RGBAImage, error)
	// ExtractAudio copies the source's audio track into the workspace.
	// It reports false when no track could be extracted.
	ExtractAudio(ctx context.Context, source string) (bool, error)
	// StoreEncodedFrame saves a converted frame image under index.
	StoreEncodedFrame(ctx context.Context, index int, data []byte) error
	// EncodeVideo muxes the stored frames, and the audio track if
	// requested, into a video container.
	EncodeVideo(ctx context.Context, req EncodeRequest, onProgress FractionFunc) ([]byte, error)
	// Discard removes every temporary artifact.
	Discard(ctx context.Context) error
}
