// Package ffmpeg implements video.Transcoder with the ffmpeg and ffprobe
// executables. Each Transcoder owns one private workspace directory that
// Discard removes.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/wbrown/img2ascii/imageutil"
	"github.com/wbrown/img2ascii/video"
)

const (
	framePattern = "frame_%06d.png"
	framePrefix  = "frame_"
	frameSuffix  = ".png"

	extractDir = "extracted"
	encodedDir = "encoded"
	audioFile  = "audio.m4a"
	outputFile = "output.mp4"
)

// Transcoder drives ffmpeg. It is not safe for concurrent use.
type Transcoder struct {
	ffmpeg  string
	ffprobe string
	tempDir string
	logger  hclog.Logger

	workDir    string
	durationUs int64
	frames     video.FrameSet
}

var _ video.Transcoder = (*Transcoder)(nil)

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(t *Transcoder) {
		t.logger = logger
	}
}

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(t *Transcoder) {
		t.ffmpeg = ffmpeg
		t.ffprobe = ffprobe
	}
}

// WithTempDir sets the parent of the workspace directory.
func WithTempDir(dir string) Option {
	return func(t *Transcoder) {
		t.tempDir = dir
	}
}

// New creates a Transcoder after checking both executables are on PATH.
func New(opts ...Option) (*Transcoder, error) {
	t := &Transcoder{
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
		tempDir: os.TempDir(),
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	for _, bin := range []*string{&t.ffmpeg, &t.ffprobe} {
		path, err := exec.LookPath(*bin)
		if err != nil {
			return nil, fmt.Errorf("%s not found: %w", *bin, err)
		}
		*bin = path
	}
	return t, nil
}

// workspace returns the workspace directory, creating it on first use.
func (t *Transcoder) workspace() (string, error) {
	if t.workDir != "" {
		return t.workDir, nil
	}
	dir := filepath.Join(t.tempDir, "img2ascii-"+uuid.New().String())
	for _, sub := range []string{extractDir, encodedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("creating workspace: %w", err)
		}
	}
	t.workDir = dir
	t.logger.Debug("created workspace", "dir", dir)
	return dir, nil
}

// ExtractFrame decodes a single PNG frame at the given time through a pipe.
func (t *Transcoder) ExtractFrame(ctx context.Context, source string, seconds float64) (*imageutil.RGBAImage, error) {
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-hide_banner", "-v", "error",
		"-ss", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-i", source,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w, stderr: %s", err, lastLines(stderr.String(), 5))
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no frame at %.3fs", seconds)
	}
	return imageutil.DecodeImage(bytes.NewReader(output))
}

// ExtractAllFrames writes every frame at fps into the workspace, scaled
// down to maxWidth with the aspect ratio kept and an even height.
func (t *Transcoder) ExtractAllFrames(ctx context.Context, source string, fps float64, maxWidth int, onProgress video.FractionFunc) (video.FrameSet, error) {
	dir, err := t.workspace()
	if err != nil {
		return video.FrameSet{}, err
	}
	if meta, err := t.Metadata(ctx, source); err == nil {
		t.durationUs = int64(meta.Duration * 1e6)
	}

	args := []string{
		"-i", source,
		"-vf", extractFilter(fps, maxWidth),
		"-an",
		filepath.Join(dir, extractDir, framePattern),
	}
	if err := t.runWithProgress(ctx, t.durationUs, onProgress, args...); err != nil {
		return video.FrameSet{}, err
	}

	frames, err := scanFrames(filepath.Join(dir, extractDir))
	if err != nil {
		return video.FrameSet{}, err
	}
	t.frames = frames
	t.logger.Debug("extracted frames", "start", frames.Start, "count", frames.Count, "fps", fps)
	return frames, nil
}

func extractFilter(fps float64, maxWidth int) string {
	f := "fps=" + strconv.FormatFloat(fps, 'f', -1, 64)
	if maxWidth > 0 {
		f += fmt.Sprintf(",scale='min(%d,iw)':-2", maxWidth)
	}
	return f
}

// scanFrames finds the contiguous frame index range present in dir.
func scanFrames(dir string) (video.FrameSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return video.FrameSet{}, err
	}
	var indices []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, framePrefix) || !strings.HasSuffix(name, frameSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, framePrefix), frameSuffix))
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	if len(indices) == 0 {
		return video.FrameSet{}, video.ErrNoFrames
	}
	sort.Ints(indices)
	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			return video.FrameSet{}, fmt.Errorf("gap in extracted frames after %d", indices[i-1])
		}
	}
	return video.FrameSet{Start: indices[0], Count: len(indices)}, nil
}

func (t *Transcoder) framePath(sub string, index int) string {
	return filepath.Join(t.workDir, sub, fmt.Sprintf(framePattern, index))
}

// Frame loads an extracted frame.
func (t *Transcoder) Frame(_ context.Context, index int) (*imageutil.RGBAImage, error) {
	if t.workDir == "" || index < t.frames.Start || index > t.frames.Last() {
		return nil, fmt.Errorf("frame %d not extracted", index)
	}
	return imageutil.LoadImage(t.framePath(extractDir, index))
}

// StoreEncodedFrame writes a converted frame into the workspace.
func (t *Transcoder) StoreEncodedFrame(_ context.Context, index int, data []byte) error {
	if _, err := t.workspace(); err != nil {
		return err
	}
	return os.WriteFile(t.framePath(encodedDir, index), data, 0o644)
}

// ExtractAudio re-encodes the first audio track to AAC in the workspace.
func (t *Transcoder) ExtractAudio(ctx context.Context, source string) (bool, error) {
	dir, err := t.workspace()
	if err != nil {
		return false, err
	}
	path := filepath.Join(dir, audioFile)
	err = t.runWithProgress(ctx, t.durationUs, nil,
		"-i", source,
		"-vn",
		"-map", "0:a:0",
		"-c:a", video.DefaultAudioCodec.Codec,
		"-b:a", video.DefaultAudioCodec.Bitrate,
		path,
	)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Size() > 0, nil
}

// EncodeVideo muxes the stored frames into an MP4 and returns its bytes.
func (t *Transcoder) EncodeVideo(ctx context.Context, req video.EncodeRequest, onProgress video.FractionFunc) ([]byte, error) {
	if t.workDir == "" {
		return nil, errors.New("no frames stored")
	}
	out := filepath.Join(t.workDir, outputFile)
	args := encodeArgs(t.workDir, req, out)

	var durationUs int64
	if req.FPS > 0 {
		durationUs = int64(float64(req.Frames.Count) / req.FPS * 1e6)
	}
	if err := t.runWithProgress(ctx, durationUs, onProgress, args...); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

// encodeArgs builds the ffmpeg arguments for EncodeVideo. The pad filter
// rounds odd dimensions up, which yuv420p requires.
func encodeArgs(workDir string, req video.EncodeRequest, out string) []string {
	rate := strconv.FormatFloat(req.FPS, 'f', -1, 64)
	args := []string{
		"-framerate", rate,
		"-start_number", strconv.Itoa(req.Frames.Start),
		"-i", filepath.Join(workDir, encodedDir, framePattern),
	}
	if req.IncludeAudio {
		args = append(args, "-i", filepath.Join(workDir, audioFile))
	}
	args = append(args,
		"-frames:v", strconv.Itoa(req.Frames.Count),
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", req.Video.Codec,
		"-preset", req.Video.Preset,
		"-crf", strconv.Itoa(req.Video.CRF),
		"-pix_fmt", req.Video.PixelFormat,
	)
	if req.IncludeAudio {
		args = append(args,
			"-c:a", req.Audio.Codec,
			"-b:a", req.Audio.Bitrate,
			"-shortest",
		)
	}
	return append(args, "-movflags", "+faststart", out)
}

// Discard removes the workspace. It is safe to call more than once.
func (t *Transcoder) Discard(_ context.Context) error {
	dir := t.workDir
	t.workDir = ""
	t.frames = video.FrameSet{}
	t.durationUs = 0
	if dir == "" {
		return nil
	}
	t.logger.Debug("removing workspace", "dir", dir)
	return os.RemoveAll(dir)
}
