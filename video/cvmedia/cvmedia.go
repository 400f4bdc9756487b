//go:build gocv

// Package cvmedia implements video.Transcoder on OpenCV through gocv. It
// decodes and encodes video streams only; ExtractAudio always reports
// false.
package cvmedia

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gocv.io/x/gocv"

	"github.com/wbrown/img2ascii/imageutil"
	"github.com/wbrown/img2ascii/video"
)

const (
	framePattern = "frame_%06d.png"
	outputFile   = "output.mp4"

	// DefaultFourCC is the codec passed to the OpenCV video writer.
	DefaultFourCC = "avc1"
)

// Transcoder decodes with gocv.VideoCapture and encodes with
// gocv.VideoWriter. It is not safe for concurrent use.
type Transcoder struct {
	tempDir string
	fourcc  string
	logger  hclog.Logger

	workDir string
	frames  video.FrameSet
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

// WithTempDir sets the parent of the workspace directory.
func WithTempDir(dir string) Option {
	return func(t *Transcoder) {
		t.tempDir = dir
	}
}

// WithFourCC sets the writer codec, e.g. "mp4v" when OpenCV lacks H.264.
func WithFourCC(fourcc string) Option {
	return func(t *Transcoder) {
		t.fourcc = fourcc
	}
}

// New creates a Transcoder.
func New(opts ...Option) *Transcoder {
	t := &Transcoder{
		tempDir: os.TempDir(),
		fourcc:  DefaultFourCC,
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func open(source string) (*gocv.VideoCapture, error) {
	vc, err := gocv.VideoCaptureFile(source)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("could not open %s", source)
	}
	return vc, nil
}

// Metadata reads stream properties. OpenCV does not expose audio tracks,
// so HasAudio is always false.
func (t *Transcoder) Metadata(_ context.Context, source string) (video.Metadata, error) {
	vc, err := open(source)
	if err != nil {
		return video.Metadata{}, err
	}
	defer vc.Close()

	fps := vc.Get(gocv.VideoCaptureFPS)
	count := vc.Get(gocv.VideoCaptureFrameCount)
	meta := video.Metadata{
		FPS:    fps,
		Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
	if fps > 0 {
		meta.Duration = count / fps
	}
	return meta, nil
}

// ExtractFrame seeks to the given time and decodes one frame.
func (t *Transcoder) ExtractFrame(_ context.Context, source string, seconds float64) (*imageutil.RGBAImage, error) {
	vc, err := open(source)
	if err != nil {
		return nil, err
	}
	defer vc.Close()

	vc.Set(gocv.VideoCapturePosMsec, seconds*1000)
	mat := gocv.NewMat()
	defer mat.Close()
	if ok := vc.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("no frame at %.3fs", seconds)
	}
	return matToImage(mat)
}

func matToImage(mat gocv.Mat) (*imageutil.RGBAImage, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}
	return imageutil.RGBAImageFromImage(img), nil
}

func (t *Transcoder) workspace() (string, error) {
	if t.workDir != "" {
		return t.workDir, nil
	}
	dir := filepath.Join(t.tempDir, "img2ascii-cv-"+uuid.New().String())
	for _, sub := range []string{"extracted", "encoded"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("creating workspace: %w", err)
		}
	}
	t.workDir = dir
	return dir, nil
}

func (t *Transcoder) framePath(sub string, index int) string {
	return filepath.Join(t.workDir, sub, fmt.Sprintf(framePattern, index))
}

// ExtractAllFrames decodes the source sequentially, keeping frames at the
// target rate. Frames wider than maxWidth are shrunk with Lanczos
// resampling. Indices start at 1.
func (t *Transcoder) ExtractAllFrames(ctx context.Context, source string, fps float64, maxWidth int, onProgress video.FractionFunc) (video.FrameSet, error) {
	if _, err := t.workspace(); err != nil {
		return video.FrameSet{}, err
	}
	vc, err := open(source)
	if err != nil {
		return video.FrameSet{}, err
	}
	defer vc.Close()

	srcFPS := vc.Get(gocv.VideoCaptureFPS)
	total := vc.Get(gocv.VideoCaptureFrameCount)
	step := 1.0
	if srcFPS > 0 && fps > 0 && fps < srcFPS {
		step = srcFPS / fps
	}

	mat := gocv.NewMat()
	defer mat.Close()

	next := 0.0
	written := 0
	for read := 0; ; read++ {
		if err := ctx.Err(); err != nil {
			return video.FrameSet{}, err
		}
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			break
		}
		if float64(read) < math.Floor(next) {
			continue
		}
		next += step

		img, err := matToImage(mat)
		if err != nil {
			return video.FrameSet{}, fmt.Errorf("decoding frame %d: %w", read, err)
		}
		img = imageutil.ShrinkToWidth(img, maxWidth)

		written++
		if err := imageutil.SaveImage(img, t.framePath("extracted", written)); err != nil {
			return video.FrameSet{}, err
		}
		if onProgress != nil && total > 0 {
			onProgress(math.Min(1, float64(read+1)/total))
		}
	}
	if written == 0 {
		return video.FrameSet{}, video.ErrNoFrames
	}
	if onProgress != nil {
		onProgress(1)
	}
	t.frames = video.FrameSet{Start: 1, Count: written}
	t.logger.Debug("extracted frames", "count", written, "fps", fps)
	return t.frames, nil
}

// Frame loads an extracted frame.
func (t *Transcoder) Frame(_ context.Context, index int) (*imageutil.RGBAImage, error) {
	if t.workDir == "" || index < t.frames.Start || index > t.frames.Last() {
		return nil, fmt.Errorf("frame %d not extracted", index)
	}
	return imageutil.LoadImage(t.framePath("extracted", index))
}

// ExtractAudio is unsupported by OpenCV.
func (t *Transcoder) ExtractAudio(context.Context, string) (bool, error) {
	t.logger.Debug("audio extraction unsupported by opencv backend")
	return false, nil
}

// StoreEncodedFrame writes a converted frame into the workspace.
func (t *Transcoder) StoreEncodedFrame(_ context.Context, index int, data []byte) error {
	if _, err := t.workspace(); err != nil {
		return err
	}
	return os.WriteFile(t.framePath("encoded", index), data, 0o644)
}

// EncodeVideo writes the stored frames in order with gocv.VideoWriter.
// The request's codec settings are ignored beyond the frame rate; OpenCV
// picks its own quality for the configured FourCC.
func (t *Transcoder) EncodeVideo(ctx context.Context, req video.EncodeRequest, onProgress video.FractionFunc) ([]byte, error) {
	if t.workDir == "" || req.Frames.Count < 1 {
		return nil, errors.New("no frames stored")
	}
	out := filepath.Join(t.workDir, outputFile)
	if err := t.writeVideo(ctx, out, req, onProgress); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

func (t *Transcoder) writeVideo(ctx context.Context, out string, req video.EncodeRequest, onProgress video.FractionFunc) error {
	var writer *gocv.VideoWriter
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	for i := 1; i <= req.Frames.Count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := req.Frames.Index(i)
		mat := gocv.IMRead(t.framePath("encoded", idx), gocv.IMReadColor)
		if mat.Empty() {
			return fmt.Errorf("could not read encoded frame %d", idx)
		}
		if writer == nil {
			w, err := gocv.VideoWriterFile(out, t.fourcc, req.FPS, mat.Cols(), mat.Rows(), true)
			if err != nil {
				mat.Close()
				return fmt.Errorf("opening video writer: %w", err)
			}
			writer = w
		}
		err := writer.Write(mat)
		mat.Close()
		if err != nil {
			return fmt.Errorf("writing frame %d: %w", idx, err)
		}
		if onProgress != nil {
			onProgress(float64(i) / float64(req.Frames.Count))
		}
	}
	return nil
}

// Discard removes the workspace.
func (t *Transcoder) Discard(context.Context) error {
	dir := t.workDir
	t.workDir = ""
	t.frames = video.FrameSet{}
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
