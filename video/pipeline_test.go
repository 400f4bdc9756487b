package video

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/imageutil"
)

// fakeTranscoder records every call the pipeline makes.
type fakeTranscoder struct {
	meta       Metadata
	start      int
	count      int
	extractErr error
	frameErr   map[int]error
	audioOK    bool
	audioErr   error
	encodeErr  error

	extractFPS    float64
	extractWidth  int
	fetched       []int
	stored        map[int][]byte
	audioCalls    int
	encodeCalls   int
	encodeReq     EncodeRequest
	discardCalls  int
	discardCtxErr error
}

func newFake(count int) *fakeTranscoder {
	return &fakeTranscoder{
		meta:   Metadata{Duration: 10, FPS: 30, Width: 64, Height: 48},
		start:  1,
		count:  count,
		stored: make(map[int][]byte),
	}
}

func (f *fakeTranscoder) Metadata(context.Context, string) (Metadata, error) {
	return f.meta, nil
}

func (f *fakeTranscoder) ExtractFrame(context.Context, string, float64) (*imageutil.RGBAImage, error) {
	return imageutil.CreateGradientImage(64, 48), nil
}

func (f *fakeTranscoder) ExtractAllFrames(_ context.Context, _ string, fps float64, maxWidth int, onProgress FractionFunc) (FrameSet, error) {
	f.extractFPS = fps
	f.extractWidth = maxWidth
	if f.extractErr != nil {
		return FrameSet{}, f.extractErr
	}
	onProgress(0.5)
	onProgress(1)
	return FrameSet{Start: f.start, Count: f.count}, nil
}

func (f *fakeTranscoder) Frame(_ context.Context, index int) (*imageutil.RGBAImage, error) {
	f.fetched = append(f.fetched, index)
	if err := f.frameErr[index]; err != nil {
		return nil, err
	}
	return imageutil.CreateGradientImage(64, 48), nil
}

func (f *fakeTranscoder) ExtractAudio(context.Context, string) (bool, error) {
	f.audioCalls++
	return f.audioOK, f.audioErr
}

func (f *fakeTranscoder) StoreEncodedFrame(_ context.Context, index int, data []byte) error {
	f.stored[index] = data
	return nil
}

func (f *fakeTranscoder) EncodeVideo(_ context.Context, req EncodeRequest, onProgress FractionFunc) ([]byte, error) {
	f.encodeCalls++
	f.encodeReq = req
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	onProgress(1)
	return []byte("mp4"), nil
}

func (f *fakeTranscoder) Discard(ctx context.Context) error {
	f.discardCalls++
	f.discardCtxErr = ctx.Err()
	return nil
}

func newTestPipeline(t *testing.T, f *fakeTranscoder, opts ...PipelineOption) *Pipeline {
	t.Helper()
	r, err := img2ascii.NewRasterizer(img2ascii.WithFontSize(6))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return NewPipeline(f, img2ascii.NewDefaultEngine(), r, opts...)
}

func runOptions() RunOptions {
	opts := img2ascii.DefaultOptions()
	opts.Width = 20
	return RunOptions{Conversion: opts}
}

func TestPipelineLoadAndPreview(t *testing.T) {
	f := newFake(3)
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, f.meta, s.Metadata)
	require.NotNil(t, s.Preview)
	assert.Equal(t, StateIdle, s.State())

	grid, err := p.Preview(ctx, s, 2.5, runOptions().Conversion)
	require.NoError(t, err)
	assert.Equal(t, 20, grid.Width)

	_, err = p.Preview(ctx, s, 11, runOptions().Conversion)
	assert.ErrorIs(t, err, img2ascii.ErrInvalidInput)

	_, err = p.Load(ctx, "")
	assert.ErrorIs(t, err, img2ascii.ErrInvalidInput)
}

func TestPipelineRunHonoursStartIndex(t *testing.T) {
	f := newFake(4)
	f.start = 7
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)

	var fractions []float64
	res, err := p.Run(ctx, s, runOptions(), func(pr Progress) {
		if pr.Phase == StateConverting {
			fractions = append(fractions, pr.Fraction)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, StateComplete, s.State())
	assert.Equal(t, []byte("mp4"), res.Video)
	assert.Equal(t, []int{7, 8, 9, 10}, f.fetched)
	assert.Len(t, f.stored, 4)
	for idx := 7; idx <= 10; idx++ {
		assert.NotEmpty(t, f.stored[idx], "frame %d not stored", idx)
	}
	assert.Equal(t, FrameSet{Start: 7, Count: 4}, f.encodeReq.Frames)
	assert.Equal(t, DefaultVideoCodec, f.encodeReq.Video)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, fractions)
	assert.Equal(t, DefaultMaxFrameWidth, f.extractWidth)
	assert.Equal(t, 1, f.discardCalls)
	assert.NoError(t, f.discardCtxErr)
	assert.Contains(t, res.Phases, StateConverting)
}

func TestPipelineCancelDuringFrameThree(t *testing.T) {
	f := newFake(10)
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)

	res, err := p.Run(ctx, s, runOptions(), func(pr Progress) {
		// Cancel arrives while frame 3 is about to be processed.
		if pr.Phase == StateConverting && pr.Fraction == 0.2 {
			s.Cancel()
		}
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, StateCancelled, s.State())
	assert.Equal(t, []int{1, 2}, f.fetched, "frames 3-10 must never be fetched")
	assert.Zero(t, f.encodeCalls)
	assert.Equal(t, 1, f.discardCalls)
	assert.Nil(t, res.Video)
}

func TestPipelineCancelledContext(t *testing.T) {
	f := newFake(5)
	p := newTestPipeline(t, f)

	s, err := p.Load(context.Background(), "clip.mp4")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Run(ctx, s, runOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, res.State)
	assert.Empty(t, f.fetched)
	assert.Equal(t, 1, f.discardCalls)
	assert.NoError(t, f.discardCtxErr, "cleanup must not inherit the cancelled context")
}

func TestPipelineNeverUpsamplesFPS(t *testing.T) {
	f := newFake(2)
	f.meta.FPS = 60
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)

	opts := runOptions()
	opts.FPS = 90
	res, err := p.Run(ctx, s, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 60.0, f.extractFPS)
	assert.Equal(t, 60.0, f.encodeReq.FPS)
	assert.Equal(t, 60.0, res.FPS)
}

func TestTargetFPS(t *testing.T) {
	tests := []struct {
		name                     string
		source, requested, limit float64
		want                     float64
	}{
		{"source", 30, 0, 0, 30},
		{"upsample rejected", 60, 90, 0, 60},
		{"reduced by request", 60, 24, 0, 24},
		{"reduced by cap", 60, 0, 25, 25},
		{"cap below request", 60, 30, 15, 15},
		{"unknown source", 0, 0, 0, 30},
		{"unknown source requested", 0, 12, 0, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetFPS(tt.source, tt.requested, tt.limit))
		})
	}
}

func TestPipelineGlobalFPSCap(t *testing.T) {
	f := newFake(1)
	f.meta.FPS = 60
	p := newTestPipeline(t, f, WithMaxFPS(12), WithMaxFrameWidth(320))
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)
	_, err = p.Run(ctx, s, runOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 12.0, f.extractFPS)
	assert.Equal(t, 320, f.extractWidth)
}

func TestPipelineAudioFailureIsNotFatal(t *testing.T) {
	f := newFake(2)
	f.meta.HasAudio = true
	f.audioErr = errors.New("no decoder")
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)

	opts := runOptions()
	opts.IncludeAudio = true
	var messages []string
	res, err := p.Run(ctx, s, opts, func(pr Progress) {
		if pr.Phase == StateExtractingAudio {
			messages = append(messages, pr.Message)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	assert.False(t, res.Audio)
	assert.False(t, f.encodeReq.IncludeAudio)
	assert.Equal(t, 1, f.audioCalls)
	assert.Contains(t, messages, "Audio extraction failed, continuing without audio")
}

func TestPipelineAudioIncluded(t *testing.T) {
	f := newFake(2)
	f.meta.HasAudio = true
	f.audioOK = true
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)

	opts := runOptions()
	opts.IncludeAudio = true
	res, err := p.Run(ctx, s, opts, nil)
	require.NoError(t, err)
	assert.True(t, res.Audio)
	assert.True(t, f.encodeReq.IncludeAudio)
	assert.Equal(t, DefaultAudioCodec, f.encodeReq.Audio)

	// Audio is skipped entirely when not requested.
	f2 := newFake(1)
	f2.meta.HasAudio = true
	p2 := newTestPipeline(t, f2)
	s2, err := p2.Load(ctx, "clip.mp4")
	require.NoError(t, err)
	_, err = p2.Run(ctx, s2, runOptions(), nil)
	require.NoError(t, err)
	assert.Zero(t, f2.audioCalls)
}

func TestPipelineCollaboratorFailure(t *testing.T) {
	boom := errors.New("disk full")
	tests := []struct {
		name  string
		setup func(*fakeTranscoder)
		phase State
	}{
		{"extract", func(f *fakeTranscoder) { f.extractErr = boom }, StateExtracting},
		{"frame", func(f *fakeTranscoder) { f.frameErr = map[int]error{2: boom} }, StateConverting},
		{"encode", func(f *fakeTranscoder) { f.encodeErr = boom }, StateEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake(3)
			tt.setup(f)
			p := newTestPipeline(t, f)
			ctx := context.Background()

			s, err := p.Load(ctx, "clip.mp4")
			require.NoError(t, err)

			res, err := p.Run(ctx, s, runOptions(), nil)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, boom)

			var phaseErr *PhaseError
			require.ErrorAs(t, err, &phaseErr)
			assert.Equal(t, tt.phase, phaseErr.Phase)
			var collabErr *CollaboratorError
			assert.ErrorAs(t, err, &collabErr)

			assert.Equal(t, StateFailed, s.State())
			assert.Equal(t, 1, f.discardCalls)
		})
	}
}

func TestPipelineRejectsInvalidOptions(t *testing.T) {
	f := newFake(3)
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)

	opts := runOptions()
	opts.Conversion.Width = 5
	_, err = p.Run(ctx, s, opts, nil)
	assert.ErrorIs(t, err, img2ascii.ErrInvalidInput)
	assert.Zero(t, f.discardCalls, "input errors are raised before any processing")
	assert.Empty(t, f.fetched)
}

func TestPipelineResolvesConverterBeforeExtraction(t *testing.T) {
	tests := []struct {
		name   string
		engine *img2ascii.Engine
		conv   string
		want   error
	}{
		{"unknown converter", img2ascii.NewDefaultEngine(), "braille", img2ascii.ErrUnknownConverter},
		{"no active converter", img2ascii.NewEngine(), "", img2ascii.ErrNoActiveConverter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake(3)
			r, err := img2ascii.NewRasterizer(img2ascii.WithFontSize(6))
			require.NoError(t, err)
			t.Cleanup(func() { r.Close() })
			p := NewPipeline(f, tt.engine, r)
			ctx := context.Background()

			s, err := p.Load(ctx, "clip.mp4")
			require.NoError(t, err)

			opts := runOptions()
			opts.Converter = tt.conv
			res, err := p.Run(ctx, s, opts, nil)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			var phaseErr *PhaseError
			assert.False(t, errors.As(err, &phaseErr), "resolution errors are not phase failures")

			assert.Zero(t, f.extractFPS, "frames must not be extracted")
			assert.Zero(t, f.discardCalls)
			assert.Empty(t, f.fetched)
		})
	}
}

func TestPipelineConverterOverride(t *testing.T) {
	f := newFake(2)
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)

	opts := runOptions()
	opts.Converter = img2ascii.EdgeName
	res, err := p.Run(ctx, s, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, res.State)
	assert.Len(t, f.stored, 2)
	assert.Equal(t, img2ascii.DensityName, p.engine.Active(), "override must not change the selection")
}

func TestPipelineNoFrames(t *testing.T) {
	f := newFake(0)
	p := newTestPipeline(t, f)
	ctx := context.Background()

	s, err := p.Load(ctx, "clip.mp4")
	require.NoError(t, err)
	_, err = p.Run(ctx, s, runOptions(), nil)
	assert.ErrorIs(t, err, ErrNoFrames)
	assert.Equal(t, 1, f.discardCalls)
}
