package video

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/wbrown/img2ascii"
)

// Pipeline defaults.
const (
	DefaultMaxFrameWidth = 640
	// fallbackFPS is used when the source does not report a frame rate
	// and nothing was requested.
	fallbackFPS = 30.0
)

// Progress is delivered to a ProgressFunc during Run.
type Progress struct {
	Phase    State
	Fraction float64
	Message  string
}

// ProgressFunc receives run progress synchronously on the pipeline's
// goroutine.
type ProgressFunc func(Progress)

// RunOptions configure a single run.
type RunOptions struct {
	Conversion img2ascii.Options
	// Converter overrides the engine's active converter when non-empty.
	Converter string
	// FPS requests a lower output frame rate. Zero keeps the source rate.
	// Requests above the source rate are ignored.
	FPS          float64
	IncludeAudio bool
}

// Result is the outcome of a run that completed or was cancelled.
type Result struct {
	State  State
	Video  []byte
	Frames FrameSet
	FPS    float64
	Audio  bool
	// Phases holds the wall time spent in each phase that ran.
	Phases map[State]time.Duration
}

// Pipeline converts whole videos. Runs are serialized because every frame
// shares one rasterizer surface.
type Pipeline struct {
	transcoder Transcoder
	engine     *img2ascii.Engine
	rasterizer *img2ascii.Rasterizer

	logger        hclog.Logger
	maxFPS        float64
	maxFrameWidth int

	mu sync.Mutex
}

// PipelineOption is a functional option for configuring a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger hclog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMaxFPS caps the extraction frame rate for every run. Zero disables
// the cap.
func WithMaxFPS(fps float64) PipelineOption {
	return func(p *Pipeline) {
		p.maxFPS = fps
	}
}

// WithMaxFrameWidth bounds the pixel width of extracted frames.
func WithMaxFrameWidth(width int) PipelineOption {
	return func(p *Pipeline) {
		p.maxFrameWidth = width
	}
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(t Transcoder, engine *img2ascii.Engine, r *img2ascii.Rasterizer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		transcoder:    t,
		engine:        engine,
		rasterizer:    r,
		logger:        hclog.NewNullLogger(),
		maxFrameWidth: DefaultMaxFrameWidth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TargetFPS picks the extraction frame rate: the source rate, lowered by
// a positive request or cap but never raised.
func TargetFPS(source, requested, maxFPS float64) float64 {
	fps := source
	if fps <= 0 {
		fps = requested
		if fps <= 0 {
			fps = fallbackFPS
		}
	}
	if requested > 0 && requested < fps {
		fps = requested
	}
	if maxFPS > 0 && maxFPS < fps {
		fps = maxFPS
	}
	return fps
}

// Load probes source and grabs its first frame as a preview.
func (p *Pipeline) Load(ctx context.Context, source string) (*Session, error) {
	if source == "" {
		return nil, &img2ascii.InputError{Field: "source", Reason: "empty path"}
	}
	meta, err := p.transcoder.Metadata(ctx, source)
	if err != nil {
		return nil, collab("metadata", err)
	}
	preview, err := p.transcoder.ExtractFrame(ctx, source, 0)
	if err != nil {
		return nil, collab("extract preview", err)
	}

	s := newSession(source)
	s.Metadata = meta
	s.Preview = preview
	p.logger.Info("loaded video", "session", s.ID, "source", source,
		"duration", meta.Duration, "fps", meta.FPS,
		"width", meta.Width, "height", meta.Height, "audio", meta.HasAudio)
	return s, nil
}

// Preview converts the frame at the given time with the active converter.
func (p *Pipeline) Preview(ctx context.Context, s *Session, seconds float64, opts img2ascii.Options) (*img2ascii.CharacterGrid, error) {
	if s == nil {
		return nil, &img2ascii.InputError{Field: "session", Reason: "nil session"}
	}
	if seconds < 0 || (s.Metadata.Duration > 0 && seconds > s.Metadata.Duration) {
		return nil, &img2ascii.InputError{
			Field:  "time",
			Reason: fmt.Sprintf("%.3fs outside [0, %.3f]", seconds, s.Metadata.Duration),
		}
	}
	frame := s.Preview
	if seconds > 0 || frame == nil {
		var err error
		frame, err = p.transcoder.ExtractFrame(ctx, s.Source, seconds)
		if err != nil {
			return nil, collab("extract frame", err)
		}
	}
	return p.engine.Convert(frame, opts)
}

// Run extracts, converts and re-encodes every frame of the session. A
// cancelled run returns a Result in StateCancelled and a nil error. A
// failed run returns a *PhaseError. Temporary artifacts are discarded
// exactly once before Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, s *Session, opts RunOptions, progress ProgressFunc) (*Result, error) {
	if s == nil {
		return nil, &img2ascii.InputError{Field: "session", Reason: "nil session"}
	}
	conv, err := p.engine.Prepare(opts.Converter, opts.Conversion)
	if err != nil {
		return nil, err
	}
	if opts.FPS < 0 {
		return nil, &img2ascii.InputError{Field: "fps", Reason: "must not be negative"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	r := &run{
		Pipeline: p,
		session:  s,
		opts:     opts,
		conv:     conv,
		progress: progress,
		logger:   p.logger.With("session", s.ID),
		result:   &Result{Phases: make(map[State]time.Duration)},
	}
	err = r.execute(ctx)

	if derr := p.transcoder.Discard(context.WithoutCancel(ctx)); derr != nil {
		r.logger.Warn("discarding temporary files failed", "error", derr)
	}

	switch {
	case errors.Is(err, errCancelled) || (err != nil && r.cancelled(ctx)):
		s.setState(StateCancelled)
		r.result.State = StateCancelled
		r.result.Video = nil
		r.logger.Info("run cancelled")
		r.report(StateCancelled, 0, "Cancelled")
		return r.result, nil
	case err != nil:
		s.setState(StateFailed)
		r.logger.Error("run failed", "error", err)
		r.report(StateFailed, 0, err.Error())
		return nil, err
	}

	s.setState(StateComplete)
	r.result.State = StateComplete
	r.logger.Info("run complete", "frames", r.result.Frames.Count, "bytes", len(r.result.Video))
	r.report(StateComplete, 1, "Done")
	return r.result, nil
}

// errCancelled unwinds execute when the cancel flag is observed.
var errCancelled = errors.New("cancelled")

// run is the state of one Pipeline.Run call.
type run struct {
	*Pipeline
	session  *Session
	opts     RunOptions
	conv     *img2ascii.Prepared
	progress ProgressFunc
	logger   hclog.Logger
	result   *Result

	phase      State
	phaseStart time.Time
}

func (r *run) cancelled(ctx context.Context) bool {
	return r.session.Cancelled() || ctx.Err() != nil
}

func (r *run) enter(ctx context.Context, st State) error {
	r.finishPhase()
	if r.cancelled(ctx) {
		return errCancelled
	}
	r.phase = st
	r.phaseStart = time.Now()
	r.session.setState(st)
	r.logger.Debug("entering phase", "phase", st)
	return nil
}

func (r *run) finishPhase() {
	if !r.phaseStart.IsZero() {
		r.result.Phases[r.phase] = time.Since(r.phaseStart)
		r.phaseStart = time.Time{}
	}
}

func (r *run) report(phase State, fraction float64, msg string) {
	if r.progress == nil {
		return
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	r.progress(Progress{Phase: phase, Fraction: fraction, Message: msg})
}

func (r *run) fail(err error) error {
	return &PhaseError{Phase: r.phase, Err: err}
}

func (r *run) execute(ctx context.Context) error {
	defer r.finishPhase()
	s := r.session

	// Extracting
	if err := r.enter(ctx, StateExtracting); err != nil {
		return err
	}
	fps := TargetFPS(s.Metadata.FPS, r.opts.FPS, r.maxFPS)
	if r.opts.FPS > s.Metadata.FPS && s.Metadata.FPS > 0 {
		r.logger.Warn("requested fps above source, keeping source rate",
			"requested", r.opts.FPS, "source", s.Metadata.FPS)
	}
	r.result.FPS = fps
	r.report(StateExtracting, 0, fmt.Sprintf("Extracting frames at %.2f fps", fps))

	frames, err := r.transcoder.ExtractAllFrames(ctx, s.Source, fps, r.maxFrameWidth, func(f float64) {
		r.report(StateExtracting, f, "Extracting frames")
	})
	if err != nil {
		return r.fail(collab("extract frames", err))
	}
	if frames.Count < 1 {
		return r.fail(ErrNoFrames)
	}
	s.setFrames(frames)
	r.result.Frames = frames
	r.logger.Debug("frames extracted", "start", frames.Start, "count", frames.Count)

	// Converting
	if err := r.enter(ctx, StateConverting); err != nil {
		return err
	}
	if err := r.convertFrames(ctx, frames); err != nil {
		return err
	}

	// Audio
	includeAudio := false
	if r.opts.IncludeAudio && s.Metadata.HasAudio {
		if err := r.enter(ctx, StateExtractingAudio); err != nil {
			return err
		}
		includeAudio = r.extractAudio(ctx)
	}
	r.result.Audio = includeAudio

	// Encoding
	if err := r.enter(ctx, StateEncoding); err != nil {
		return err
	}
	req := EncodeRequest{
		Frames:       frames,
		FPS:          fps,
		IncludeAudio: includeAudio,
		Video:        DefaultVideoCodec,
		Audio:        DefaultAudioCodec,
	}
	r.report(StateEncoding, 0, "Encoding video")
	data, err := r.transcoder.EncodeVideo(ctx, req, func(f float64) {
		r.report(StateEncoding, f, "Encoding video")
	})
	if err != nil {
		return r.fail(collab("encode", err))
	}
	r.result.Video = data
	return nil
}

// convertFrames processes frames strictly in index order. The cancel flag
// is checked before each frame starts.
func (r *run) convertFrames(ctx context.Context, frames FrameSet) error {
	n := frames.Count
	for i := 1; i <= n; i++ {
		if r.cancelled(ctx) {
			return errCancelled
		}
		idx := frames.Index(i)

		img, err := r.transcoder.Frame(ctx, idx)
		if err != nil {
			return r.fail(collab(fmt.Sprintf("frame %d", idx), err))
		}

		grid, err := r.conv.Convert(img)
		if err != nil {
			return r.fail(fmt.Errorf("converting frame %d: %w", idx, err))
		}

		if _, err := r.rasterizer.Render(grid); err != nil {
			return r.fail(fmt.Errorf("rendering frame %d: %w", idx, err))
		}
		data, err := r.rasterizer.EncodePNG()
		if err != nil {
			return r.fail(fmt.Errorf("encoding frame %d: %w", idx, err))
		}
		if err := r.transcoder.StoreEncodedFrame(ctx, idx, data); err != nil {
			return r.fail(collab(fmt.Sprintf("store frame %d", idx), err))
		}
		r.rasterizer.Clear()

		r.logger.Trace("frame converted", "index", idx, "bytes", len(data))
		r.report(StateConverting, float64(i)/float64(n), fmt.Sprintf("Converted frame %d of %d", i, n))
	}
	return nil
}

// extractAudio never fails the run; a missing track only drops audio from
// the output.
func (r *run) extractAudio(ctx context.Context) bool {
	r.report(StateExtractingAudio, 0, "Extracting audio")
	ok, err := r.transcoder.ExtractAudio(ctx, r.session.Source)
	switch {
	case err != nil:
		r.logger.Warn("audio extraction failed, continuing without audio", "error", err)
		r.report(StateExtractingAudio, 1, "Audio extraction failed, continuing without audio")
		return false
	case !ok:
		r.logger.Warn("no audio track extracted, continuing without audio")
		r.report(StateExtractingAudio, 1, "No audio extracted, continuing without audio")
		return false
	}
	r.report(StateExtractingAudio, 1, "Audio extracted")
	return true
}
