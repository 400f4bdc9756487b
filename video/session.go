package video

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/wbrown/img2ascii/imageutil"
)

// State is a pipeline run state.
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateConverting
	StateExtractingAudio
	StateEncoding
	StateComplete
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateExtracting:      "extracting",
	StateConverting:      "converting",
	StateExtractingAudio: "extracting_audio",
	StateEncoding:        "encoding",
	StateComplete:        "complete",
	StateCancelled:       "cancelled",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether s is Complete, Cancelled or Failed.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateCancelled || s == StateFailed
}

// Session is one loaded video. It is created by Pipeline.Load and mutated
// only by the pipeline running it; Cancel may be called from any
// goroutine.
type Session struct {
	ID       string
	Source   string
	Metadata Metadata
	// Preview is the frame at t=0.
	Preview *imageutil.RGBAImage

	cancelled atomic.Bool

	mu     sync.Mutex
	state  State
	frames FrameSet
}

func newSession(source string) *Session {
	return &Session{
		ID:     uuid.New().String(),
		Source: source,
	}
}

// Cancel requests that the current run stop at its next frame or phase
// boundary. Cancellation is permanent for the session.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// State returns the current run state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames returns the extracted frame set, zero until extraction finishes.
func (s *Session) Frames() FrameSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) setFrames(f FrameSet) {
	s.mu.Lock()
	s.frames = f
	s.mu.Unlock()
}
