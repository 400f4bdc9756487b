package img2ascii

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/wbrown/img2ascii/imageutil"
)

// LifecyclePhase identifies a conversion lifecycle notification.
type LifecyclePhase int

const (
	LifecycleStart LifecyclePhase = iota
	LifecycleComplete
	LifecycleError
)

func (p LifecyclePhase) String() string {
	switch p {
	case LifecycleStart:
		return "start"
	case LifecycleComplete:
		return "complete"
	case LifecycleError:
		return "error"
	}
	return "unknown"
}

// LifecycleEvent is delivered to a LifecycleFunc around every conversion.
// Elapsed and Grid are set on completion, Err on error.
type LifecycleEvent struct {
	Phase     LifecyclePhase
	Converter string
	Elapsed   time.Duration
	Grid      *CharacterGrid
	Err       error
}

// LifecycleFunc receives lifecycle notifications synchronously.
type LifecycleFunc func(LifecycleEvent)

// Engine holds a registry of named converters and one active selection.
// It is safe for concurrent use.
type Engine struct {
	mu         sync.RWMutex
	converters map[string]Converter
	order      []string
	active     string

	lifecycle LifecycleFunc
	logger    hclog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger hclog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycle registers a callback for start, complete and error
// notifications.
func WithLifecycle(fn LifecycleFunc) EngineOption {
	return func(e *Engine) {
		e.lifecycle = fn
	}
}

// NewEngine creates an empty engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		converters: make(map[string]Converter),
		logger:     hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewDefaultEngine creates an engine with the density and edge converters
// registered and density selected.
func NewDefaultEngine(opts ...EngineOption) *Engine {
	e := NewEngine(opts...)
	// Registration of fresh names on an empty engine cannot fail.
	_ = e.Register(NewDensity())
	_ = e.Register(NewEdgeBased())
	_ = e.Select(DensityName)
	return e
}

// Register adds a converter under its Name.
func (e *Engine) Register(c Converter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := c.Name()
	if _, ok := e.converters[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateConverter, name)
	}
	e.converters[name] = c
	e.order = append(e.order, name)
	e.logger.Debug("registered converter", "name", name)
	return nil
}

// Select makes the named converter active.
func (e *Engine) Select(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.converters[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConverter, name)
	}
	e.active = name
	return nil
}

// Active returns the name of the active converter, or "" if none.
func (e *Engine) Active() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// Converters lists registered converters in registration order.
func (e *Engine) Converters() []ConverterInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]ConverterInfo, 0, len(e.order))
	for _, name := range e.order {
		c := e.converters[name]
		infos = append(infos, ConverterInfo{Name: name, Description: c.Description()})
	}
	return infos
}

// Convert runs the active converter.
func (e *Engine) Convert(img *imageutil.RGBAImage, opts Options) (*CharacterGrid, error) {
	e.mu.RLock()
	name := e.active
	e.mu.RUnlock()

	if name == "" {
		return nil, ErrNoActiveConverter
	}
	return e.ConvertWith(name, img, opts)
}

// ConvertWith runs the named converter without changing the selection.
// Options are validated before the converter runs.
func (e *Engine) ConvertWith(name string, img *imageutil.RGBAImage, opts Options) (*CharacterGrid, error) {
	c, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.run(name, c, img, opts, true)
}

// Prepared is a converter bound to options that have already been
// validated, for converting many images with the same settings.
type Prepared struct {
	engine *Engine
	name   string
	conv   Converter
	opts   Options
}

// Prepare resolves the named converter, or the active one when name is
// empty, and validates opts once. The binding is unaffected by later
// calls to Select.
func (e *Engine) Prepare(name string, opts Options) (*Prepared, error) {
	if name == "" {
		name = e.Active()
		if name == "" {
			return nil, ErrNoActiveConverter
		}
	}
	c, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Prepared{engine: e, name: name, conv: c, opts: opts}, nil
}

// Name returns the bound converter's name.
func (p *Prepared) Name() string { return p.name }

// Convert runs the bound converter on img.
func (p *Prepared) Convert(img *imageutil.RGBAImage) (*CharacterGrid, error) {
	return p.engine.run(p.name, p.conv, img, p.opts, false)
}

func (e *Engine) lookup(name string) (Converter, error) {
	e.mu.RLock()
	c, ok := e.converters[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConverter, name)
	}
	return c, nil
}

func (e *Engine) run(name string, c Converter, img *imageutil.RGBAImage, opts Options, validate bool) (*CharacterGrid, error) {
	e.notify(LifecycleEvent{Phase: LifecycleStart, Converter: name})
	start := time.Now()

	grid, err := e.convert(c, img, opts, validate)
	if err != nil {
		e.logger.Debug("conversion failed", "converter", name, "error", err)
		e.notify(LifecycleEvent{Phase: LifecycleError, Converter: name, Elapsed: time.Since(start), Err: err})
		return nil, err
	}

	elapsed := time.Since(start)
	e.logger.Trace("conversion complete", "converter", name,
		"width", grid.Width, "height", grid.Height, "elapsed", elapsed)
	e.notify(LifecycleEvent{Phase: LifecycleComplete, Converter: name, Elapsed: elapsed, Grid: grid})
	return grid, nil
}

func (e *Engine) convert(c Converter, img *imageutil.RGBAImage, opts Options, validate bool) (*CharacterGrid, error) {
	if img.Empty() {
		return nil, &InputError{Field: "image", Reason: "empty pixel buffer"}
	}
	if validate {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}
	return c.Convert(img, opts)
}

func (e *Engine) notify(ev LifecycleEvent) {
	if e.lifecycle != nil {
		e.lifecycle(ev)
	}
}
