// Package loader fetches a model, its material library and its textures
// without blocking the frame loop. Loads run on goroutines and post their
// results to the pipeline; the frame loop applies them by calling Poll.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/internal/engine/texture"
	"github.com/Faultbox/drone-explorer/pkg/formats"
)

// Pipeline errors.
var (
	// ErrStale is returned by a pipeline that was discarded by a reload.
	ErrStale       = errors.New("load discarded")
	ErrNotReady    = errors.New("load not finished")
	ErrStarted     = errors.New("pipeline already started")
	ErrNoMeshAsset = errors.New("request has no mesh")
)

// Stage is the progress of one load track.
type Stage int

const (
	MaterialsPending Stage = iota
	MaterialsDone
	GeometryPending
	GeometryDone
	TexturesPending
	TexturesDone
	// Failed is terminal but does not block readiness.
	Failed
)

func (s Stage) String() string {
	switch s {
	case MaterialsPending:
		return "materials pending"
	case MaterialsDone:
		return "materials done"
	case GeometryPending:
		return "geometry pending"
	case GeometryDone:
		return "geometry done"
	case TexturesPending:
		return "textures pending"
	case TexturesDone:
		return "textures done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Resolved reports whether the track has finished, successfully or not.
func (s Stage) Resolved() bool {
	return s == MaterialsDone || s == GeometryDone || s == TexturesDone || s == Failed
}

// Kind names a load for logs, spans and metrics.
type Kind string

const (
	KindMaterial Kind = "material"
	KindGeometry Kind = "geometry"
	KindTexture  Kind = "texture"
)

// Source provides raw asset bytes. assets.Manager implements it.
type Source interface {
	Load(name string) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(name string) ([]byte, error)

// Load calls f.
func (f SourceFunc) Load(name string) ([]byte, error) { return f(name) }

// Observer is told about every finished load.
type Observer interface {
	ObserveLoad(kind Kind, elapsed time.Duration, err error)
}

// Status is a snapshot of a pipeline.
type Status struct {
	Materials Stage
	Geometry  Stage
	Textures  Stage

	TexturesResolved int
	TexturesTotal    int

	// Failures holds every load error in the order they were applied.
	Failures []error
	// Ready is set once geometry and every texture have resolved.
	Ready bool

	resolved int
	total    int
}

// MaterialsLoaded reports whether the material stage is finished.
func (s Status) MaterialsLoaded() bool { return s.Materials.Resolved() }

// GeometryLoaded reports whether the geometry stage is finished.
func (s Status) GeometryLoaded() bool { return s.Geometry.Resolved() }

// TexturesLoaded reports whether every requested texture has resolved.
func (s Status) TexturesLoaded() bool { return s.Textures.Resolved() }

// Progress returns the fraction of loads resolved, in [0, 1].
func (s Status) Progress() float32 {
	if s.total == 0 {
		return 1
	}
	return float32(s.resolved) / float32(s.total)
}

// Degraded reports whether any load failed.
func (s Status) Degraded() bool { return len(s.Failures) > 0 }

// Err combines every recorded failure, or returns nil.
func (s Status) Err() error { return multierr.Combine(s.Failures...) }

// Result is what a finished pipeline hands to assembly.
type Result struct {
	// Graph is nil when the geometry failed to load.
	Graph     *scene.Node
	Materials *formats.MTL
	Textures  *TextureSet
	Status    Status
}

type completion struct {
	kind    Kind
	slot    int
	path    string
	elapsed time.Duration
	err     error

	mtl   *formats.MTL
	graph *scene.Node
	image *texture.Image
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithTracer sets the tracer used for per-load spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithObserver registers an observer for load completions.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// Pipeline runs one Request. Poll, Status, Result and Discard must be called
// from the same goroutine.
type Pipeline struct {
	req      Request
	source   Source
	log      *zap.Logger
	tracer   trace.Tracer
	observer Observer

	ctx       context.Context
	events    chan completion
	started   bool
	discarded bool

	status   Status
	gate     *Gate
	slotDone []bool

	mtl      *formats.MTL
	graph    *scene.Node
	textures *TextureSet
}

// NewPipeline creates a pipeline for req reading from src.
func NewPipeline(req Request, src Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		req:      req,
		source:   src,
		log:      zap.NewNop(),
		tracer:   otel.Tracer("github.com/Faultbox/drone-explorer/internal/loader"),
		textures: NewTextureSet(),
		slotDone: make([]bool, len(req.Textures)),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.status = Status{
		Materials:     MaterialsPending,
		Geometry:      GeometryPending,
		Textures:      TexturesPending,
		TexturesTotal: len(req.Textures),
		total:         1 + len(req.Textures),
	}
	if req.Material != "" {
		p.status.total++
	}
	return p
}

// Start launches the material and texture loads. It does not block. The
// context carries trace spans only; loads are never cancelled.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.discarded {
		return ErrStale
	}
	if p.started {
		return ErrStarted
	}
	if p.req.Mesh == "" {
		return ErrNoMeshAsset
	}
	p.started = true
	p.ctx = ctx
	p.events = make(chan completion, 2+len(p.req.Textures))

	p.gate = NewGate(len(p.req.Textures), func() {
		p.status.Textures = TexturesDone
		p.log.Debug("texture gate fired",
			zap.Int("textures", len(p.req.Textures)),
			zap.Int("loaded", p.textures.Len()))
	})

	if p.req.Material == "" {
		p.status.Materials = MaterialsDone
		p.startGeometry()
	} else {
		go p.loadMaterial()
	}
	for i, ref := range p.req.Textures {
		go p.loadTexture(i, ref)
	}
	return nil
}

// Poll applies every completion that has arrived since the last call. It
// reports true exactly once: on the call where the pipeline became ready.
func (p *Pipeline) Poll() bool {
	if !p.started || p.discarded || p.status.Ready {
		return false
	}

	for drained := false; !drained; {
		select {
		case ev := <-p.events:
			p.apply(ev)
		default:
			drained = true
		}
	}

	if p.status.GeometryLoaded() && p.gate.Fired() {
		p.status.Ready = true
		p.log.Info("assets loaded",
			zap.Int("textures", p.textures.Len()),
			zap.Int("failures", len(p.status.Failures)),
			zap.Bool("geometry", p.graph != nil))
		return true
	}
	return false
}

// Status returns a snapshot.
func (p *Pipeline) Status() Status {
	s := p.status
	s.Failures = append([]error(nil), p.status.Failures...)
	if p.gate != nil {
		s.TexturesResolved = p.gate.Count()
	}
	return s
}

// Result returns the loaded assets once the pipeline is ready.
func (p *Pipeline) Result() (*Result, error) {
	if p.discarded {
		return nil, ErrStale
	}
	if !p.status.Ready {
		return nil, ErrNotReady
	}
	return &Result{
		Graph:     p.graph,
		Materials: p.mtl,
		Textures:  p.textures,
		Status:    p.Status(),
	}, nil
}

// Discard detaches the pipeline from its in-flight loads. Their results are
// dropped when they arrive.
func (p *Pipeline) Discard() {
	if p.discarded {
		return
	}
	p.discarded = true
	p.log.Debug("pipeline discarded", zap.String("mesh", p.req.Mesh))
}

// Discarded reports whether Discard was called.
func (p *Pipeline) Discarded() bool { return p.discarded }

func (p *Pipeline) apply(ev completion) {
	if p.observer != nil {
		p.observer.ObserveLoad(ev.kind, ev.elapsed, ev.err)
	}

	switch ev.kind {
	case KindMaterial:
		if p.status.Materials.Resolved() {
			return
		}
		p.status.resolved++
		if ev.err != nil {
			p.fail(&p.status.Materials, ev)
		} else {
			p.mtl = ev.mtl
			p.status.Materials = MaterialsDone
		}
		p.startGeometry()

	case KindGeometry:
		if p.status.Geometry.Resolved() {
			return
		}
		p.status.resolved++
		if ev.err != nil {
			p.fail(&p.status.Geometry, ev)
			return
		}
		p.graph = ev.graph
		p.status.Geometry = GeometryDone

	case KindTexture:
		if ev.slot < 0 || ev.slot >= len(p.slotDone) || p.slotDone[ev.slot] {
			return
		}
		p.slotDone[ev.slot] = true
		p.status.resolved++
		ref := p.req.Textures[ev.slot]
		if ev.err != nil {
			p.status.Failures = append(p.status.Failures, ev.err)
			p.log.Error("texture load failed",
				zap.String("path", ev.path),
				zap.String("category", ref.Category),
				zap.String("channel", ref.Channel),
				zap.Error(ev.err))
		} else {
			p.textures.Put(ref.Category, ref.Channel, ev.image)
		}
		p.gate.Resolve()
	}
}

func (p *Pipeline) fail(stage *Stage, ev completion) {
	*stage = Failed
	p.status.Failures = append(p.status.Failures, ev.err)
	if ev.kind == KindMaterial {
		p.log.Warn("material load failed, continuing without materials",
			zap.String("path", ev.path), zap.Error(ev.err))
		return
	}
	p.log.Error("model load failed", zap.String("path", ev.path), zap.Error(ev.err))
}

// startGeometry runs once the material stage has resolved, with whatever
// library it produced.
func (p *Pipeline) startGeometry() {
	go p.loadGeometry(p.mtl)
}

func (p *Pipeline) span(kind Kind, path string) (trace.Span, time.Time) {
	_, span := p.tracer.Start(p.ctx, "load."+string(kind),
		trace.WithAttributes(attribute.String("asset.path", path)))
	return span, time.Now()
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (p *Pipeline) loadMaterial() {
	span, start := p.span(KindMaterial, p.req.Material)
	ev := completion{kind: KindMaterial, path: p.req.Material}

	data, err := p.source.Load(p.req.Material)
	if err == nil {
		ev.mtl, err = formats.ParseMTL(data)
	}
	if err != nil {
		ev.err = fmt.Errorf("material %s: %w", p.req.Material, err)
	}
	ev.elapsed = time.Since(start)
	finish(span, ev.err)
	p.events <- ev
}

func (p *Pipeline) loadGeometry(lib *formats.MTL) {
	span, start := p.span(KindGeometry, p.req.Mesh)
	ev := completion{kind: KindGeometry, path: p.req.Mesh}

	data, err := p.source.Load(p.req.Mesh)
	var obj *formats.OBJ
	if err == nil {
		obj, err = formats.ParseOBJ(data)
	}
	if err == nil {
		ev.graph, err = BuildGraph(path.Base(p.req.Mesh), obj, lib)
	}
	if err != nil {
		ev.err = fmt.Errorf("model %s: %w", p.req.Mesh, err)
	}
	ev.elapsed = time.Since(start)
	finish(span, ev.err)
	p.events <- ev
}

func (p *Pipeline) loadTexture(slot int, ref TextureRef) {
	span, start := p.span(KindTexture, ref.Path)
	ev := completion{kind: KindTexture, slot: slot, path: ref.Path}

	data, err := p.source.Load(ref.Path)
	if err == nil {
		ev.image, err = texture.Decode(ref.Path, data, texture.ColorSpaceFor(ref.Channel))
	}
	if err != nil {
		ev.err = fmt.Errorf("texture %s/%s %s: %w", ref.Category, ref.Channel, ref.Path, err)
	}
	ev.elapsed = time.Since(start)
	finish(span, ev.err)
	p.events <- ev
}
