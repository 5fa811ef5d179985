// Package explorer wires loading, assembly, camera focus, flight and
// selection into one frame-driven application. Everything except the asset
// loads runs on the caller's frame thread.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/assembly"
	"github.com/Faultbox/drone-explorer/internal/catalog"
	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/engine/camera"
	"github.com/Faultbox/drone-explorer/internal/engine/picking"
	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/internal/flight"
	"github.com/Faultbox/drone-explorer/internal/focus"
	"github.com/Faultbox/drone-explorer/internal/loader"
	"github.com/Faultbox/drone-explorer/internal/logger"
	"github.com/Faultbox/drone-explorer/internal/observability"
	"github.com/Faultbox/drone-explorer/internal/physics"
	"github.com/Faultbox/drone-explorer/internal/selection"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// ErrHalted is returned by Frame after an unexpected error until Reload.
var ErrHalted = errors.New("explorer halted")

// ErrNoSource is returned by New when Deps.Source is missing.
var ErrNoSource = errors.New("explorer: no asset source")

// defaultAspect applies until Resize when the configured size is unusable.
const defaultAspect = 16.0 / 9.0

// Deps are the collaborators an App needs. Only Source is required.
type Deps struct {
	Source  loader.Source
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Tracer  trace.Tracer
	Catalog *catalog.Catalog

	// OpenModel asks the user for a model path. It is called on the frame
	// thread when the open action fires; ok=false cancels.
	OpenModel func() (path string, ok bool)
}

// State is a read-only snapshot for the UI.
type State struct {
	Phase    Phase
	Progress float32
	Load     loader.Status

	Parts    []assembly.Entry
	Selected string
	Info     catalog.Entry
	// Spinning is set when the selected part is a propeller and the
	// simulation is running.
	Spinning bool

	Focus       focus.Stage
	FreeControl bool
	Flight      flight.Telemetry

	Err error
}

// App is the explorer. Its methods must be called from one goroutine.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	source  loader.Source
	metrics *observability.Metrics
	tracer  trace.Tracer
	catalog *catalog.Catalog
	open    func() (string, bool)

	root      *scene.Node
	assembler *assembly.Assembler
	index     *assembly.PartIndex

	camera *camera.Perspective
	orbit  *camera.Orbit
	focus  *focus.Machine

	picker      *selection.Picker
	highlighter *selection.Highlighter
	clicks      *selection.ClickTracker

	world   *physics.World
	body    *physics.Body
	input   *flight.InputState
	flight  *flight.Controller
	spinner *flight.Spinner

	ctx        context.Context
	request    loader.Request
	pipeline   *loader.Pipeline
	generation int
	status     loader.Status

	phase    Phase
	selected string
	err      error

	width, height int

	// frameHook runs inside the frame boundary before any updates.
	frameHook func(dt time.Duration)
}

// New builds an App from cfg. Nothing is loaded until Load.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Source == nil {
		return nil, ErrNoSource
	}
	log := logger.OrNop(deps.Logger)
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	a := &App{
		cfg:      cfg,
		log:      log.Named("explorer"),
		source:   deps.Source,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		catalog:  cat,
		open:     deps.OpenModel,
		root:     scene.NewGroup("scene"),
		request:  loader.RequestFromConfig(cfg.Asset),
		selected: assembly.EntireModel,
		ctx:      context.Background(),
		width:    cfg.Graphics.Width,
		height:   cfg.Graphics.Height,
	}

	a.assembler = assembly.New(a.root, assembly.Options{Logger: a.log.Named("assembly")})
	a.index = a.assembler.Index()

	aspect := float32(defaultAspect)
	if a.width > 0 && a.height > 0 {
		aspect = float32(a.width) / float32(a.height)
	}
	a.camera = camera.NewPerspective(cfg.Camera.FOVDegrees, aspect,
		math.FromArray(cfg.Camera.HomePosition), math.FromArray(cfg.Camera.HomeLookAt))
	a.orbit = camera.NewOrbit(a.camera)
	a.focus = focus.New(a.camera, a.orbit, focus.ResolverFunc(a.resolve), cfg.Camera, a.log.Named("focus"))

	a.picker = selection.NewPicker(a.index)
	a.highlighter = selection.NewHighlighter(cfg.Selection, a.log.Named("selection"))
	a.highlighter.Subscribe(a.metrics.ObserveSelection)
	a.clicks = selection.NewClickTracker(cfg.Selection.DragThresholdPx)

	a.world = physics.NewWorld(cfg.Flight.Gravity)
	a.body = physics.NewBody(cfg.Flight.Mass)
	a.input = flight.NewInputState()
	ctrl, err := flight.NewController(a.world, a.body, cfg.Flight, a.input, a.log.Named("flight"))
	if err != nil {
		_ = a.world.Close()
		return nil, fmt.Errorf("create flight controller: %w", err)
	}
	a.flight = ctrl
	a.spinner = flight.NewSpinner(nil, cfg.Flight.PropellerSpinRate)

	return a, nil
}

// Load starts loading the configured model. ctx bounds the asset loads
// started now and by later reloads.
func (a *App) Load(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.ctx = ctx
	return a.start()
}

// invalidator is implemented by sources that cache, such as assets.Manager.
type invalidator interface {
	Invalidate()
}

// Reload discards any in-flight load, clears a halted state and loads the
// current request again. Cached source bytes are dropped first.
func (a *App) Reload(ctx context.Context) error {
	if ctx != nil {
		a.ctx = ctx
	}
	if inv, ok := a.source.(invalidator); ok {
		inv.Invalidate()
	}
	if err := a.start(); err != nil {
		return err
	}
	if a.err != nil {
		a.log.Info("recovered from halted state", zap.Error(a.err))
		a.err = nil
	}
	return nil
}

// LoadModel switches to another mesh and reloads. The material library is
// expected next to the mesh with an .mtl extension; a missing one only
// degrades the load.
func (a *App) LoadModel(ctx context.Context, mesh string) error {
	if mesh == "" {
		return loader.ErrNoMeshAsset
	}
	a.request.Mesh = mesh
	a.request.Material = strings.TrimSuffix(mesh, path.Ext(mesh)) + ".mtl"
	return a.Reload(ctx)
}

func (a *App) start() error {
	if a.pipeline != nil {
		a.pipeline.Discard()
	}
	a.generation++

	opts := []loader.Option{
		loader.WithLogger(a.log.Named("loader").With(zap.Int("generation", a.generation))),
		loader.WithObserver(a.metrics),
	}
	if a.tracer != nil {
		opts = append(opts, loader.WithTracer(a.tracer))
	}
	p := loader.NewPipeline(a.request, a.source, opts...)
	if err := p.Start(a.ctx); err != nil {
		a.pipeline = nil
		return fmt.Errorf("start load: %w", err)
	}
	a.pipeline = p
	a.status = p.Status()
	a.phase = PhaseLoading
	a.input.ReleaseAll()
	a.log.Info("loading model",
		zap.String("mesh", a.request.Mesh),
		zap.Int("textures", len(a.request.Textures)),
		zap.Int("generation", a.generation))
	return nil
}

// Frame advances the explorer by dt. Unexpected errors and panics halt the
// explorer; from then on Frame returns ErrHalted until Reload.
func (a *App) Frame(dt time.Duration) (err error) {
	if a.err != nil {
		return fmt.Errorf("%w: %v", ErrHalted, a.err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = a.halt(fmt.Errorf("panic: %v", r))
		}
	}()

	if a.frameHook != nil {
		a.frameHook(dt)
	}

	if a.pipeline != nil {
		ready := a.pipeline.Poll()
		a.status = a.pipeline.Status()
		a.metrics.ObserveStatus(a.status)
		if ready {
			if err := a.assemble(); err != nil {
				return a.halt(err)
			}
		}
	}

	if !a.phase.Ticking() {
		return nil
	}

	a.focus.Update()
	if _, err := a.flight.Update(dt); err != nil {
		return a.halt(fmt.Errorf("flight: %w", err))
	}
	a.spinner.Update(float32(dt.Seconds()), a.flight.Started())
	a.followBody()
	a.metrics.ObserveTelemetry(a.flight.Telemetry())
	return nil
}

func (a *App) halt(err error) error {
	a.err = err
	a.phase = PhaseHalted
	a.flight.Stop()
	a.input.ReleaseAll()
	a.log.Error("frame failed, halting until reload", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrHalted, err)
}

// assemble installs a finished load.
func (a *App) assemble() error {
	res, err := a.pipeline.Result()
	if err != nil {
		if errors.Is(err, loader.ErrStale) {
			return nil
		}
		return fmt.Errorf("load result: %w", err)
	}
	a.pipeline = nil

	a.highlighter.Forget()
	a.index = a.assembler.Assemble(res.Graph, res.Textures)
	a.picker.SetIndex(a.index)
	a.spinner = flight.NewSpinner(a.index.Propellers(), a.cfg.Flight.PropellerSpinRate)
	a.followBody()
	a.metrics.ObserveParts(a.index.Len())

	if res.Status.Degraded() {
		a.log.Warn("model loaded with failures", zap.Error(res.Status.Err()))
	}
	a.log.Info("model ready",
		zap.Int("parts", a.index.Len()),
		zap.Int("propellers", len(a.index.Propellers())))

	selected := a.selected
	if _, ok := a.index.Lookup(selected); !ok && selected != assembly.EntireModel {
		a.log.Info("selected part missing after load, selecting entire model", zap.String("part", selected))
		selected = assembly.EntireModel
	}
	a.selected = ""
	a.focus.Reset()
	a.phase = PhaseReady
	a.SelectPart(selected)
	return nil
}

// followBody copies the flight pose onto the model.
func (a *App) followBody() {
	model := a.assembler.Model()
	if model == nil {
		return
	}
	model.Position = a.body.Position
	model.Rotation = a.body.Orientation
}

func (a *App) resolve(name string) (math.Box3, bool) {
	part, ok := a.index.Lookup(name)
	if !ok {
		return math.Box3{}, false
	}
	return part.Node.WorldBounds(), true
}

// SelectPart selects a part by name, or the whole model for EntireModel or
// "". Unknown names fall back to the home view.
func (a *App) SelectPart(name string) {
	if name == "" {
		name = assembly.EntireModel
	}
	if name == a.selected {
		return
	}
	a.selected = name
	if part, ok := a.index.Lookup(name); ok {
		a.highlighter.Highlight(part)
	} else {
		a.highlighter.Clear()
	}
	a.focus.Select(name)
}

// CyclePart selects the next entry of the display list, wrapping through
// the whole model.
func (a *App) CyclePart() {
	entries := a.index.DisplayNames()
	if len(entries) == 0 {
		return
	}
	next := entries[0].Name
	for i, e := range entries {
		if e.Name == a.selected {
			if i+1 < len(entries) {
				next = entries[i+1].Name
			} else {
				next = assembly.EntireModel
			}
			break
		}
	}
	a.SelectPart(next)
}

// PickAt selects the nearest part under the pointer. A miss clears the
// highlight and returns to the whole model.
func (a *App) PickAt(x, y float32) (string, bool) {
	if a.width <= 0 || a.height <= 0 {
		return "", false
	}
	ray := picking.ScreenToRay(x, y, float32(a.width), float32(a.height), a.camera.ViewProjection().Inverse())
	hit, ok := a.picker.Pick(ray)
	if !ok {
		a.SelectPart(assembly.EntireModel)
		return "", false
	}
	a.SelectPart(hit.Part.Name)
	return hit.Part.Name, true
}

// Resize updates the viewport used for picking and the camera aspect.
func (a *App) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	a.width, a.height = width, height
	a.camera.SetAspect(width, height)
}

// MouseDown starts a click or drag.
func (a *App) MouseDown(x, y float32) { a.clicks.Down(x, y) }

// MouseMove orbits the camera once the pointer has moved far enough to count
// as a drag.
func (a *App) MouseMove(x, y, dx, dy float32) {
	if a.clicks.Move(x, y) {
		a.orbit.HandleDrag(dx, dy)
	}
}

// MouseUp picks when the press was a click rather than a drag.
func (a *App) MouseUp(x, y float32) {
	if a.clicks.Up(x, y) && a.phase == PhaseReady {
		a.PickAt(x, y)
	}
}

// Wheel zooms the orbit camera.
func (a *App) Wheel(delta float32) { a.orbit.HandleZoom(delta) }

// Start begins the flight simulation and snaps the camera home.
func (a *App) Start() {
	if a.flight.Started() {
		return
	}
	a.focus.SnapHome()
	a.flight.Start()
}

// Stop ends the flight simulation.
func (a *App) Stop() { a.flight.Stop() }

// ToggleFlight starts or stops the simulation.
func (a *App) ToggleFlight() {
	if a.flight.Started() {
		a.Stop()
		return
	}
	a.Start()
}

// ResetFlight puts the model back at the origin.
func (a *App) ResetFlight() {
	a.flight.Reset()
	a.followBody()
}

// State returns a snapshot of the explorer.
func (a *App) State() State {
	st := State{
		Phase:       a.phase,
		Progress:    a.status.Progress(),
		Load:        a.status,
		Parts:       a.index.DisplayNames(),
		Selected:    a.selected,
		Info:        a.catalog.Describe(a.selected),
		Focus:       a.focus.Stage(),
		FreeControl: a.orbit.Enabled(),
		Flight:      a.flight.Telemetry(),
		Err:         a.err,
	}
	if part, ok := a.index.Lookup(a.selected); ok {
		st.Spinning = part.IsPropeller && a.flight.Started()
	}
	return st
}

// Scene returns the root node the renderer draws.
func (a *App) Scene() *scene.Node { return a.root }

// Camera returns the active camera.
func (a *App) Camera() *camera.Perspective { return a.camera }

// Index returns the current part index.
func (a *App) Index() *assembly.PartIndex { return a.index }

// Spinner returns the propeller spinner for the current model.
func (a *App) Spinner() *flight.Spinner { return a.spinner }

// Close releases the physics world and drops any in-flight load.
func (a *App) Close() error {
	if a.pipeline != nil {
		a.pipeline.Discard()
		a.pipeline = nil
	}
	return multierr.Combine(a.flight.Close(), a.world.Close())
}
