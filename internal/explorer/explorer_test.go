package explorer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/drone-explorer/internal/assembly"
	"github.com/Faultbox/drone-explorer/internal/assets"
	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/controls"
	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/internal/focus"
	"github.com/Faultbox/drone-explorer/internal/observability"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

const droneOBJ = `mtllib drone.mtl
vt 0 0
vt 1 0
vt 1 1
vt 0 1
o GEO_Body
v -5 -5 0
v 5 -5 0
v 5 5 0
v -5 5 0
usemtl BodyMat
f 1/1 2/2 3/3
f 1/1 3/3 4/4
o GEO_Propeller_01
v 29 -1 0
v 31 -1 0
v 31 1 0
v 29 1 0
f 5/1 6/2 7/3
f 5/1 7/3 8/4
o GEO_Propeller_02
v -31 -1 0
v -29 -1 0
v -29 1 0
v -31 1 0
f 9/1 10/2 11/3
f 9/1 11/3 12/4
`

const droneMTL = `newmtl BodyMat
Kd 0.3 0.3 0.3
`

// otherOBJ has no propellers.
const otherOBJ = `o GEO_Body
v -5 -5 0
v 5 -5 0
v 5 5 0
vt 0 0
vt 1 0
vt 1 1
f 1/1 2/2 3/3
`

// twinsOBJ has two overlapping leaves with the same name; the second is
// nearer the home camera.
const twinsOBJ = `vt 0 0
vt 1 0
vt 1 1
vt 0 1
o GEO_Arm
v -5 -5 0
v 5 -5 0
v 5 5 0
v -5 5 0
f 1/1 2/2 3/3
f 1/1 3/3 4/4
o GEO_Arm
v -5 -5 5
v 5 -5 5
v 5 5 5
v -5 5 5
f 5/1 6/2 7/3
f 5/1 7/3 8/4
`

const frame = 20 * time.Millisecond

type memSource struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newSource() *memSource {
	return &memSource{files: map[string][]byte{
		"drone.obj": []byte(droneOBJ),
		"drone.mtl": []byte(droneMTL),
		"other.obj": []byte(otherOBJ),
		"twins.obj": []byte(twinsOBJ),
	}}
}

func (s *memSource) Load(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, assets.ErrNotFound
	}
	return data, nil
}

func (s *memSource) remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Asset = config.AssetConfig{Mesh: "drone.obj", Material: "drone.mtl"}
	return cfg
}

func newApp(t *testing.T, deps Deps) *App {
	t.Helper()
	if deps.Source == nil {
		deps.Source = newSource()
	}
	a, err := New(testConfig(), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// frameUntil runs frames until cond holds or the deadline passes.
func frameUntil(t *testing.T, a *App, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, a.Frame(frame))
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met; phase %s", a.phase)
}

func loaded(t *testing.T, deps Deps) *App {
	t.Helper()
	a := newApp(t, deps)
	require.NoError(t, a.Load(context.Background()))
	assert.Equal(t, PhaseLoading, a.State().Phase)
	frameUntil(t, a, func() bool { return a.phase == PhaseReady })
	return a
}

func names(entries []assembly.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func highlightTint(cfg *config.Config) scene.Tint {
	return scene.Tint{
		Color:    math.FromArray(cfg.Selection.HighlightColor),
		Emissive: math.FromArray(cfg.Selection.HighlightEmissive),
	}
}

func TestNewRequiresSource(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestLoadAssemblesModel(t *testing.T) {
	a := loaded(t, Deps{})

	st := a.State()
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Equal(t, float32(1), st.Progress)
	assert.False(t, st.Load.Degraded())
	assert.Equal(t, []string{"GEO_Body", "GEO_Propeller_01", "GEO_Propeller_02"}, names(st.Parts))
	assert.Equal(t, assembly.EntireModel, st.Selected)
	assert.Equal(t, "Complete Drone Assembly", st.Info.Title)
	assert.Equal(t, 2, a.Spinner().Len())
	assert.NoError(t, st.Err)
}

func TestFramesBeforeLoadDoNothing(t *testing.T) {
	a := newApp(t, Deps{})
	require.NoError(t, a.Frame(frame))
	assert.Equal(t, PhaseIdle, a.State().Phase)
	assert.Equal(t, 0, a.Index().Len())
}

func TestSelectPartFocusesAndHighlights(t *testing.T) {
	a := loaded(t, Deps{})
	cfg := testConfig()

	a.SelectPart("GEO_Body")
	st := a.State()
	assert.Equal(t, focus.Approaching, st.Focus)
	assert.False(t, st.FreeControl)
	assert.Equal(t, "GEO_Body", st.Selected)
	assert.NotEqual(t, "", st.Info.Title)

	body, ok := a.Index().Lookup("GEO_Body")
	require.True(t, ok)
	assert.Equal(t, highlightTint(cfg), body.Node.Mesh().Material.Tint())

	frameUntil(t, a, func() bool { return a.focus.Stage() == focus.Idle })
	assert.True(t, a.State().FreeControl)
	target, _ := a.focus.Frame(body.Node.WorldBounds())
	assert.Less(t, a.Camera().Position().Distance(target), cfg.Camera.Epsilon)
}

func TestSelectSamePartIsNoOp(t *testing.T) {
	a := loaded(t, Deps{})
	a.SelectPart("GEO_Body")
	before := a.focus.Transitions()
	a.SelectPart("GEO_Body")
	assert.Equal(t, before, a.focus.Transitions())
}

func TestSelectUnknownPartReturnsHome(t *testing.T) {
	a := loaded(t, Deps{})
	a.SelectPart("GEO_Body")
	a.SelectPart("GEO_Missing")

	st := a.State()
	assert.Equal(t, focus.Returning, st.Focus)
	assert.Equal(t, "GEO_Missing", st.Selected)
	assert.True(t, st.Info.Generated)
	assert.Nil(t, a.highlighter.Current())
}

func TestPickAt(t *testing.T) {
	a := loaded(t, Deps{})
	body, _ := a.Index().Lookup("GEO_Body")

	// Slightly off center so the ray avoids the quad's diagonal.
	name, ok := a.PickAt(650, 355)
	require.True(t, ok)
	assert.Equal(t, "GEO_Body", name)
	assert.Equal(t, "GEO_Body", a.State().Selected)

	_, ok = a.PickAt(0, 0)
	assert.False(t, ok)
	assert.Equal(t, assembly.EntireModel, a.State().Selected)
	assert.Equal(t, body.Original, body.Node.Mesh().Material.Tint())
}

func TestDragDoesNotPick(t *testing.T) {
	a := loaded(t, Deps{})

	a.MouseDown(650, 355)
	a.MouseMove(700, 380, 50, 25)
	a.MouseUp(700, 380)
	assert.Equal(t, assembly.EntireModel, a.State().Selected)

	a.MouseDown(650, 355)
	a.MouseUp(650, 355)
	assert.Equal(t, "GEO_Body", a.State().Selected)
}

func TestCyclePart(t *testing.T) {
	a := loaded(t, Deps{})

	var seen []string
	for i := 0; i < 4; i++ {
		a.KeyDown(controls.CyclePart)
		seen = append(seen, a.State().Selected)
	}
	assert.Equal(t, []string{"GEO_Body", "GEO_Propeller_01", "GEO_Propeller_02", assembly.EntireModel}, seen)
}

func TestFlightMovesModelAndSpinsPropellers(t *testing.T) {
	a := loaded(t, Deps{})
	a.SelectPart("GEO_Propeller_02")
	assert.False(t, a.State().Spinning)

	a.KeyDown(controls.StartStop)
	st := a.State()
	assert.True(t, st.Flight.Started)
	assert.True(t, st.Spinning)
	assert.Equal(t, focus.Idle, st.Focus)
	assert.Equal(t, math.FromArray(testConfig().Camera.HomePosition), a.Camera().Position())

	a.KeyDown(controls.ThrustUp)
	for i := 0; i < 30; i++ {
		require.NoError(t, a.Frame(frame))
	}
	a.KeyUp(controls.ThrustUp)

	assert.Greater(t, a.body.Position.Y, float32(0))
	assert.Equal(t, a.body.Position, a.assembler.Model().Position)
	angle, ok := a.Spinner().Angle("GEO_Propeller_02")
	require.True(t, ok)
	assert.Greater(t, angle, float32(0))
	assert.Greater(t, a.State().Flight.Thrust, float32(0))

	a.KeyDown(controls.StartStop)
	assert.False(t, a.State().Flight.Started)
	assert.Equal(t, float32(0), a.State().Flight.Thrust)

	a.KeyDown(controls.Reset)
	assert.Equal(t, math.Vec3{}, a.body.Position)
	assert.Equal(t, math.Vec3{}, a.assembler.Model().Position)
}

func TestStoppedPropellersDoNotSpin(t *testing.T) {
	a := loaded(t, Deps{})
	for i := 0; i < 100; i++ {
		require.NoError(t, a.Frame(frame))
	}
	angle, ok := a.Spinner().Angle("GEO_Propeller_02")
	require.True(t, ok)
	assert.Zero(t, angle)
}

func TestHeldKeysTrackInput(t *testing.T) {
	a := newApp(t, Deps{})
	a.KeyDown(controls.YawLeft)
	assert.True(t, a.input.Held(controls.YawLeft))
	a.KeyUp(controls.YawLeft)
	assert.False(t, a.input.Held(controls.YawLeft))

	// Commands that need a model are ignored while idle.
	a.KeyDown(controls.StartStop)
	assert.False(t, a.flight.Started())
}

func TestFreeViewReleasesCamera(t *testing.T) {
	a := loaded(t, Deps{})
	a.SelectPart("GEO_Body")
	require.False(t, a.State().FreeControl)

	a.KeyDown(controls.FreeView)
	assert.True(t, a.State().FreeControl)
	assert.Equal(t, focus.Idle, a.State().Focus)
}

func TestReloadFallsBackWhenSelectionDisappears(t *testing.T) {
	a := loaded(t, Deps{})
	a.SelectPart("GEO_Propeller_02")

	require.NoError(t, a.LoadModel(context.Background(), "other.obj"))
	assert.Equal(t, PhaseLoading, a.State().Phase)
	frameUntil(t, a, func() bool { return a.phase == PhaseReady })

	st := a.State()
	assert.Equal(t, assembly.EntireModel, st.Selected)
	assert.Equal(t, []string{"GEO_Body"}, names(st.Parts))
	assert.Equal(t, 0, a.Spinner().Len())
	// other.mtl does not exist.
	assert.True(t, st.Load.Degraded())
}

func TestReloadKeepsSelectionThatStillExists(t *testing.T) {
	a := loaded(t, Deps{})
	a.SelectPart("GEO_Body")

	a.KeyDown(controls.Reload)
	frameUntil(t, a, func() bool { return a.phase == PhaseReady })

	assert.Equal(t, "GEO_Body", a.State().Selected)
	body, _ := a.Index().Lookup("GEO_Body")
	assert.Equal(t, highlightTint(testConfig()), body.Node.Mesh().Material.Tint())
}

func TestReloadSupersedesInFlightLoad(t *testing.T) {
	a := newApp(t, Deps{})
	require.NoError(t, a.Load(context.Background()))
	require.NoError(t, a.LoadModel(context.Background(), "other.obj"))

	frameUntil(t, a, func() bool { return a.phase == PhaseReady })
	// Let any late completions of the first load arrive.
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Frame(frame))
	}
	assert.Equal(t, []string{"GEO_Body"}, names(a.State().Parts))
}

func TestGeometryFailureStillBecomesReady(t *testing.T) {
	src := newSource()
	src.remove("drone.obj")
	a := loaded(t, Deps{Source: src})

	st := a.State()
	assert.True(t, st.Load.Degraded())
	assert.Error(t, st.Load.Err())
	assert.Empty(t, st.Parts)
	assert.Nil(t, a.assembler.Model())
}

func TestPanicHaltsUntilReload(t *testing.T) {
	a := loaded(t, Deps{})
	a.frameHook = func(time.Duration) { panic("boom") }

	err := a.Frame(frame)
	require.ErrorIs(t, err, ErrHalted)
	assert.Contains(t, err.Error(), "boom")

	a.frameHook = nil
	assert.ErrorIs(t, a.Frame(frame), ErrHalted)
	st := a.State()
	assert.Equal(t, PhaseHalted, st.Phase)
	assert.Error(t, st.Err)

	require.NoError(t, a.Reload(context.Background()))
	frameUntil(t, a, func() bool { return a.phase == PhaseReady })
	assert.NoError(t, a.State().Err)
}

func TestFlightErrorHalts(t *testing.T) {
	a := loaded(t, Deps{})
	a.Start()
	require.NoError(t, a.world.Close())

	assert.ErrorIs(t, a.Frame(frame), ErrHalted)
	assert.False(t, a.flight.Started())
}

func TestOpenModelLoadsChosenFile(t *testing.T) {
	asked := 0
	a := loaded(t, Deps{OpenModel: func() (string, bool) {
		asked++
		return "other.obj", asked == 1
	}})

	a.KeyDown(controls.OpenModel)
	frameUntil(t, a, func() bool { return a.phase == PhaseReady })
	assert.Equal(t, []string{"GEO_Body"}, names(a.State().Parts))

	a.KeyDown(controls.OpenModel)
	assert.Equal(t, PhaseReady, a.State().Phase)
	assert.Equal(t, 2, asked)
}

func TestMetricsFollowTheApp(t *testing.T) {
	m, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	a := loaded(t, Deps{Metrics: m})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Parts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadProgress))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues("geometry", "ok")))

	before := testutil.ToFloat64(m.Selections)
	a.SelectPart("GEO_Body")
	assert.Equal(t, before+1, testutil.ToFloat64(m.Selections))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "ready", PhaseReady.String())
	assert.Equal(t, "Phase(9)", Phase(9).String())
	assert.True(t, PhaseReady.Ticking())
	assert.False(t, PhaseLoading.Ticking())
}

type cachingSource struct {
	*memSource
	invalidated int
}

func (s *cachingSource) Invalidate() { s.invalidated++ }

func TestReloadInvalidatesCachingSource(t *testing.T) {
	src := &cachingSource{memSource: newSource()}
	a := loaded(t, Deps{Source: src})
	assert.Zero(t, src.invalidated)

	require.NoError(t, a.Reload(context.Background()))
	assert.Equal(t, 1, src.invalidated)
	frameUntil(t, a, func() bool { return a.phase == PhaseReady })
}

func TestPickHighlightsNearestOfSameNamedParts(t *testing.T) {
	a := loaded(t, Deps{})
	require.NoError(t, a.LoadModel(context.Background(), "twins.obj"))
	frameUntil(t, a, func() bool { return a.phase == PhaseReady })
	require.Equal(t, []string{"GEO_Arm", "GEO_Arm_2"}, names(a.State().Parts))

	name, ok := a.PickAt(650, 355)
	require.True(t, ok)
	assert.Equal(t, "GEO_Arm_2", name)

	far, _ := a.Index().Lookup("GEO_Arm")
	near, _ := a.Index().Lookup("GEO_Arm_2")
	assert.Greater(t, near.Node.WorldBounds().Max.Z, far.Node.WorldBounds().Max.Z)
	assert.Same(t, near, a.highlighter.Current())
	assert.Equal(t, highlightTint(testConfig()), near.Node.Mesh().Material.Tint())
	assert.Equal(t, far.Original, far.Node.Mesh().Material.Tint())
}
