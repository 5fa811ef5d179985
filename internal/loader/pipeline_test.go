package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/engine/texture"
	"github.com/Faultbox/drone-explorer/pkg/formats"
)

const droneOBJ = `mtllib drone.mtl
o GEO_Frame
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
usemtl FrameMat
f 1/1 2/2 3/3
o GEO_Propeller_01
v 0 0 1
v 1 0 1
v 0 1 1
f 4 5 6
`

const droneMTL = `newmtl FrameMat
Kd 0.2 0.4 0.6
Ke 0.1 0 0
`

var errMissing = errors.New("missing")

type fakeSource struct {
	mu        sync.Mutex
	files     map[string][]byte
	blocks    map[string]chan struct{}
	requested []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{files: map[string][]byte{}, blocks: map[string]chan struct{}{}}
}

func (s *fakeSource) block(name string) chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.blocks[name] = ch
	s.mu.Unlock()
	return ch
}

func (s *fakeSource) wasRequested(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requested {
		if r == name {
			return true
		}
	}
	return false
}

func (s *fakeSource) Load(name string) ([]byte, error) {
	s.mu.Lock()
	s.requested = append(s.requested, name)
	ch := s.blocks[name]
	s.mu.Unlock()

	if ch != nil {
		<-ch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, errMissing)
	}
	return data, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func droneSource(t *testing.T) *fakeSource {
	src := newFakeSource()
	src.files["drone.obj"] = []byte(droneOBJ)
	src.files["drone.mtl"] = []byte(droneMTL)
	src.files["parts_diffuse.png"] = pngBytes(t)
	src.files["parts_normal.png"] = pngBytes(t)
	src.files["frame_diffuse.png"] = pngBytes(t)
	return src
}

func droneRequest() Request {
	return Request{
		Mesh:     "drone.obj",
		Material: "drone.mtl",
		Textures: []TextureRef{
			{Category: CategoryParts, Channel: texture.ChannelDiffuse, Path: "parts_diffuse.png"},
			{Category: CategoryParts, Channel: texture.ChannelNormal, Path: "parts_normal.png"},
			{Category: CategoryFrame, Channel: texture.ChannelDiffuse, Path: "frame_diffuse.png"},
		},
	}
}

// pollUntilReady polls p the way the frame loop does and fails the test if
// it does not become ready in time.
func pollUntilReady(t *testing.T, p *Pipeline) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p.Poll() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("pipeline not ready: %+v", p.Status())
}

// pollFor polls p for d and fails if it becomes ready.
func pollFor(t *testing.T, p *Pipeline, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		require.False(t, p.Poll(), "pipeline became ready early")
		time.Sleep(time.Millisecond)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	kinds map[Kind]int
	errs  int
}

func (o *recordingObserver) ObserveLoad(kind Kind, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.kinds == nil {
		o.kinds = map[Kind]int{}
	}
	o.kinds[kind]++
	if err != nil {
		o.errs++
	}
}

func TestPipelineLoadsEverything(t *testing.T) {
	obs := &recordingObserver{}
	p := NewPipeline(droneRequest(), droneSource(t), WithObserver(obs))
	require.NoError(t, p.Start(context.Background()))
	pollUntilReady(t, p)

	res, err := p.Result()
	require.NoError(t, err)
	require.NotNil(t, res.Graph)
	assert.Len(t, res.Graph.Children(), 2)
	assert.Equal(t, 3, res.Textures.Len())

	img, ok := res.Textures.Get(CategoryParts, texture.ChannelDiffuse)
	require.True(t, ok)
	assert.Equal(t, texture.SRGB, img.ColorSpace)
	img, ok = res.Textures.Get(CategoryParts, texture.ChannelNormal)
	require.True(t, ok)
	assert.Equal(t, texture.Linear, img.ColorSpace)
	assert.Len(t, res.Textures.Category(CategoryFrame), 1)

	st := res.Status
	assert.Equal(t, MaterialsDone, st.Materials)
	assert.Equal(t, GeometryDone, st.Geometry)
	assert.Equal(t, TexturesDone, st.Textures)
	assert.Equal(t, 3, st.TexturesResolved)
	assert.Equal(t, float32(1), st.Progress())
	assert.False(t, st.Degraded())
	assert.NoError(t, st.Err())

	assert.False(t, p.Poll(), "ready is reported once")
	assert.Equal(t, map[Kind]int{KindMaterial: 1, KindGeometry: 1, KindTexture: 3}, obs.kinds)
}

func TestPipelineMaterialAwareGeometry(t *testing.T) {
	p := NewPipeline(droneRequest(), droneSource(t))
	require.NoError(t, p.Start(context.Background()))
	pollUntilReady(t, p)

	res, err := p.Result()
	require.NoError(t, err)
	frame := res.Graph.Find("GEO_Frame")
	require.NotNil(t, frame)
	mat := frame.Mesh().Material
	assert.InDelta(t, 0.4, mat.Color.Y, 1e-6)
	assert.InDelta(t, 0.1, mat.Emissive.X, 1e-6)
	assert.True(t, frame.Mesh().Geometry.HasUVs())

	prop := res.Graph.Find("GEO_Propeller_01")
	require.NotNil(t, prop)
	assert.False(t, prop.Mesh().Geometry.HasUVs())
	assert.Len(t, prop.Mesh().Geometry.Normals, 3, "flat normals are generated")
}

func TestPipelineZeroTextures(t *testing.T) {
	req := droneRequest()
	req.Textures = nil
	p := NewPipeline(req, droneSource(t))
	require.NoError(t, p.Start(context.Background()))

	st := p.Status()
	assert.True(t, st.TexturesLoaded(), "gate with nothing to wait for fires at start")

	pollUntilReady(t, p)
	res, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Textures.Len())
}

func TestPipelineNoMaterial(t *testing.T) {
	req := droneRequest()
	req.Material = ""
	src := droneSource(t)
	p := NewPipeline(req, src)
	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Status().MaterialsLoaded())

	pollUntilReady(t, p)
	res, err := p.Result()
	require.NoError(t, err)
	assert.Nil(t, res.Materials)
	assert.False(t, src.wasRequested("drone.mtl"))

	frame := res.Graph.Find("GEO_Frame")
	assert.Equal(t, float32(1), frame.Mesh().Material.Color.Y, "default white material")
}

func TestPipelineGeometryWaitsForMaterials(t *testing.T) {
	src := droneSource(t)
	release := src.block("drone.mtl")

	p := NewPipeline(droneRequest(), src)
	require.NoError(t, p.Start(context.Background()))

	pollFor(t, p, 30*time.Millisecond)
	assert.False(t, src.wasRequested("drone.obj"), "geometry must not start before materials")
	assert.Equal(t, GeometryPending, p.Status().Geometry)

	close(release)
	pollUntilReady(t, p)
	assert.True(t, src.wasRequested("drone.obj"))
}

func TestPipelineTexturesGateReadiness(t *testing.T) {
	src := droneSource(t)
	release := src.block("frame_diffuse.png")

	p := NewPipeline(droneRequest(), src)
	require.NoError(t, p.Start(context.Background()))

	deadline := time.Now().Add(5 * time.Second)
	for !p.Status().GeometryLoaded() && time.Now().Before(deadline) {
		require.False(t, p.Poll())
		time.Sleep(time.Millisecond)
	}
	require.True(t, p.Status().GeometryLoaded())

	pollFor(t, p, 20*time.Millisecond)
	st := p.Status()
	assert.False(t, st.TexturesLoaded())
	assert.False(t, st.Ready)
	assert.Equal(t, 2, st.TexturesResolved)
	assert.Less(t, st.Progress(), float32(1))
	_, err := p.Result()
	assert.ErrorIs(t, err, ErrNotReady)

	close(release)
	pollUntilReady(t, p)
	assert.True(t, p.Status().TexturesLoaded())
}

func TestPipelineTextureFailureDegrades(t *testing.T) {
	src := droneSource(t)
	delete(src.files, "parts_normal.png")
	src.files["frame_diffuse.png"] = []byte("not an image")

	p := NewPipeline(droneRequest(), src)
	require.NoError(t, p.Start(context.Background()))
	pollUntilReady(t, p)

	res, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Textures.Len())
	_, ok := res.Textures.Get(CategoryParts, texture.ChannelNormal)
	assert.False(t, ok)

	st := res.Status
	assert.Equal(t, TexturesDone, st.Textures)
	assert.Equal(t, 3, st.TexturesResolved)
	assert.True(t, st.Degraded())
	assert.Len(t, st.Failures, 2)
	assert.ErrorIs(t, st.Err(), errMissing)
}

func TestPipelineGeometryFailureStillFinishes(t *testing.T) {
	src := droneSource(t)
	src.files["drone.obj"] = []byte("# nothing here\n")

	p := NewPipeline(droneRequest(), src)
	require.NoError(t, p.Start(context.Background()))
	pollUntilReady(t, p)

	res, err := p.Result()
	require.NoError(t, err)
	assert.Nil(t, res.Graph)
	assert.Equal(t, Failed, res.Status.Geometry)
	assert.True(t, res.Status.GeometryLoaded())
	assert.ErrorIs(t, res.Status.Err(), formats.ErrNoGeometry)
}

func TestPipelineMaterialFailureContinues(t *testing.T) {
	src := droneSource(t)
	delete(src.files, "drone.mtl")

	p := NewPipeline(droneRequest(), src)
	require.NoError(t, p.Start(context.Background()))
	pollUntilReady(t, p)

	res, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Status.Materials)
	require.NotNil(t, res.Graph)
	assert.Len(t, res.Status.Failures, 1)
}

func TestPipelineDiscard(t *testing.T) {
	src := droneSource(t)
	release := src.block("drone.obj")

	p := NewPipeline(droneRequest(), src)
	require.NoError(t, p.Start(context.Background()))
	p.Discard()
	assert.True(t, p.Discarded())
	close(release)

	pollFor(t, p, 20*time.Millisecond)
	_, err := p.Result()
	assert.ErrorIs(t, err, ErrStale)
	assert.ErrorIs(t, p.Start(context.Background()), ErrStale)
}

func TestPipelineStartErrors(t *testing.T) {
	p := NewPipeline(Request{}, newFakeSource())
	assert.ErrorIs(t, p.Start(context.Background()), ErrNoMeshAsset)

	p = NewPipeline(droneRequest(), droneSource(t))
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrStarted)
	pollUntilReady(t, p)
}

func TestPollBeforeStart(t *testing.T) {
	p := NewPipeline(droneRequest(), droneSource(t))
	assert.False(t, p.Poll())
	assert.Equal(t, float32(0), p.Status().Progress())
}

func TestRequestFromConfig(t *testing.T) {
	req := RequestFromConfig(config.Default().Asset)
	assert.Equal(t, "models/drone.obj", req.Mesh)
	assert.Equal(t, "models/drone.mtl", req.Material)
	require.Len(t, req.Textures, 10)

	// frame sorts before parts; channels follow texture.Channels.
	assert.Equal(t, CategoryFrame, req.Textures[0].Category)
	assert.Equal(t, texture.ChannelDiffuse, req.Textures[0].Channel)
	assert.Equal(t, CategoryParts, req.Textures[5].Category)
	assert.Equal(t, texture.ChannelHeight, req.Textures[9].Channel)

	cfg := config.AssetConfig{Mesh: "m.obj", Textures: map[string]config.TextureChannels{
		"parts": {"diffuse": "", "normal": "n.png"},
	}}
	req = RequestFromConfig(cfg)
	assert.Len(t, req.Textures, 1)
}

func TestStageStrings(t *testing.T) {
	assert.Equal(t, "textures done", TexturesDone.String())
	assert.Equal(t, "Stage(42)", Stage(42).String())
	assert.True(t, Failed.Resolved())
	assert.False(t, GeometryPending.Resolved())
}
