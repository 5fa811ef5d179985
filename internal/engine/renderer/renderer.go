// Package renderer draws a scene tree with OpenGL. It is a plain forward
// renderer: one pass, ambient plus point lights. Of the material maps only
// the diffuse map is sampled.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/engine/camera"
	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/internal/engine/shader"
	"github.com/Faultbox/drone-explorer/internal/engine/texture"
	"github.com/Faultbox/drone-explorer/internal/logger"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

const vertexSrc = `#version 410 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aUV;

uniform mat4 uModel;
uniform mat4 uViewProj;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;

void main() {
	vec4 world = uModel * vec4(aPos, 1.0);
	vWorldPos = world.xyz;
	vNormal = mat3(transpose(inverse(uModel))) * aNormal;
	vUV = aUV;
	gl_Position = uViewProj * world;
}
`

const fragmentSrc = `#version 410 core
#define MAX_POINT_LIGHTS 8

in vec3 vWorldPos;
in vec3 vNormal;
in vec2 vUV;

uniform vec3 uColor;
uniform vec3 uEmissive;
uniform float uMetalness;
uniform float uRoughness;
uniform float uOpacity;
uniform bool uHasMap;
uniform sampler2D uMap;

uniform vec3 uAmbient;
uniform int uPointCount;
uniform vec3 uPointPos[MAX_POINT_LIGHTS];
uniform vec3 uPointColor[MAX_POINT_LIGHTS];
uniform vec3 uCameraPos;

out vec4 FragColor;

void main() {
	vec3 base = uColor;
	if (uHasMap) {
		base *= texture(uMap, vUV).rgb;
	}
	vec3 n = normalize(vNormal);
	vec3 v = normalize(uCameraPos - vWorldPos);
	float shininess = mix(64.0, 4.0, uRoughness);
	vec3 spec = mix(vec3(0.04), base, uMetalness);

	vec3 color = uAmbient * base;
	for (int i = 0; i < uPointCount; i++) {
		vec3 l = normalize(uPointPos[i] - vWorldPos);
		float diff = abs(dot(n, l));
		vec3 h = normalize(l + v);
		float s = pow(max(dot(n, h), 0.0), shininess);
		color += uPointColor[i] * (diff * base * (1.0 - uMetalness) + s * spec);
	}
	FragColor = vec4(color + uEmissive, uOpacity);
}
`

// floatsPerVertex is position, normal and uv.
const floatsPerVertex = 3 + 3 + 2

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

type meshBuffers struct {
	vao, vbo uint32
	count    int32
	version  int
}

// Renderer draws scene trees. It must be used from the GL thread.
type Renderer struct {
	config  Config
	log     *zap.Logger
	program *shader.Program

	meshes   map[*scene.Geometry]*meshBuffers
	textures map[*texture.Image]bool
}

// New creates a renderer. The GL context must already be current.
func New(cfg Config, log *zap.Logger) (*Renderer, error) {
	log = logger.OrNop(log)
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)

	program, err := shader.New(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}

	r := &Renderer{
		config:   cfg,
		log:      log,
		program:  program,
		meshes:   make(map[*scene.Geometry]*meshBuffers),
		textures: make(map[*texture.Image]bool),
	}
	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// Close frees every GPU resource the renderer created.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	for geom, b := range r.meshes {
		gl.DeleteVertexArrays(1, &b.vao)
		gl.DeleteBuffers(1, &b.vbo)
		geom.Handle = 0
	}
	r.meshes = nil
	for img := range r.textures {
		gl.DeleteTextures(1, &img.Handle)
		img.Handle = 0
	}
	r.textures = nil
	r.program.Delete()
}

// Resize updates the viewport.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// ReadPixels returns the current back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, w, h
}

// Draw clears the frame and draws every visible mesh under root.
func (r *Renderer) Draw(root *scene.Node, cam *camera.Perspective) {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	if root == nil || cam == nil {
		return
	}

	r.program.Use()
	r.program.SetMat4("uViewProj", cam.ViewProjection())
	r.program.SetVec3("uCameraPos", cam.Position())
	r.setLights(scene.CollectLights(root))
	r.program.SetInt("uMap", 0)

	r.drawNode(root)
}

func (r *Renderer) setLights(lights []scene.Light) {
	var ambient math.Vec3
	points := int32(0)
	for _, l := range lights {
		radiance := l.Color.Scale(l.Intensity)
		switch l.Type {
		case scene.AmbientLight:
			ambient = ambient.Add(radiance)
		case scene.PointLight:
			if points == scene.MaxPointLights {
				continue
			}
			r.program.SetVec3(fmt.Sprintf("uPointPos[%d]", points), l.Position)
			r.program.SetVec3(fmt.Sprintf("uPointColor[%d]", points), radiance)
			points++
		}
	}
	r.program.SetVec3("uAmbient", ambient)
	r.program.SetInt("uPointCount", points)
}

func (r *Renderer) drawNode(n *scene.Node) {
	if !n.Visible {
		return
	}
	if n.IsMesh() {
		r.drawMesh(n)
		return
	}
	for _, c := range n.Children() {
		r.drawNode(c)
	}
}

func (r *Renderer) drawMesh(n *scene.Node) {
	mesh := n.Mesh()
	if mesh.Geometry == nil || mesh.Geometry.TriangleCount() == 0 {
		return
	}
	b := r.upload(mesh.Geometry)

	mat := mesh.Material
	if mat == nil {
		mat = scene.NewMaterial("")
	}
	r.program.SetMat4("uModel", n.WorldMatrix())
	r.program.SetVec3("uColor", mat.Color)
	r.program.SetVec3("uEmissive", mat.Emissive)
	r.program.SetFloat("uMetalness", mat.Metalness)
	r.program.SetFloat("uRoughness", mat.Roughness)
	r.program.SetFloat("uOpacity", mat.Opacity)

	gl.ActiveTexture(gl.TEXTURE0)
	if mat.Map != nil && mesh.Geometry.HasUVs() {
		gl.BindTexture(gl.TEXTURE_2D, r.uploadTexture(mat.Map))
		r.program.SetInt("uHasMap", 1)
	} else {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		r.program.SetInt("uHasMap", 0)
	}

	gl.BindVertexArray(b.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, b.count)
	gl.BindVertexArray(0)
}

// upload creates or refreshes the vertex buffer of geom.
func (r *Renderer) upload(geom *scene.Geometry) *meshBuffers {
	b, ok := r.meshes[geom]
	if ok && b.version == geom.Version {
		return b
	}
	if !ok {
		b = &meshBuffers{}
		gl.GenVertexArrays(1, &b.vao)
		gl.GenBuffers(1, &b.vbo)
		r.meshes[geom] = b
	}

	data := interleave(geom)
	gl.BindVertexArray(b.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), gl.STATIC_DRAW)

	stride := int32(floatsPerVertex * 4)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, unsafe.Pointer(uintptr(3*4)))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, stride, unsafe.Pointer(uintptr(6*4)))
	gl.EnableVertexAttribArray(2)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	b.count = int32(len(geom.Positions))
	b.version = geom.Version
	geom.Handle = b.vao
	r.log.Debug("mesh uploaded", zap.Uint32("vao", b.vao), zap.Int32("vertices", b.count))
	return b
}

func interleave(geom *scene.Geometry) []float32 {
	hasNormals := len(geom.Normals) == len(geom.Positions)
	hasUVs := geom.HasUVs()
	data := make([]float32, 0, len(geom.Positions)*floatsPerVertex)
	for i, p := range geom.Positions {
		n := math.UnitY
		if hasNormals {
			n = geom.Normals[i]
		}
		var uv [2]float32
		if hasUVs {
			uv = geom.UVs[i]
		}
		data = append(data, p.X, p.Y, p.Z, n.X, n.Y, n.Z, uv[0], uv[1])
	}
	return data
}

// uploadTexture returns the GL texture for img, creating it on first use.
func (r *Renderer) uploadTexture(img *texture.Image) uint32 {
	if img.Handle != 0 {
		return img.Handle
	}
	internal := int32(gl.RGBA8)
	if img.ColorSpace == texture.SRGB {
		internal = gl.SRGB8_ALPHA8
	}
	gl.GenTextures(1, &img.Handle)
	gl.BindTexture(gl.TEXTURE_2D, img.Handle)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(img.Width()), int32(img.Height()), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.RGBA.Pix[0]))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	r.textures[img] = true
	return img.Handle
}

// Purge frees buffers and textures that nothing under root uses any more.
// Call it after the scene has been rebuilt.
func (r *Renderer) Purge(root *scene.Node) {
	liveGeom := make(map[*scene.Geometry]bool)
	liveTex := make(map[*texture.Image]bool)
	if root != nil {
		for _, leaf := range root.MeshLeaves() {
			mesh := leaf.Mesh()
			liveGeom[mesh.Geometry] = true
			if mesh.Material != nil && mesh.Material.Map != nil {
				liveTex[mesh.Material.Map] = true
			}
		}
	}
	for geom, b := range r.meshes {
		if liveGeom[geom] {
			continue
		}
		gl.DeleteVertexArrays(1, &b.vao)
		gl.DeleteBuffers(1, &b.vbo)
		geom.Handle = 0
		delete(r.meshes, geom)
	}
	for img := range r.textures {
		if liveTex[img] {
			continue
		}
		gl.DeleteTextures(1, &img.Handle)
		img.Handle = 0
		delete(r.textures, img)
	}
}
