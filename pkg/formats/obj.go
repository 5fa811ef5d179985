package formats

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OBJ format errors.
var (
	ErrNoGeometry   = errors.New("OBJ contains no faces")
	ErrInvalidIndex = errors.New("invalid OBJ vertex index")
)

// OBJ is a parsed Wavefront OBJ file.
type OBJ struct {
	MaterialLibs []string
	Objects      []*OBJObject
	Warnings     []string
}

// OBJObject is one named object or group, flattened into a triangle list.
// Every three consecutive entries of Positions form one triangle.
type OBJObject struct {
	Name     string
	Material string
	// Materials lists every usemtl seen inside the object, in order.
	Materials []string

	Positions [][3]float32
	// Normals is nil when any face vertex lacks a normal.
	Normals [][3]float32
	// UVs is nil when any face vertex lacks a texture coordinate.
	UVs [][2]float32
}

// TriangleCount returns the number of triangles in the object.
func (o *OBJObject) TriangleCount() int {
	return len(o.Positions) / 3
}

// HasUVs reports whether every vertex carries a texture coordinate.
func (o *OBJObject) HasUVs() bool {
	return len(o.UVs) > 0 && len(o.UVs) == len(o.Positions)
}

type objParser struct {
	obj *OBJ

	positions [][3]float32
	normals   [][3]float32
	uvs       [][2]float32

	current  *OBJObject
	material string
	// missingUV/missingNormal record whether any face of the current object
	// omitted the attribute.
	missingUV     bool
	missingNormal bool
}

// ParseOBJ parses OBJ data. Polygons are fan-triangulated. Objects (o) and
// groups (g) both start a new OBJObject.
func ParseOBJ(data []byte) (*OBJ, error) {
	p := &objParser{obj: &OBJ{}}
	if err := scanLines(data, p.line); err != nil {
		return nil, err
	}
	p.finish()

	faces := 0
	for _, o := range p.obj.Objects {
		faces += o.TriangleCount()
	}
	if faces == 0 {
		return nil, ErrNoGeometry
	}
	return p.obj, nil
}

// ParseOBJFile reads and parses an OBJ file from disk.
func ParseOBJFile(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ file: %w", err)
	}
	return ParseOBJ(data)
}

func (p *objParser) line(keyword string, args []string) error {
	switch keyword {
	case "v":
		var v [3]float32
		if err := parseFloats(args, v[:]); err != nil {
			return fmt.Errorf("vertex: %w", err)
		}
		p.positions = append(p.positions, v)
	case "vn":
		var n [3]float32
		if err := parseFloats(args, n[:]); err != nil {
			return fmt.Errorf("normal: %w", err)
		}
		p.normals = append(p.normals, n)
	case "vt":
		var uv [2]float32
		// A single coordinate is legal; v defaults to 0.
		if len(args) == 1 {
			args = append(args, "0")
		}
		if err := parseFloats(args, uv[:]); err != nil {
			return fmt.Errorf("texcoord: %w", err)
		}
		p.uvs = append(p.uvs, uv)
	case "f":
		return p.face(args)
	case "o", "g":
		p.begin(restOfLine(args))
	case "usemtl":
		p.material = restOfLine(args)
		if o := p.current; o != nil {
			switch {
			case len(o.Positions) == 0 || o.Material == "":
				o.Material = p.material
			case o.Material != p.material:
				p.warn("object %q switches material to %q; keeping %q", o.Name, p.material, o.Material)
			}
			o.Materials = append(o.Materials, p.material)
		}
	case "mtllib":
		if len(args) == 0 {
			return errors.New("mtllib without a file name")
		}
		p.obj.MaterialLibs = append(p.obj.MaterialLibs, restOfLine(args))
	case "s", "l", "p":
		// Smoothing groups, lines and points do not affect triangle output.
	default:
		p.warn("unsupported keyword %q", keyword)
	}
	return nil
}

// begin closes the current object and starts a new one. An empty object
// started by a preceding o/g line is renamed instead of kept.
func (p *objParser) begin(name string) {
	if p.current != nil && len(p.current.Positions) == 0 {
		p.current.Name = name
		return
	}
	p.finish()
	p.current = &OBJObject{Name: name, Material: p.material}
	if p.material != "" {
		p.current.Materials = []string{p.material}
	}
	p.obj.Objects = append(p.obj.Objects, p.current)
}

// finish drops partial attribute arrays from the current object.
func (p *objParser) finish() {
	o := p.current
	if o == nil {
		return
	}
	if p.missingUV {
		o.UVs = nil
	}
	if p.missingNormal {
		o.Normals = nil
	}
	p.missingUV = false
	p.missingNormal = false
}

type faceVertex struct {
	v, vt, vn int // vt/vn are -1 when absent
}

func (p *objParser) face(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("face with %d vertices", len(args))
	}
	if p.current == nil {
		// Faces before any o/g belong to an anonymous object.
		p.begin("")
	}

	verts := make([]faceVertex, len(args))
	for i, arg := range args {
		fv, err := p.faceVertex(arg)
		if err != nil {
			return err
		}
		verts[i] = fv
	}

	for i := 1; i+1 < len(verts); i++ {
		for _, fv := range [3]faceVertex{verts[0], verts[i], verts[i+1]} {
			p.emit(fv)
		}
	}
	return nil
}

func (p *objParser) emit(fv faceVertex) {
	o := p.current
	o.Positions = append(o.Positions, p.positions[fv.v])

	if fv.vt >= 0 {
		o.UVs = append(o.UVs, p.uvs[fv.vt])
	} else {
		p.missingUV = true
	}
	if fv.vn >= 0 {
		o.Normals = append(o.Normals, p.normals[fv.vn])
	} else {
		p.missingNormal = true
	}
}

// faceVertex parses "v", "v/vt", "v//vn" or "v/vt/vn".
func (p *objParser) faceVertex(s string) (faceVertex, error) {
	parts := strings.Split(s, "/")
	fv := faceVertex{vt: -1, vn: -1}

	var err error
	if fv.v, err = resolveIndex(parts[0], len(p.positions)); err != nil {
		return fv, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if fv.vt, err = resolveIndex(parts[1], len(p.uvs)); err != nil {
			return fv, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if fv.vn, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return fv, err
		}
	}
	return fv, nil
}

// resolveIndex converts a 1-based (or negative, relative) OBJ index into a
// 0-based index into an array of length n.
func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, s)
	}
	switch {
	case i > 0:
		i--
	case i < 0:
		i += n
	default:
		return 0, fmt.Errorf("%w: zero", ErrInvalidIndex)
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: %s out of range (have %d)", ErrInvalidIndex, s, n)
	}
	return i, nil
}

func (p *objParser) warn(format string, args ...any) {
	p.obj.Warnings = append(p.obj.Warnings, fmt.Sprintf(format, args...))
}
