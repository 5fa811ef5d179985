package formats

import (
	"errors"
	"fmt"
	"os"
)

// MTLMaterial is one newmtl block of a material library.
type MTLMaterial struct {
	Name      string
	Ambient   [3]float32 // Ka
	Diffuse   [3]float32 // Kd
	Specular  [3]float32 // Ks
	Emissive  [3]float32 // Ke
	Shininess float32    // Ns
	Opacity   float32    // d, or 1 - Tr

	DiffuseMap  string // map_Kd
	NormalMap   string // norm / map_Kn
	BumpMap     string // map_bump / bump
	SpecularMap string // map_Ks
}

// MTL is a parsed material library.
type MTL struct {
	Materials map[string]*MTLMaterial
	// Order holds material names in declaration order.
	Order    []string
	Warnings []string
}

// Get returns the named material, or nil.
func (m *MTL) Get(name string) *MTLMaterial {
	if m == nil {
		return nil
	}
	return m.Materials[name]
}

// ParseMTL parses MTL data. Materials default to white diffuse and full
// opacity.
func ParseMTL(data []byte) (*MTL, error) {
	lib := &MTL{Materials: make(map[string]*MTLMaterial)}
	var cur *MTLMaterial

	err := scanLines(data, func(keyword string, args []string) error {
		if keyword == "newmtl" {
			if len(args) == 0 {
				return errors.New("newmtl without a name")
			}
			name := restOfLine(args)
			cur = &MTLMaterial{Name: name, Diffuse: [3]float32{1, 1, 1}, Opacity: 1}
			if _, dup := lib.Materials[name]; dup {
				lib.Warnings = append(lib.Warnings, fmt.Sprintf("material %q redefined", name))
			} else {
				lib.Order = append(lib.Order, name)
			}
			lib.Materials[name] = cur
			return nil
		}
		if cur == nil {
			return fmt.Errorf("%s before newmtl", keyword)
		}

		switch keyword {
		case "Ka":
			return parseFloats(args, cur.Ambient[:])
		case "Kd":
			return parseFloats(args, cur.Diffuse[:])
		case "Ks":
			return parseFloats(args, cur.Specular[:])
		case "Ke":
			return parseFloats(args, cur.Emissive[:])
		case "Ns":
			v, err := parseScalar(args)
			cur.Shininess = v
			return err
		case "d":
			v, err := parseScalar(args)
			cur.Opacity = v
			return err
		case "Tr":
			v, err := parseScalar(args)
			cur.Opacity = 1 - v
			return err
		case "map_Kd":
			cur.DiffuseMap = mapFile(args)
		case "map_Ks":
			cur.SpecularMap = mapFile(args)
		case "norm", "map_Kn":
			cur.NormalMap = mapFile(args)
		case "map_bump", "map_Bump", "bump":
			cur.BumpMap = mapFile(args)
		case "illum", "Ni", "Tf", "map_Ka", "map_d":
			// Not used by the renderer.
		default:
			lib.Warnings = append(lib.Warnings, fmt.Sprintf("unsupported keyword %q", keyword))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// ParseMTLFile reads and parses an MTL file from disk.
func ParseMTLFile(path string) (*MTL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MTL file: %w", err)
	}
	return ParseMTL(data)
}

// mapFile extracts the file name from a map statement, skipping options
// such as "-bm 0.5" or "-s 1 1 1". The file name is the last argument.
func mapFile(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}
