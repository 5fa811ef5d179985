package assembly

import (
	"sort"
	"strings"

	"github.com/Faultbox/drone-explorer/internal/engine/scene"
)

// EntireModel is the selection name that stands for the whole assembly.
const EntireModel = "entire_model"

// PartNode is one classified mesh leaf.
type PartNode struct {
	Name string
	Node *scene.Node

	IsPropeller bool
	IsFrameLike bool

	// Original is the material tint the leaf had after assembly. Highlighting
	// restores it.
	Original scene.Tint
}

// PartIndex is the read-only result of one assembly pass. Parts keep
// traversal order.
type PartIndex struct {
	parts      []*PartNode
	byName     map[string]*PartNode
	propellers map[string]*PartNode
	propOrder  []*PartNode
}

func newPartIndex() *PartIndex {
	return &PartIndex{
		byName:     make(map[string]*PartNode),
		propellers: make(map[string]*PartNode),
	}
}

// add registers p. Names are unique after assembly; should a duplicate get
// here anyway, lookups keep the first and add reports false.
func (idx *PartIndex) add(p *PartNode) bool {
	idx.parts = append(idx.parts, p)
	if p.IsPropeller {
		if _, dup := idx.propellers[p.Name]; !dup {
			idx.propellers[p.Name] = p
			idx.propOrder = append(idx.propOrder, p)
		}
	}
	if _, dup := idx.byName[p.Name]; dup {
		return false
	}
	idx.byName[p.Name] = p
	return true
}

// Len returns the number of parts.
func (idx *PartIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.parts)
}

// Parts returns every part in traversal order.
func (idx *PartIndex) Parts() []*PartNode {
	if idx == nil {
		return nil
	}
	return append([]*PartNode(nil), idx.parts...)
}

// Lookup finds a part by name.
func (idx *PartIndex) Lookup(name string) (*PartNode, bool) {
	if idx == nil {
		return nil, false
	}
	p, ok := idx.byName[name]
	return p, ok
}

// Propeller finds a propeller by name.
func (idx *PartIndex) Propeller(name string) (*PartNode, bool) {
	if idx == nil {
		return nil, false
	}
	p, ok := idx.propellers[name]
	return p, ok
}

// Propellers returns the propeller parts in traversal order.
func (idx *PartIndex) Propellers() []*PartNode {
	if idx == nil {
		return nil
	}
	return append([]*PartNode(nil), idx.propOrder...)
}

// PartFor returns the part whose leaf is n.
func (idx *PartIndex) PartFor(n *scene.Node) (*PartNode, bool) {
	if idx == nil || n == nil {
		return nil, false
	}
	for _, p := range idx.parts {
		if p.Node == n {
			return p, true
		}
	}
	return nil, false
}

// Names returns part names in traversal order without duplicates.
func (idx *PartIndex) Names() []string {
	if idx == nil {
		return nil
	}
	names := make([]string, 0, len(idx.byName))
	seen := make(map[string]bool, len(idx.byName))
	for _, p := range idx.parts {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return names
}

// Entry is one row of the part list shown to the user.
type Entry struct {
	Name  string // selection key
	Label string
}

// DisplayNames returns the part list for display: sorted by name, with
// empty and "undefined" names removed.
func (idx *PartIndex) DisplayNames() []Entry {
	var out []Entry
	for _, name := range idx.Names() {
		if name == "" || name == "undefined" {
			continue
		}
		out = append(out, Entry{Name: name, Label: DisplayName(name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DisplayName strips the exporter's GEO_ prefix.
func DisplayName(name string) string {
	return strings.TrimPrefix(name, "GEO_")
}
