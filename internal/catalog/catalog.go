// Package catalog holds the human-readable descriptions of known parts.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed parts.yaml
var builtin []byte

// Entry describes one part.
type Entry struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Specs       []string `yaml:"specs"`
	// Generated is set for entries made up from the part name.
	Generated bool `yaml:"-"`
}

// Catalog maps part names to entries.
type Catalog struct {
	entries map[string]Entry
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in parts.yaml: %v", err))
	}
	return c
}

// Parse reads a catalog from YAML keyed by part name.
func Parse(data []byte) (*Catalog, error) {
	entries := make(map[string]Entry)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return &Catalog{entries: entries}, nil
}

// LoadFile reads a catalog file and layers it over the built-in entries.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	extra, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c := Default()
	for name, e := range extra.entries {
		c.entries[name] = e
	}
	return c, nil
}

// Lookup returns the stored entry for name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Describe returns the entry for name, generating one for unknown parts.
func (c *Catalog) Describe(name string) Entry {
	if e, ok := c.entries[name]; ok {
		return e
	}
	return Generate(name)
}

// Len returns the number of stored entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Generate builds a generic entry from a part name: "GEO_landing_gear"
// becomes "Landing gear".
func Generate(name string) Entry {
	title := strings.ReplaceAll(strings.Replace(name, "GEO_", "", 1), "_", " ")
	if r, size := utf8.DecodeRuneInString(title); r != utf8.RuneError {
		title = string(unicode.ToUpper(r)) + title[size:]
	}
	return Entry{
		Title: title,
		Description: fmt.Sprintf("This is a %s component of the drone. It contributes to the overall structure and functionality of the aircraft.",
			strings.ToLower(title)),
		Specs:     []string{"Material: Composite", "Weight: Variable"},
		Generated: true,
	}
}
