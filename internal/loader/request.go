package loader

import (
	"sort"

	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/engine/texture"
)

// Texture categories.
const (
	CategoryParts = "parts"
	CategoryFrame = "frame"
)

// Request names everything one load cycle fetches. It is not modified after
// the pipeline starts.
type Request struct {
	Mesh string
	// Material is optional; an empty path satisfies the material stage
	// immediately.
	Material string
	Textures []TextureRef
}

// TextureRef is one requested texture slot.
type TextureRef struct {
	Category string
	Channel  string
	Path     string
}

// RequestFromConfig builds a request from asset configuration. Texture slots
// are ordered by category, then by channel. Empty paths are skipped.
func RequestFromConfig(cfg config.AssetConfig) Request {
	req := Request{Mesh: cfg.Mesh, Material: cfg.Material}

	categories := make([]string, 0, len(cfg.Textures))
	for c := range cfg.Textures {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		channels := cfg.Textures[category]
		for _, ch := range texture.Channels {
			if path := channels[ch]; path != "" {
				req.Textures = append(req.Textures, TextureRef{Category: category, Channel: ch, Path: path})
			}
		}
	}
	return req
}

type slotKey struct {
	category string
	channel  string
}

// TextureSet holds the textures that loaded successfully. A slot that failed
// or was never requested is missing.
type TextureSet struct {
	images map[slotKey]*texture.Image
}

// NewTextureSet returns an empty set.
func NewTextureSet() *TextureSet {
	return &TextureSet{images: make(map[slotKey]*texture.Image)}
}

// Get returns the texture for a category and channel.
func (s *TextureSet) Get(category, channel string) (*texture.Image, bool) {
	if s == nil {
		return nil, false
	}
	img, ok := s.images[slotKey{category, channel}]
	return img, ok
}

// Category returns the loaded channels of one category.
func (s *TextureSet) Category(category string) map[string]*texture.Image {
	out := make(map[string]*texture.Image)
	if s == nil {
		return out
	}
	for k, img := range s.images {
		if k.category == category {
			out[k.channel] = img
		}
	}
	return out
}

// Len returns the number of loaded textures.
func (s *TextureSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.images)
}

// Put stores img in a slot, replacing any previous texture.
func (s *TextureSet) Put(category, channel string, img *texture.Image) {
	s.images[slotKey{category, channel}] = img
}
