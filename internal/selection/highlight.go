package selection

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/assembly"
	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/internal/logger"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// Observer receives the selected part name, or "" when nothing is selected.
type Observer func(name string)

// Highlighter tints the selected part and restores the previous one.
type Highlighter struct {
	tint scene.Tint
	log  *zap.Logger

	current *assembly.PartNode

	mu        sync.Mutex
	observers []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Observer
}

// NewHighlighter uses the highlight colors from cfg.
func NewHighlighter(cfg config.SelectionConfig, log *zap.Logger) *Highlighter {
	log = logger.OrNop(log)
	return &Highlighter{
		tint: scene.Tint{
			Color:    math.FromArray(cfg.HighlightColor),
			Emissive: math.FromArray(cfg.HighlightEmissive),
		},
		log: log,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (h *Highlighter) Subscribe(fn Observer) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.observers = append(h.observers, subscription{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.observers {
			if s.id == id {
				h.observers = append(h.observers[:i:i], h.observers[i+1:]...)
				return
			}
		}
	}
}

func (h *Highlighter) notify(name string) {
	h.mu.Lock()
	subs := append([]subscription(nil), h.observers...)
	h.mu.Unlock()
	for _, s := range subs {
		s.fn(name)
	}
}

// Current returns the highlighted part, or nil.
func (h *Highlighter) Current() *assembly.PartNode { return h.current }

// Highlight selects part. The previously highlighted part gets its original
// tint back. Highlighting the current part again does nothing.
func (h *Highlighter) Highlight(part *assembly.PartNode) {
	if part == nil {
		h.Clear()
		return
	}
	if part == h.current {
		return
	}
	h.restore()
	if mat := material(part); mat != nil {
		mat.SetTint(h.tint)
	}
	h.current = part
	h.log.Debug("part highlighted", zap.String("part", part.Name))
	h.notify(part.Name)
}

// Clear removes the highlight and notifies observers that nothing is
// selected.
func (h *Highlighter) Clear() {
	h.restore()
	h.current = nil
	h.notify("")
}

// Forget drops the current part without touching its material, for when
// the part's node has been discarded.
func (h *Highlighter) Forget() {
	h.current = nil
}

func (h *Highlighter) restore() {
	if h.current == nil {
		return
	}
	if mat := material(h.current); mat != nil {
		mat.SetTint(h.current.Original)
	}
}

func material(part *assembly.PartNode) *scene.Material {
	if part.Node == nil || part.Node.Mesh() == nil {
		return nil
	}
	return part.Node.Mesh().Material
}
