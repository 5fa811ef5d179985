package selection

// ClickTracker tells clicks from drags. A press that moves further than the
// threshold before release is a drag and must not select anything.
type ClickTracker struct {
	threshold float32

	down     bool
	dragging bool
	startX   float32
	startY   float32
}

// NewClickTracker returns a tracker with a threshold in pixels.
func NewClickTracker(thresholdPx float32) *ClickTracker {
	return &ClickTracker{threshold: thresholdPx}
}

// Down records a button press.
func (c *ClickTracker) Down(x, y float32) {
	c.down = true
	c.dragging = false
	c.startX, c.startY = x, y
}

// Move records pointer motion and reports whether a drag is in progress.
func (c *ClickTracker) Move(x, y float32) bool {
	if !c.down {
		return false
	}
	if !c.dragging {
		dx, dy := x-c.startX, y-c.startY
		c.dragging = dx*dx+dy*dy > c.threshold*c.threshold
	}
	return c.dragging
}

// Up records the release and reports whether the press was a click.
func (c *ClickTracker) Up(x, y float32) bool {
	if !c.down {
		return false
	}
	drag := c.Move(x, y)
	c.down = false
	c.dragging = false
	return !drag
}

// Dragging reports whether the current press has become a drag.
func (c *ClickTracker) Dragging() bool { return c.dragging }
