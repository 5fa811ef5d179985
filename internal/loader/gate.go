package loader

import "sync"

// Gate is a counted completion barrier. It fires once after exactly total
// resolutions, whatever their outcome and order. A gate for zero loads fires
// as soon as it is created.
type Gate struct {
	mu       sync.Mutex
	total    int
	resolved int
	fired    bool
	onFire   func()
}

// NewGate returns a gate waiting for n resolutions. onFire may be nil; when
// set it runs exactly once, on the goroutine that performs the last Resolve.
func NewGate(n int, onFire func()) *Gate {
	if n < 0 {
		n = 0
	}
	g := &Gate{total: n, onFire: onFire}
	if n == 0 {
		g.fire()
	}
	return g
}

// Resolve records one finished load. It reports whether this call fired the
// gate. Resolutions beyond the total are ignored.
func (g *Gate) Resolve() bool {
	g.mu.Lock()
	if g.fired || g.resolved >= g.total {
		g.mu.Unlock()
		return false
	}
	g.resolved++
	if g.resolved < g.total {
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()
	g.fire()
	return true
}

func (g *Gate) fire() {
	g.mu.Lock()
	g.fired = true
	fn := g.onFire
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Fired reports whether every load has resolved.
func (g *Gate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}

// Count returns how many loads have resolved.
func (g *Gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolved
}

// Total returns the number of loads the gate waits for.
func (g *Gate) Total() int {
	return g.total
}
