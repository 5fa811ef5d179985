// Package capture saves rendered frames as PNG files.
package capture

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// Capturer writes timestamped PNGs into a directory.
type Capturer struct {
	dir    string
	prefix string
	now    func() time.Time
}

// New returns a Capturer writing "<prefix>_<timestamp>.png" files into dir.
// An empty dir means the working directory.
func New(dir, prefix string) *Capturer {
	return &Capturer{dir: dir, prefix: prefix, now: time.Now}
}

// Filename is the path the next capture would be written to.
func (c *Capturer) Filename() string {
	name := fmt.Sprintf("%s_%s.png", c.prefix, c.now().Format("2006-01-02_15-04-05.000"))
	if c.dir != "" {
		name = filepath.Join(c.dir, name)
	}
	return name
}

// SaveFramebuffer writes RGBA pixels read back from OpenGL. Rows arrive
// bottom-up and are flipped so the file is top-down.
func (c *Capturer) SaveFramebuffer(pixels []byte, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("capture: invalid size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("capture: pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	return c.Save(img)
}

// Save writes img and returns the file name.
func (c *Capturer) Save(img image.Image) (string, error) {
	if c.dir != "" {
		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			return "", fmt.Errorf("capture: creating output dir: %w", err)
		}
	}

	name := c.Filename()
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("capture: encoding PNG: %w", err)
	}
	return name, f.Close()
}
