// Package texture decodes texture images and tags them with the color space
// the renderer should sample them in.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ColorSpace tells the renderer how texel values are encoded.
type ColorSpace int

const (
	// Linear texels are sampled as-is (normal, metalness, roughness, height).
	Linear ColorSpace = iota
	// SRGB texels are gamma encoded (diffuse color maps).
	SRGB
)

func (c ColorSpace) String() string {
	if c == SRGB {
		return "srgb"
	}
	return "linear"
}

// Texture channels used by the part materials.
const (
	ChannelDiffuse   = "diffuse"
	ChannelNormal    = "normal"
	ChannelMetalness = "metalness"
	ChannelRoughness = "roughness"
	ChannelHeight    = "height"
)

// Channels lists every channel in a stable order.
var Channels = []string{ChannelDiffuse, ChannelNormal, ChannelMetalness, ChannelRoughness, ChannelHeight}

// ColorSpaceFor returns the color space a channel is authored in.
func ColorSpaceFor(channel string) ColorSpace {
	if channel == ChannelDiffuse {
		return SRGB
	}
	return Linear
}

// Image is a decoded texture ready for upload.
type Image struct {
	Name       string
	ColorSpace ColorSpace
	RGBA       *image.RGBA

	// Handle is set by the renderer once the image lives on the GPU.
	Handle uint32
}

// Width returns the image width in pixels.
func (i *Image) Width() int { return i.RGBA.Rect.Dx() }

// Height returns the image height in pixels.
func (i *Image) Height() int { return i.RGBA.Rect.Dy() }

// Decode decodes data named name. TGA is detected by extension since the
// format has no magic number; everything else goes through image.Decode.
func Decode(name string, data []byte, space ColorSpace) (*Image, error) {
	var rgba *image.RGBA
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		rgba = img
	} else {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		rgba = ToRGBA(img)
	}
	return &Image{Name: name, ColorSpace: space, RGBA: rgba}, nil
}

// ToRGBA converts any image.Image to *image.RGBA anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
