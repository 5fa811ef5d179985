package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

const tgaHeaderSize = 18

// DecodeTGA decodes a TGA image file. Supports uncompressed true-color
// (type 2) and RLE compressed (type 10) images at 24 or 32 bits per pixel.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, errors.New("TGA data too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := int(data[2])
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	// Bit 5 of the descriptor marks top-to-bottom row order.
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, errors.New("color-mapped TGA not supported")
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("unsupported TGA bit depth %d", bpp)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, errors.New("TGA data truncated")
	}

	d := tgaDecoder{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		width:       width,
		height:      height,
		stride:      bpp / 8,
		topToBottom: topToBottom,
	}

	if imageType == TGATypeUncompressed {
		if len(d.src) < width*height*d.stride {
			return nil, errors.New("TGA pixel data truncated")
		}
		for n := 0; n < width*height; n++ {
			d.put(n, d.read())
		}
		return d.img, nil
	}

	d.decodeRLE()
	return d.img, nil
}

type tgaDecoder struct {
	img           *image.RGBA
	src           []byte
	pos           int
	width, height int
	stride        int
	topToBottom   bool
}

// read consumes one BGR(A) pixel.
func (d *tgaDecoder) read() color.RGBA {
	p := d.src[d.pos : d.pos+d.stride]
	d.pos += d.stride
	c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if d.stride == 4 {
		c.A = p[3]
	}
	return c
}

func (d *tgaDecoder) remaining() bool {
	return d.pos+d.stride <= len(d.src)
}

// put stores the n-th pixel in file order.
func (d *tgaDecoder) put(n int, c color.RGBA) {
	x, y := n%d.width, n/d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	d.img.SetRGBA(x, y, c)
}

// decodeRLE stops quietly on truncated input, leaving the rest transparent.
func (d *tgaDecoder) decodeRLE() {
	total := d.width * d.height
	n := 0
	for n < total && d.pos < len(d.src) {
		packet := d.src[d.pos]
		d.pos++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			if !d.remaining() {
				return
			}
			c := d.read()
			for i := 0; i < count && n < total; i++ {
				d.put(n, c)
				n++
			}
			continue
		}

		for i := 0; i < count && n < total; i++ {
			if !d.remaining() {
				return
			}
			d.put(n, d.read())
			n++
		}
	}
}
