package formanalysis

import (
	"fmt"
	"image"
)

const (
	DefaultFrameWidth  = 320
	DefaultFrameHeight = 240

	bytesPerPixel = 4
)

// RasterFrame is one captured RGBA grid. It is never modified after capture.
type RasterFrame struct {
	Width  int
	Height int
	// Pix holds Width*Height RGBA samples, 4 bytes per pixel, row major.
	Pix []uint8
}

func NewRasterFrame(width, height int, pix []uint8) (*RasterFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(pix) != width*height*bytesPerPixel {
		return nil, fmt.Errorf("frame %dx%d: expected %d bytes, got %d", width, height, width*height*bytesPerPixel, len(pix))
	}
	return &RasterFrame{
		Width:  width,
		Height: height,
		Pix:    pix,
	}, nil
}

// FrameFromRGBA wraps an RGBA image without copying. The image must be
// tightly packed (stride == 4*width).
func FrameFromRGBA(img *image.RGBA) (*RasterFrame, error) {
	b := img.Bounds()
	if img.Stride != b.Dx()*bytesPerPixel {
		return nil, fmt.Errorf("rgba image not tightly packed: stride %d, width %d", img.Stride, b.Dx())
	}
	return NewRasterFrame(b.Dx(), b.Dy(), img.Pix)
}

func (f *RasterFrame) SameSize(other *RasterFrame) bool {
	return f.Width == other.Width && f.Height == other.Height && len(f.Pix) == len(other.Pix)
}
