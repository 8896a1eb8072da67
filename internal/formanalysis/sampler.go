package formanalysis

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// FrameSource is a live video source handle. Snapshot returns the current
// visual frame, or ErrCaptureUnavailable when the source is not producing
// frames yet. Close stops all underlying tracks.
type FrameSource interface {
	Snapshot() (image.Image, error)
	Close() error
}

// DropCounter is implemented by sources that overwrite frames nobody
// sampled. The count ends up in the session summary.
type DropCounter interface {
	Drops() uint64
}

// Sampler draws the current source frame into a fixed size raster buffer,
// one RasterFrame per call. It keeps no history.
type Sampler struct {
	source FrameSource
	width  int
	height int
	scaler draw.Scaler
	native bool
}

func NewSampler(source FrameSource, width, height int) *Sampler {
	if width <= 0 {
		width = DefaultFrameWidth
	}
	if height <= 0 {
		height = DefaultFrameHeight
	}
	return &Sampler{
		source: source,
		width:  width,
		height: height,
		scaler: draw.NearestNeighbor,
	}
}

// NewNativeSampler keeps frames at the size the source produces them.
// Consecutive frames of different size then surface as ErrDimensionMismatch
// in the estimator.
func NewNativeSampler(source FrameSource) *Sampler {
	return &Sampler{
		source: source,
		native: true,
	}
}

func (s *Sampler) Sample() (*RasterFrame, error) {
	img, err := s.source.Snapshot()
	if err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrCaptureUnavailable
	}
	if rgba, ok := img.(*image.RGBA); ok && !coversBounds(rgba) {
		return nil, fmt.Errorf("%w: %v, stride %d, %d bytes", ErrMalformedFrame, rgba.Rect, rgba.Stride, len(rgba.Pix))
	}

	if s.native {
		return s.sampleNative(img)
	}

	// a fresh buffer per frame: frames are immutable once handed out
	canvas := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	s.scaler.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Src, nil)

	frame, err := FrameFromRGBA(canvas)
	if err != nil {
		return nil, fmt.Errorf("sample frame: %w", err)
	}
	return frame, nil
}

func (s *Sampler) sampleNative(img image.Image) (*RasterFrame, error) {
	b := img.Bounds()
	// sources hand out immutable frames, packed RGBA is used as is
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == b.Dx()*bytesPerPixel {
		return FrameFromRGBA(rgba)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(canvas, image.Point{}, img, b, draw.Src, nil)
	frame, err := FrameFromRGBA(canvas)
	if err != nil {
		return nil, fmt.Errorf("sample frame: %w", err)
	}
	return frame, nil
}

func coversBounds(img *image.RGBA) bool {
	b := img.Bounds()
	if img.Stride <= 0 || b.Dx() > img.Stride/bytesPerPixel {
		return false
	}
	row := b.Dx() * bytesPerPixel
	if row > len(img.Pix) {
		return false
	}
	// every row but the last needs a full stride
	return b.Dy()-1 <= (len(img.Pix)-row)/img.Stride
}
