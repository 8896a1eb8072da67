package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/fxamacker/cbor/v2"
)

const (
	// upper bound for a client frame, 1280x720 RGBA in either orientation
	maxFrameSide   = 1280
	maxFramePixels = 1280 * 720
)

var ErrInvalidFrame = errors.New("invalid frame message")

// FrameMessage is the binary websocket payload carrying one raw RGBA frame.
type FrameMessage struct {
	Width  int    `cbor:"w"`
	Height int    `cbor:"h"`
	Pix    []byte `cbor:"pix"`
}

func DecodeFrame(data []byte) (*image.RGBA, error) {
	var msg FrameMessage
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	// sides are bounded first so the pixel count cannot overflow
	if msg.Width <= 0 || msg.Height <= 0 || msg.Width > maxFrameSide || msg.Height > maxFrameSide ||
		msg.Width*msg.Height > maxFramePixels {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidFrame, msg.Width, msg.Height)
	}
	if len(msg.Pix) != msg.Width*msg.Height*4 {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrInvalidFrame, msg.Width, msg.Height, msg.Width*msg.Height*4, len(msg.Pix))
	}

	return &image.RGBA{
		Pix:    msg.Pix,
		Stride: msg.Width * 4,
		Rect:   image.Rect(0, 0, msg.Width, msg.Height),
	}, nil
}

func EncodeFrame(img *image.RGBA) ([]byte, error) {
	b := img.Bounds()
	pix := img.Pix
	if img.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		packed := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(packed.Pix[y*packed.Stride:(y+1)*packed.Stride], src[:b.Dx()*4])
		}
		pix = packed.Pix
	}

	return cbor.Marshal(FrameMessage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    pix,
	})
}
