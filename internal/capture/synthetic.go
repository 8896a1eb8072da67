package capture

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/2beens/fitcoach/internal/formanalysis"
)

// MotionPattern tells whether the block moves on the n-th frame.
type MotionPattern func(n int) bool

// Phases builds a pattern of alternating still and moving spans, starting
// still. Frames past the last span are still.
func Phases(spans ...int) MotionPattern {
	return func(n int) bool {
		moving := false
		for _, span := range spans {
			if n < span {
				return moving
			}
			n -= span
			moving = !moving
		}
		return false
	}
}

func AlwaysMoving(int) bool { return true }

func NeverMoving(int) bool { return false }

// SyntheticSource renders a bright block over a dark background. The block
// shifts horizontally on frames the pattern marks as moving.
type SyntheticSource struct {
	width   int
	height  int
	block   int
	step    int
	warmup  int
	pattern MotionPattern

	mu     sync.Mutex
	frame  int
	x      int
	closed bool
}

type SyntheticParams struct {
	Width  int
	Height int
	// Block is the side of the moving square, Step the shift per moving frame.
	Block int
	Step  int
	// Warmup frames report the capture as unavailable.
	Warmup  int
	Pattern MotionPattern
}

func NewSyntheticSource(params SyntheticParams) *SyntheticSource {
	if params.Width <= 0 {
		params.Width = formanalysis.DefaultFrameWidth
	}
	if params.Height <= 0 {
		params.Height = formanalysis.DefaultFrameHeight
	}
	if params.Block <= 0 {
		params.Block = params.Height / 3
	}
	if params.Step <= 0 {
		params.Step = params.Block / 5
	}
	if params.Pattern == nil {
		params.Pattern = NeverMoving
	}
	return &SyntheticSource{
		width:   params.Width,
		height:  params.Height,
		block:   params.Block,
		step:    params.Step,
		warmup:  params.Warmup,
		pattern: params.Pattern,
	}
}

func (s *SyntheticSource) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, formanalysis.ErrCaptureUnavailable
	}

	n := s.frame
	s.frame++
	if n < s.warmup {
		return nil, formanalysis.ErrCaptureUnavailable
	}
	if s.pattern(n - s.warmup) {
		s.x = (s.x + s.step) % (s.width - s.block)
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	background := color.RGBA{R: 30, G: 30, B: 30, A: 255}
	foreground := color.RGBA{R: 230, G: 220, B: 200, A: 255}
	top := (s.height - s.block) / 2
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			c := background
			if x >= s.x && x < s.x+s.block && y >= top && y < top+s.block {
				c = foreground
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SyntheticSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SyntheticDevice hands out one synthetic source per Acquire, or fails with
// Err when set.
type SyntheticDevice struct {
	Params SyntheticParams
	Err    error

	mu      sync.Mutex
	sources []*SyntheticSource
}

func (d *SyntheticDevice) Acquire(ctx context.Context) (formanalysis.FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}

	source := NewSyntheticSource(d.Params)
	d.mu.Lock()
	d.sources = append(d.sources, source)
	d.mu.Unlock()
	return source, nil
}

// Sources returns every source acquired so far.
func (d *SyntheticDevice) Sources() []*SyntheticSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*SyntheticSource(nil), d.sources...)
}
