package formanalysis

import (
	"fmt"
	"math"
)

const (
	// every 10th pixel, 4 bytes per pixel
	sampleStride = 10 * bytesPerPixel
	// summed |dR|+|dG|+|dB| above which a sampled pixel counts as changed
	pixelDiffThreshold = 30
	// display amplification of the raw percentage, progress bar only
	displayScale = 5
)

// Motion is the result of comparing two consecutive frames.
type Motion struct {
	// Raw is the percentage of sampled pixel positions that changed, [0, 100].
	// Classification always uses Raw.
	Raw float64 `json:"raw"`
	// Sample is Raw scaled for visualization and clamped to 100.
	Sample float64 `json:"sample"`
}

// Compare computes the motion between prev and cur. Frames of different size
// are a programming error and yield ErrDimensionMismatch.
func Compare(prev, cur *RasterFrame) (Motion, error) {
	if prev == nil || cur == nil {
		return Motion{}, fmt.Errorf("compare: nil frame")
	}
	if !prev.SameSize(cur) {
		return Motion{}, fmt.Errorf(
			"%w: previous %dx%d, current %dx%d",
			ErrDimensionMismatch, prev.Width, prev.Height, cur.Width, cur.Height,
		)
	}

	prevPix, curPix := prev.Pix, cur.Pix
	sampled, changed := 0, 0
	for i := 0; i+2 < len(curPix); i += sampleStride {
		sampled++
		diff := absDiff(curPix[i], prevPix[i]) +
			absDiff(curPix[i+1], prevPix[i+1]) +
			absDiff(curPix[i+2], prevPix[i+2])
		if diff > pixelDiffThreshold {
			changed++
		}
	}
	if sampled == 0 {
		return Motion{}, nil
	}

	raw := float64(changed) / float64(sampled) * 100
	return Motion{
		Raw:    raw,
		Sample: math.Min(100, raw*displayScale),
	}, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Estimator holds exactly one previous frame and compares every new frame
// against it.
type Estimator struct {
	previous *RasterFrame
}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// Observe compares cur with the previous frame and then replaces the previous
// frame with cur. ok is false on the first observation, when there is nothing
// to compare against. On error the previous frame is left untouched.
func (e *Estimator) Observe(cur *RasterFrame) (_ Motion, ok bool, err error) {
	if e.previous == nil {
		e.previous = cur
		return Motion{}, false, nil
	}

	motion, err := Compare(e.previous, cur)
	if err != nil {
		return Motion{}, false, err
	}
	e.previous = cur
	return motion, true, nil
}

// Reset discards the previous frame.
func (e *Estimator) Reset() {
	e.previous = nil
}
