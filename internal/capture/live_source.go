package capture

import (
	"errors"
	"image"
	"sync"

	"github.com/2beens/fitcoach/internal/formanalysis"
)

var ErrSourceClosed = errors.New("frame source closed")

var _ formanalysis.DropCounter = (*LiveSource)(nil)

// LiveSource is a single slot mailbox for frames pushed by a client. A new
// frame overwrites the previous one; overwriting a frame nobody sampled
// counts as a drop.
type LiveSource struct {
	mu       sync.Mutex
	latest   *image.RGBA
	consumed bool
	drops    uint64
	closed   bool
	onClose  func()
	onDrop   func()
}

func NewLiveSource(onClose func()) *LiveSource {
	return &LiveSource{
		onClose: onClose,
	}
}

// Publish stores img as the current frame. img must not be modified after
// the call.
func (s *LiveSource) Publish(img *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.latest != nil && !s.consumed {
		s.drops++
		if s.onDrop != nil {
			s.onDrop()
		}
	}
	s.latest = img
	s.consumed = false
	return nil
}

func (s *LiveSource) Snapshot() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.latest == nil {
		return nil, formanalysis.ErrCaptureUnavailable
	}
	s.consumed = true
	return s.latest, nil
}

// Close releases the source. Further Publish calls fail, Snapshot reports
// the capture as unavailable. Safe to call more than once.
func (s *LiveSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.latest = nil
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// Drops returns how many published frames were overwritten unsampled.
func (s *LiveSource) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

func (s *LiveSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
