package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/2beens/fitcoach/internal/formanalysis"
)

const DefaultAcquireTimeout = 30 * time.Second

var ErrNoActiveSource = errors.New("no active frame source")

type CameraPermission string

const (
	CameraGranted     CameraPermission = "granted"
	CameraDenied      CameraPermission = "denied"
	CameraUnavailable CameraPermission = "unavailable"
)

func (p CameraPermission) String() string {
	return string(p)
}

func (p CameraPermission) IsValid() bool {
	switch p {
	case CameraGranted, CameraDenied, CameraUnavailable:
		return true
	default:
		return false
	}
}

// Hello is sent by the client once its camera request is answered.
type Hello struct {
	Camera CameraPermission `json:"camera"`
}

// ClientDevice is the capture device of a remote client. Acquire waits for
// the client's hello, frames pushed afterwards go to the acquired source.
type ClientDevice struct {
	acquireTimeout time.Duration
	onRelease      func()
	onDrop         func()

	hello        chan Hello
	disconnected chan struct{}
	disconnect   sync.Once

	mu     sync.Mutex
	source *LiveSource
}

type ClientDeviceParams struct {
	AcquireTimeout time.Duration
	// OnRelease is called when the acquired source is closed, the client
	// should stop its camera tracks.
	OnRelease func()
	// OnDrop is called for every frame overwritten before it was sampled.
	OnDrop func()
}

func NewClientDevice(params ClientDeviceParams) *ClientDevice {
	if params.AcquireTimeout <= 0 {
		params.AcquireTimeout = DefaultAcquireTimeout
	}
	return &ClientDevice{
		acquireTimeout: params.AcquireTimeout,
		onRelease:      params.OnRelease,
		onDrop:         params.OnDrop,
		hello:          make(chan Hello, 1),
		disconnected:   make(chan struct{}),
	}
}

func (d *ClientDevice) Acquire(ctx context.Context) (formanalysis.FrameSource, error) {
	ctx, cancel := context.WithTimeout(ctx, d.acquireTimeout)
	defer cancel()

	select {
	case h := <-d.hello:
		switch h.Camera {
		case CameraGranted:
			return d.newSource(), nil
		case CameraDenied:
			return nil, formanalysis.ErrPermissionDenied
		default:
			return nil, fmt.Errorf("%w: client reported camera %q", formanalysis.ErrDeviceUnavailable, h.Camera)
		}
	case <-d.disconnected:
		return nil, fmt.Errorf("%w: client disconnected", formanalysis.ErrDeviceUnavailable)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no camera answer in %s", formanalysis.ErrDeviceUnavailable, d.acquireTimeout)
		}
		return nil, ctx.Err()
	}
}

func (d *ClientDevice) newSource() *LiveSource {
	d.mu.Lock()
	defer d.mu.Unlock()

	var source *LiveSource
	source = NewLiveSource(func() {
		d.mu.Lock()
		if d.source == source {
			d.source = nil
		}
		d.mu.Unlock()
		if d.onRelease != nil {
			d.onRelease()
		}
	})
	source.onDrop = d.onDrop
	d.source = source
	return source
}

// Hello delivers the client's camera answer. Only the latest unanswered
// hello is kept.
func (d *ClientDevice) Hello(h Hello) {
	for {
		select {
		case d.hello <- h:
			return
		default:
		}
		select {
		case <-d.hello:
		default:
		}
	}
}

// PushFrame hands a decoded frame to the acquired source.
func (d *ClientDevice) PushFrame(img *image.RGBA) error {
	d.mu.Lock()
	source := d.source
	d.mu.Unlock()

	if source == nil {
		return ErrNoActiveSource
	}
	return source.Publish(img)
}

// Disconnect fails any pending and future Acquire and closes the current
// source.
func (d *ClientDevice) Disconnect() {
	d.disconnect.Do(func() {
		close(d.disconnected)
	})

	d.mu.Lock()
	source := d.source
	d.mu.Unlock()
	if source != nil {
		_ = source.Close()
	}
}
