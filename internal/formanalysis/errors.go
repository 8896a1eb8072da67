package formanalysis

import "errors"

var (
	// ErrCaptureUnavailable is returned by a frame source that is not producing
	// frames yet (camera warming up). The tick is skipped and retried.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrPermissionDenied means the user rejected the camera request.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrDeviceUnavailable means no capture device could be acquired.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrDimensionMismatch means two consecutive frames differ in size,
	// which only happens with a misconfigured capture pipeline.
	ErrDimensionMismatch = errors.New("frame dimension mismatch")
	// ErrMalformedFrame means a source handed out an image whose pixel buffer
	// does not cover its bounds. The tick is skipped.
	ErrMalformedFrame = errors.New("malformed frame")

	ErrSessionRunning = errors.New("session already running")
)
