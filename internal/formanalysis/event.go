package formanalysis

import "time"

// EventType can be one of:
//   - state_changed
//   - motion
//   - feedback
//   - notification
//   - stopped
type EventType string

const (
	EventTypeStateChanged EventType = "state_changed"
	EventTypeMotion       EventType = "motion"
	EventTypeFeedback     EventType = "feedback"
	EventTypeNotification EventType = "notification"
	EventTypeStopped      EventType = "stopped"
)

func (et EventType) String() string {
	return string(et)
}

func (et EventType) IsValid() bool {
	switch et {
	case EventTypeStateChanged,
		EventTypeMotion,
		EventTypeFeedback,
		EventTypeNotification,
		EventTypeStopped:
		return true
	default:
		return false
	}
}

type NotificationLevel string

const (
	NotificationInfo  NotificationLevel = "info"
	NotificationError NotificationLevel = "error"
)

type Notification struct {
	Level       NotificationLevel `json:"level"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
}

// Event is pushed to the UI layer. Only the fields relevant for Type are set.
type Event struct {
	SessionID string    `json:"sessionId"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	State        *SessionState `json:"state,omitempty"`
	Motion       *Motion       `json:"motion,omitempty"`
	Feedback     []string      `json:"feedback,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	EndReason    EndReason     `json:"endReason,omitempty"`
}

// Listener receives session events. OnEvent is called with the session lock
// held, so it must not block and must not call back into the session.
type Listener interface {
	OnEvent(event Event)
}

type ListenerFunc func(event Event)

func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// EndReason tells why a session stopped sampling.
type EndReason string

const (
	EndReasonStopped           EndReason = "stopped"
	EndReasonPermissionDenied  EndReason = "permission_denied"
	EndReasonDeviceUnavailable EndReason = "device_unavailable"
	EndReasonDimensionMismatch EndReason = "dimension_mismatch"
	EndReasonShutdown          EndReason = "shutdown"
)

var (
	notificationCameraGranted = Notification{
		Level:       NotificationInfo,
		Title:       "Camera access granted",
		Description: "Get ready to perform your exercise",
	}
	notificationCameraDenied = Notification{
		Level:       NotificationError,
		Title:       "Camera access denied",
		Description: "Please allow camera access to use this feature",
	}
	notificationCameraUnavailable = Notification{
		Level:       NotificationError,
		Title:       "Camera unavailable",
		Description: "No camera could be started, check that it is connected and not used by another application",
	}
	notificationCaptureFailed = Notification{
		Level:       NotificationError,
		Title:       "Analysis stopped",
		Description: "The camera stream changed unexpectedly, please restart the analysis",
	}
)
