package formanalysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/fitcoach/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultTickPeriod = 150 * time.Millisecond
	// keep at most this many motion samples for the session summary
	maxMotionSamples = 1 << 16
)

// Device acquires a live frame source. Acquire blocks until the source is
// ready, the request is rejected (ErrPermissionDenied) or no device can be
// used (ErrDeviceUnavailable).
type Device interface {
	Acquire(ctx context.Context) (FrameSource, error)
}

// ScriptCatalog resolves the feedback script of an exercise. Unknown
// identifiers resolve to an empty script.
type ScriptCatalog interface {
	FeedbackScript(exerciseID string) []string
}

type SessionParams struct {
	ID         string
	UserID     string
	Device     Device
	Catalog    ScriptCatalog
	Scheduler  Scheduler
	Listener   Listener
	Metrics    *metrics.Manager
	TickPeriod time.Duration
	// FrameWidth and FrameHeight default to 320x240.
	FrameWidth  int
	FrameHeight int
	// NativeFrames skips scaling, frames are compared at source size.
	NativeFrames bool
	// OnEnd is called, without the session lock, every time the session ends:
	// stop, device failure or a fatal capture error.
	OnEnd func(Summary)
}

// Session is one span of exercise form monitoring. It samples the frame
// source every tick, classifies motion and drives the feedback script.
// All state changes happen under one mutex, so ticks, feedback reveals and
// start/stop commands are serialized.
type Session struct {
	id          string
	userID      string
	device      Device
	catalog     ScriptCatalog
	sched       Scheduler
	listener    Listener
	metrics     *metrics.Manager
	tickPeriod  time.Duration
	frameWidth  int
	frameHeight int
	native      bool
	onEnd       func(Summary)

	mu            sync.Mutex
	exerciseID    string
	acquiring     bool
	stopRequested bool
	cancelAcquire context.CancelFunc
	running       bool
	source        FrameSource
	sampler       *Sampler
	estimator     *Estimator
	machine       *StateMachine
	feedback      *FeedbackScheduler
	tick          Handle
	tickGen       uint64
	motion        Motion
	stats         sessionStats
}

type sessionStats struct {
	startedAt     time.Time
	stoppedAt     time.Time
	ticks         int
	captureMisses int
	framesDropped uint64
	activations   int
	revealed      int
	samples       []float64
	endReason     EndReason
}

// Summary describes a finished session run.
type Summary struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	ExerciseID       string        `json:"exerciseId"`
	StartedAt        time.Time     `json:"startedAt"`
	StoppedAt        time.Time     `json:"stoppedAt"`
	Duration         time.Duration `json:"duration"`
	Ticks            int           `json:"ticks"`
	CaptureMisses    int           `json:"captureMisses"`
	FramesDropped    uint64        `json:"framesDropped"`
	Activations      int           `json:"activations"`
	FeedbackRevealed int           `json:"feedbackRevealed"`
	MeanMotion       float64       `json:"meanMotion"`
	MotionStdDev     float64       `json:"motionStdDev"`
	EndReason        EndReason     `json:"endReason"`
}

// Snapshot is the state the UI layer renders.
type Snapshot struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId"`
	ExerciseID string       `json:"exerciseId"`
	Running    bool         `json:"running"`
	Acquiring  bool         `json:"acquiring"`
	State      SessionState `json:"state"`
	Motion     Motion       `json:"motion"`
	Feedback   []string     `json:"feedback"`
}

func NewSession(params SessionParams) *Session {
	if params.TickPeriod <= 0 {
		params.TickPeriod = DefaultTickPeriod
	}
	if params.Scheduler == nil {
		params.Scheduler = NewTimeScheduler()
	}
	s := &Session{
		id:          params.ID,
		userID:      params.UserID,
		device:      params.Device,
		catalog:     params.Catalog,
		sched:       params.Scheduler,
		listener:    params.Listener,
		metrics:     params.Metrics,
		tickPeriod:  params.TickPeriod,
		frameWidth:  params.FrameWidth,
		frameHeight: params.FrameHeight,
		native:      params.NativeFrames,
		onEnd:       params.OnEnd,
		estimator:   NewEstimator(),
	}
	s.machine = NewStateMachine(s.onTransition)
	s.feedback = NewFeedbackScheduler(s.sched, &s.mu, s.onReveal)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Start acquires the capture device and begins sampling for exerciseID.
// It blocks while the device is being acquired. A rejected or unavailable
// device is reported to the listener and leaves the session idle with
// nothing held.
func (s *Session) Start(ctx context.Context, exerciseID string) error {
	s.mu.Lock()
	if s.running || s.acquiring {
		s.mu.Unlock()
		return ErrSessionRunning
	}
	acquireCtx, cancel := context.WithCancel(ctx)
	s.acquiring = true
	s.stopRequested = false
	s.cancelAcquire = cancel
	s.exerciseID = exerciseID
	s.mu.Unlock()

	source, acquireErr := s.device.Acquire(acquireCtx)
	cancel()

	summary, ended, err := s.startSampling(source, acquireErr)
	if ended && s.onEnd != nil {
		s.onEnd(summary)
	}
	return err
}

func (s *Session) startSampling(source FrameSource, acquireErr error) (Summary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.acquiring = false
	s.cancelAcquire = nil

	if acquireErr != nil {
		if source != nil {
			s.closeSource(source)
		}
		if s.stopRequested {
			log.Debugf("session [%s]: stopped while acquiring device", s.id)
			return Summary{}, false, fmt.Errorf("acquire capture device: %w", acquireErr)
		}

		reason := EndReasonDeviceUnavailable
		notification := notificationCameraUnavailable
		if errors.Is(acquireErr, ErrPermissionDenied) {
			reason = EndReasonPermissionDenied
			notification = notificationCameraDenied
		} else if !errors.Is(acquireErr, ErrDeviceUnavailable) {
			acquireErr = fmt.Errorf("%w: %w", ErrDeviceUnavailable, acquireErr)
		}
		log.Warnf("session [%s]: acquire capture device: %s", s.id, acquireErr)
		s.countSession(string(reason))

		s.machine.ForceIdle()
		s.stats = sessionStats{
			startedAt: s.sched.Now(),
			stoppedAt: s.sched.Now(),
			endReason: reason,
		}
		s.notify(notification)
		return s.summaryLocked(), true, fmt.Errorf("acquire capture device: %w", acquireErr)
	}

	if s.stopRequested {
		s.closeSource(source)
		log.Debugf("session [%s]: device acquired after stop, released", s.id)
		return Summary{}, false, nil
	}

	s.source = source
	if s.native {
		s.sampler = NewNativeSampler(source)
	} else {
		s.sampler = NewSampler(source, s.frameWidth, s.frameHeight)
	}
	s.estimator.Reset()
	s.motion = Motion{}
	s.stats = sessionStats{
		startedAt: s.sched.Now(),
	}
	s.running = true
	s.tickGen++
	gen := s.tickGen
	s.tick = s.sched.Every(s.tickPeriod, func() {
		s.onTick(gen)
	})

	s.countSession("started")
	if s.metrics != nil {
		s.metrics.GaugeActiveSessions.Inc()
	}
	log.Debugf("session [%s]: sampling started for exercise [%s]", s.id, s.exerciseID)
	s.notify(notificationCameraGranted)
	return Summary{}, false, nil
}

// Stop ends the session: the state is forced to Idle, the tick and every
// pending feedback reveal are cancelled, the previous frame is discarded and
// the capture source is released. Stopping an idle session is a no-op.
func (s *Session) Stop() {
	s.stopWithReason(EndReasonStopped)
}

// Shutdown is Stop on service teardown.
func (s *Session) Shutdown() {
	s.stopWithReason(EndReasonShutdown)
}

func (s *Session) stopWithReason(reason EndReason) {
	s.mu.Lock()
	summary, ended := s.stopLocked(reason)
	s.mu.Unlock()

	if ended && s.onEnd != nil {
		s.onEnd(summary)
	}
}

func (s *Session) stopLocked(reason EndReason) (Summary, bool) {
	if s.acquiring {
		s.stopRequested = true
		if s.cancelAcquire != nil {
			s.cancelAcquire()
		}
		return Summary{}, false
	}
	if !s.running {
		return Summary{}, false
	}

	s.running = false
	s.tickGen++
	if s.tick != nil {
		s.tick.Cancel()
		s.tick = nil
	}

	s.machine.ForceIdle()
	s.feedback.Cancel()
	s.estimator.Reset()
	s.motion = Motion{}

	if counter, ok := s.source.(DropCounter); ok {
		s.stats.framesDropped = counter.Drops()
	}
	s.closeSource(s.source)
	s.source = nil
	s.sampler = nil

	s.stats.stoppedAt = s.sched.Now()
	s.stats.endReason = reason
	if s.metrics != nil {
		s.metrics.GaugeActiveSessions.Dec()
	}
	log.Debugf("session [%s]: stopped, reason [%s]", s.id, reason)

	s.emit(Event{
		Type:      EventTypeStopped,
		EndReason: reason,
	})
	return s.summaryLocked(), true
}

func (s *Session) onTick(gen uint64) {
	summary, ended := s.tickLocked(gen)
	if ended && s.onEnd != nil {
		s.onEnd(summary)
	}
}

func (s *Session) tickLocked(gen uint64) (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || gen != s.tickGen {
		return Summary{}, false
	}

	if s.metrics != nil {
		defer func(begin time.Time) {
			s.metrics.HistTickDuration.Observe(time.Since(begin).Seconds())
		}(time.Now())
	}

	s.stats.ticks++
	frame, err := s.sampler.Sample()
	if err != nil {
		s.stats.captureMisses++
		if s.metrics != nil {
			s.metrics.CounterCaptureMisses.Inc()
		}
		if !errors.Is(err, ErrCaptureUnavailable) {
			log.Warnf("session [%s]: sample frame: %s", s.id, err)
		}
		return Summary{}, false
	}

	motion, ok, err := s.estimator.Observe(frame)
	if err != nil {
		log.Errorf("session [%s]: aborting, %s", s.id, err)
		s.notify(notificationCaptureFailed)
		return s.stopLocked(EndReasonDimensionMismatch)
	}
	if !ok {
		return Summary{}, false
	}

	s.motion = motion
	if len(s.stats.samples) < maxMotionSamples {
		s.stats.samples = append(s.stats.samples, motion.Raw)
	}
	s.emit(Event{
		Type:   EventTypeMotion,
		Motion: &motion,
	})

	s.machine.Evaluate(motion.Raw)
	return Summary{}, false
}

// onTransition runs under the session lock, from Evaluate or ForceIdle.
func (s *Session) onTransition(_, to SessionState) {
	switch to {
	case StateActive:
		s.stats.activations++
		if s.metrics != nil {
			s.metrics.CounterActivations.Inc()
		}
		var script []string
		if s.catalog != nil {
			script = s.catalog.FeedbackScript(s.exerciseID)
		}
		s.feedback.Activate(script)
		log.Tracef("session [%s]: active, %d feedback messages scheduled", s.id, len(script))
	case StateIdle:
		s.feedback.Cancel()
		log.Tracef("session [%s]: idle", s.id)
	}

	state := to
	s.emit(Event{
		Type:  EventTypeStateChanged,
		State: &state,
	})
}

// onReveal runs under the session lock, from a feedback reveal callback.
func (s *Session) onReveal(_ string, _ int) {
	s.stats.revealed++
	if s.metrics != nil {
		s.metrics.CounterFeedbackRevealed.Inc()
	}
	s.emit(Event{
		Type:     EventTypeFeedback,
		Feedback: s.feedback.Revealed(),
	})
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	feedback := s.feedback.Revealed()
	if feedback == nil {
		feedback = []string{}
	}
	return Snapshot{
		ID:         s.id,
		UserID:     s.userID,
		ExerciseID: s.exerciseID,
		Running:    s.running,
		Acquiring:  s.acquiring,
		State:      s.machine.State(),
		Motion:     s.motion,
		Feedback:   feedback,
	}
}

// Summary returns the statistics of the current or last run.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() Summary {
	stoppedAt := s.stats.stoppedAt
	if s.running {
		stoppedAt = s.sched.Now()
	}

	var mean, std float64
	switch n := len(s.stats.samples); {
	case n == 1:
		mean = s.stats.samples[0]
	case n > 1:
		mean, std = stat.MeanStdDev(s.stats.samples, nil)
	}

	return Summary{
		ID:               s.id,
		UserID:           s.userID,
		ExerciseID:       s.exerciseID,
		StartedAt:        s.stats.startedAt,
		StoppedAt:        stoppedAt,
		Duration:         stoppedAt.Sub(s.stats.startedAt),
		Ticks:            s.stats.ticks,
		CaptureMisses:    s.stats.captureMisses,
		FramesDropped:    s.stats.framesDropped,
		Activations:      s.stats.activations,
		FeedbackRevealed: s.stats.revealed,
		MeanMotion:       mean,
		MotionStdDev:     std,
		EndReason:        s.stats.endReason,
	}
}

func (s *Session) closeSource(source FrameSource) {
	if source == nil {
		return
	}
	if err := source.Close(); err != nil {
		log.Warnf("session [%s]: release capture source: %s", s.id, err)
	}
}

func (s *Session) notify(n Notification) {
	s.emit(Event{
		Type:         EventTypeNotification,
		Notification: &n,
	})
}

func (s *Session) emit(event Event) {
	if s.listener == nil {
		return
	}
	event.SessionID = s.id
	event.Timestamp = s.sched.Now()
	s.listener.OnEvent(event)
}

func (s *Session) countSession(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.CounterAnalysisSessions.WithLabelValues(outcome).Inc()
}
