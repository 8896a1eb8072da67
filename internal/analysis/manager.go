package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/fitcoach/internal/capture"
	"github.com/2beens/fitcoach/internal/catalog"
	"github.com/2beens/fitcoach/internal/formanalysis"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxSessions   = 100
	DefaultAttachTimeout = time.Minute
	historySaveTimeout   = 5 * time.Second
)

var (
	ErrSessionNotFound = errors.New("analysis session not found")
	ErrTooManySessions = errors.New("too many analysis sessions")
	ErrClientAttached  = errors.New("client already attached to session")
	ErrUnknownExercise = errors.New("unknown exercise")
	ErrManagerClosed   = errors.New("analysis manager closed")
)

//go:generate mockgen -source=$GOFILE -destination=manager_mocks_test.go -package=analysis

type historyStore interface {
	Save(ctx context.Context, summary formanalysis.Summary) (int, error)
}

type ManagerParams struct {
	Catalog *catalog.Catalog
	// History, if set, stores the summary of every finished session run.
	History historyStore
	Metrics *metrics.Manager
	// Scheduler drives session ticks, feedback reveals and the attach
	// timeout. Defaults to wall clock timers.
	Scheduler      formanalysis.Scheduler
	AcquireTimeout time.Duration
	AttachTimeout  time.Duration
	TickPeriod     time.Duration
	MaxSessions    int
	NativeFrames   bool
}

// Manager owns the live analysis sessions of the service. A session is
// created over HTTP and driven by exactly one websocket client, which
// supplies the camera answer and the frames.
type Manager struct {
	catalog        *catalog.Catalog
	history        historyStore
	metrics        *metrics.Manager
	sched          formanalysis.Scheduler
	acquireTimeout time.Duration
	attachTimeout  time.Duration
	tickPeriod     time.Duration
	maxSessions    int
	nativeFrames   bool

	mu       sync.Mutex
	sessions map[string]*liveSession
	closed   bool
}

type liveSession struct {
	session    *formanalysis.Session
	device     *capture.ClientDevice
	hub        *eventHub
	exerciseID string
	attached   bool
	reaper     formanalysis.Handle
}

func NewManager(params ManagerParams) *Manager {
	if params.Catalog == nil {
		params.Catalog = catalog.New()
	}
	if params.Scheduler == nil {
		ts := formanalysis.NewTimeScheduler()
		metricsManager := params.Metrics
		if metricsManager != nil {
			ts.OnSkip = metricsManager.CounterSkippedTicks.Inc
		}
		ts.OnPanic = func(recovered any) {
			if metricsManager != nil {
				metricsManager.CounterTaskPanic.Inc()
			}
			sentry.CurrentHub().Recover(recovered)
		}
		params.Scheduler = ts
	}
	if params.AcquireTimeout <= 0 {
		params.AcquireTimeout = capture.DefaultAcquireTimeout
	}
	if params.AttachTimeout <= 0 {
		params.AttachTimeout = DefaultAttachTimeout
	}
	if params.MaxSessions <= 0 {
		params.MaxSessions = DefaultMaxSessions
	}

	return &Manager{
		catalog:        params.Catalog,
		history:        params.History,
		metrics:        params.Metrics,
		sched:          params.Scheduler,
		acquireTimeout: params.AcquireTimeout,
		attachTimeout:  params.AttachTimeout,
		tickPeriod:     params.TickPeriod,
		maxSessions:    params.MaxSessions,
		nativeFrames:   params.NativeFrames,
		sessions:       make(map[string]*liveSession),
	}
}

// Create registers a new session for userID. It starts sampling once a
// client attaches; a session nobody attaches to within the attach timeout
// is dropped.
func (m *Manager) Create(userID, exerciseID string) (string, error) {
	if _, ok := catalog.ParseExerciseID(exerciseID); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrManagerClosed
	}
	if len(m.sessions) >= m.maxSessions {
		return "", fmt.Errorf("%w: limit %d", ErrTooManySessions, m.maxSessions)
	}

	id := uuid.NewString()
	var onDrop func()
	if m.metrics != nil {
		onDrop = m.metrics.CounterDroppedFrames.Inc
	}
	device := capture.NewClientDevice(capture.ClientDeviceParams{
		AcquireTimeout: m.acquireTimeout,
		OnDrop:         onDrop,
	})
	hub := newEventHub(id)
	session := formanalysis.NewSession(formanalysis.SessionParams{
		ID:           id,
		UserID:       userID,
		Device:       device,
		Catalog:      m.catalog,
		Scheduler:    m.sched,
		Listener:     hub,
		Metrics:      m.metrics,
		TickPeriod:   m.tickPeriod,
		NativeFrames: m.nativeFrames,
		OnEnd:        m.onEnd,
	})

	m.sessions[id] = &liveSession{
		session:    session,
		device:     device,
		hub:        hub,
		exerciseID: exerciseID,
		reaper: m.sched.AfterFunc(m.attachTimeout, func() {
			m.reapUnattached(id)
		}),
	}
	log.Debugf("analysis session [%s] created for user [%s], exercise [%s]", id, userID, exerciseID)
	return id, nil
}

func (m *Manager) get(id string) (*liveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

func (m *Manager) Snapshot(id string) (formanalysis.Snapshot, error) {
	ls, err := m.get(id)
	if err != nil {
		return formanalysis.Snapshot{}, err
	}
	return ls.session.Snapshot(), nil
}

// Stop stops sampling; the session stays registered while its client is
// connected and may be started again by it.
func (m *Manager) Stop(id string) error {
	ls, err := m.get(id)
	if err != nil {
		return err
	}
	ls.session.Stop()
	return nil
}

// Client is the attached side of a session.
type Client struct {
	ID         string
	ExerciseID string
	Session    *formanalysis.Session
	Device     *capture.ClientDevice
	Events     <-chan formanalysis.Event
}

func (m *Manager) Attach(id string) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ls.attached {
		return nil, ErrClientAttached
	}
	ls.attached = true
	ls.reaper.Cancel()

	return &Client{
		ID:         id,
		ExerciseID: ls.exerciseID,
		Session:    ls.session,
		Device:     ls.device,
		Events:     ls.hub.Events(),
	}, nil
}

// Detach ends the session of a disconnected client and forgets it.
func (m *Manager) Detach(id string) {
	m.mu.Lock()
	ls, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	ls.device.Disconnect()
	ls.session.Stop()
	ls.hub.Close()
	log.Debugf("analysis session [%s] detached", id)
}

func (m *Manager) reapUnattached(id string) {
	m.mu.Lock()
	ls, ok := m.sessions[id]
	if !ok || ls.attached {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	ls.device.Disconnect()
	ls.hub.Close()
	log.Debugf("analysis session [%s] dropped, no client attached", id)
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops every session and rejects new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*liveSession)
	m.mu.Unlock()

	for id, ls := range sessions {
		ls.reaper.Cancel()
		ls.device.Disconnect()
		ls.session.Shutdown()
		ls.hub.Close()
		log.Debugf("analysis session [%s] shut down", id)
	}
}

func (m *Manager) onEnd(summary formanalysis.Summary) {
	log.Infof(
		"analysis session [%s] ended [%s]: %s, %d activations, %d feedback, mean motion %.2f",
		summary.ID, summary.EndReason, summary.Duration, summary.Activations, summary.FeedbackRevealed, summary.MeanMotion,
	)
	if m.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
	defer cancel()
	if _, err := m.history.Save(ctx, summary); err != nil {
		log.Errorf("save analysis session [%s] history: %s", summary.ID, err)
	}
}
