package analysis

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/2beens/fitcoach/internal/capture"
	"github.com/2beens/fitcoach/internal/formanalysis"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func solidFrame(c uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c
		img.Pix[i+1] = c
		img.Pix[i+2] = c
		img.Pix[i+3] = 255
	}
	return img
}

var (
	blackFrame = solidFrame(0)
	whiteFrame = solidFrame(255)
)

func newTestManager(t *testing.T, history historyStore) (*Manager, *formanalysis.ManualScheduler, *metrics.Manager) {
	t.Helper()
	sched := formanalysis.NewManualScheduler(epoch)
	metricsManager := metrics.NewTestManager()
	m := NewManager(ManagerParams{
		History:     history,
		Metrics:     metricsManager,
		Scheduler:   sched,
		MaxSessions: 2,
	})
	return m, sched, metricsManager
}

func drain(events <-chan formanalysis.Event) []formanalysis.Event {
	var all []formanalysis.Event
	for e := range events {
		all = append(all, e)
	}
	return all
}

func startClient(t *testing.T, client *Client) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- client.Session.Start(context.Background(), client.ExerciseID)
	}()
	client.Device.Hello(capture.Hello{Camera: capture.CameraGranted})
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not start")
	}
}

func TestManager_Create(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	defer m.Shutdown()

	_, err := m.Create("u1", "burpee")
	assert.ErrorIs(t, err, ErrUnknownExercise)

	id1, err := m.Create("u1", "squat")
	require.NoError(t, err)
	id2, err := m.Create("u1", "plank")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	_, err = m.Create("u1", "lunge")
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 2, m.Count())

	snapshot, err := m.Snapshot(id1)
	require.NoError(t, err)
	assert.Equal(t, "squat", snapshot.ExerciseID)
	assert.Equal(t, "u1", snapshot.UserID)
	assert.False(t, snapshot.Running)
	assert.Equal(t, formanalysis.StateIdle, snapshot.State)
	assert.Empty(t, snapshot.Feedback)

	_, err = m.Snapshot("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Stop("missing"), ErrSessionNotFound)
}

func TestManager_Attach(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	defer m.Shutdown()

	id, err := m.Create("u1", "squat")
	require.NoError(t, err)

	client, err := m.Attach(id)
	require.NoError(t, err)
	assert.Equal(t, id, client.ID)
	assert.Equal(t, "squat", client.ExerciseID)

	_, err = m.Attach(id)
	assert.ErrorIs(t, err, ErrClientAttached)
	_, err = m.Attach("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m.Detach(id)
	m.Detach(id)
	assert.Zero(t, m.Count())
	_, ok := <-client.Events
	assert.False(t, ok)
}

func TestManager_UnattachedSessionIsDropped(t *testing.T) {
	m, sched, _ := newTestManager(t, nil)
	defer m.Shutdown()

	unattached, err := m.Create("u1", "squat")
	require.NoError(t, err)
	attached, err := m.Create("u2", "squat")
	require.NoError(t, err)
	_, err = m.Attach(attached)
	require.NoError(t, err)

	sched.Advance(DefaultAttachTimeout - time.Millisecond)
	assert.Equal(t, 2, m.Count())

	sched.Advance(time.Millisecond)
	assert.Equal(t, 1, m.Count())
	_, err = m.Attach(unattached)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Snapshot(attached)
	assert.NoError(t, err)
}

func TestManager_SessionLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := NewMockhistoryStore(ctrl)
	m, sched, metricsManager := newTestManager(t, history)
	defer m.Shutdown()

	id, err := m.Create("u1", "squat")
	require.NoError(t, err)
	client, err := m.Attach(id)
	require.NoError(t, err)
	startClient(t, client)

	snapshot, err := m.Snapshot(id)
	require.NoError(t, err)
	assert.True(t, snapshot.Running)

	require.NoError(t, client.Device.PushFrame(blackFrame))
	require.NoError(t, client.Device.PushFrame(blackFrame))
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.CounterDroppedFrames))

	sched.Advance(formanalysis.DefaultTickPeriod)
	require.NoError(t, client.Device.PushFrame(whiteFrame))
	sched.Advance(formanalysis.DefaultTickPeriod)

	snapshot, err = m.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, formanalysis.StateActive, snapshot.State)
	assert.Equal(t, 100.0, snapshot.Motion.Raw)

	history.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s formanalysis.Summary) (int, error) {
			assert.Equal(t, id, s.ID)
			assert.Equal(t, "u1", s.UserID)
			assert.Equal(t, 1, s.Activations)
			assert.Equal(t, 2, s.Ticks)
			assert.Equal(t, formanalysis.EndReasonStopped, s.EndReason)
			return 1, nil
		})

	// stop over http keeps the session registered, the run ends once
	require.NoError(t, m.Stop(id))
	snapshot, err = m.Snapshot(id)
	require.NoError(t, err)
	assert.False(t, snapshot.Running)
	assert.Equal(t, formanalysis.StateIdle, snapshot.State)
	require.NoError(t, m.Stop(id))

	m.Detach(id)

	var types []formanalysis.EventType
	for _, e := range drain(client.Events) {
		types = append(types, e.Type)
	}
	assert.Equal(t, []formanalysis.EventType{
		formanalysis.EventTypeNotification,
		formanalysis.EventTypeMotion,
		formanalysis.EventTypeStateChanged,
		formanalysis.EventTypeStateChanged,
		formanalysis.EventTypeStopped,
	}, types)
	assert.Zero(t, m.Count())
}

func TestManager_PermissionDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := NewMockhistoryStore(ctrl)
	m, _, _ := newTestManager(t, history)
	defer m.Shutdown()

	id, err := m.Create("u1", "pushup")
	require.NoError(t, err)
	client, err := m.Attach(id)
	require.NoError(t, err)

	history.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s formanalysis.Summary) (int, error) {
			assert.Equal(t, formanalysis.EndReasonPermissionDenied, s.EndReason)
			return 0, errors.New("db down")
		})

	client.Device.Hello(capture.Hello{Camera: capture.CameraDenied})
	err = client.Session.Start(context.Background(), client.ExerciseID)
	assert.ErrorIs(t, err, formanalysis.ErrPermissionDenied)

	snapshot, err := m.Snapshot(id)
	require.NoError(t, err)
	assert.False(t, snapshot.Running)
	assert.False(t, snapshot.Acquiring)
}

func TestManager_Shutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := NewMockhistoryStore(ctrl)
	m, _, _ := newTestManager(t, history)

	id, err := m.Create("u1", "squat")
	require.NoError(t, err)
	client, err := m.Attach(id)
	require.NoError(t, err)
	startClient(t, client)
	_, err = m.Create("u2", "lunge")
	require.NoError(t, err)

	history.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s formanalysis.Summary) (int, error) {
			assert.Equal(t, formanalysis.EndReasonShutdown, s.EndReason)
			return 2, nil
		})

	m.Shutdown()
	assert.Zero(t, m.Count())
	_, err = m.Create("u3", "squat")
	assert.ErrorIs(t, err, ErrManagerClosed)

	events := drain(client.Events)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, formanalysis.EventTypeStopped, last.Type)
	assert.Equal(t, formanalysis.EndReasonShutdown, last.EndReason)
}

func TestEventHub_DropsWhenFull(t *testing.T) {
	hub := newEventHub("s1")
	for i := 0; i < eventBufferSize+3; i++ {
		hub.OnEvent(formanalysis.Event{Type: formanalysis.EventTypeMotion})
	}
	assert.Equal(t, 3, hub.dropped)

	hub.Close()
	hub.Close()
	hub.OnEvent(formanalysis.Event{Type: formanalysis.EventTypeStopped})
	assert.Len(t, drain(hub.Events()), eventBufferSize)
}
