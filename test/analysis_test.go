package test

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"net/http"
	"time"

	"github.com/2beens/fitcoach/internal/analysis"
	"github.com/2beens/fitcoach/internal/capture"
	"github.com/2beens/fitcoach/internal/formanalysis"
	"github.com/2beens/fitcoach/internal/history"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidFrame(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, formanalysis.DefaultFrameWidth, formanalysis.DefaultFrameHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func (s *IntegrationTestSuite) TestAnalysisSession() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	t := s.T()

	resp, err := s.httpClient.Do(s.newRequest(ctx, "POST", "/analysis/sessions",
		`{"userId": "it-athlete", "exerciseId": "lunge"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created analysis.CreateSessionResponse
	require.NoError(t, decodeBody(resp, &created))
	require.NotEmpty(t, created.ID)

	header := http.Header{}
	header.Set("User-Agent", "test-agent")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx,
		websocketEndpoint+"/analysis/sessions/"+created.ID+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	events := make(chan formanalysis.Event, 256)
	go func() {
		defer close(events)
		for {
			var event formanalysis.Event
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	waitFor := func(match func(formanalysis.Event) bool) formanalysis.Event {
		for {
			select {
			case event, ok := <-events:
				require.True(t, ok, "event stream closed")
				if match(event) {
					return event
				}
			case <-ctx.Done():
				require.FailNow(t, "timed out waiting for event")
			}
		}
	}

	require.NoError(t, conn.WriteJSON(analysis.ClientMessage{
		Type:   analysis.ClientMessageHello,
		Camera: capture.CameraGranted,
	}))
	granted := waitFor(func(e formanalysis.Event) bool {
		return e.Type == formanalysis.EventTypeNotification
	})
	assert.Equal(t, formanalysis.NotificationInfo, granted.Notification.Level)

	black, err := capture.EncodeFrame(solidFrame(color.RGBA{A: 255}))
	require.NoError(t, err)
	white, err := capture.EncodeFrame(solidFrame(color.RGBA{R: 255, G: 255, B: 255, A: 255}))
	require.NoError(t, err)

	// alternate frames until the session turns active
	activeSeen := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(40 * time.Millisecond)
		defer ticker.Stop()
		frames := [][]byte{black, white}
		for i := 0; ; i++ {
			select {
			case <-activeSeen:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.BinaryMessage, frames[(i/2)%2]); err != nil {
					return
				}
			}
		}
	}()
	active := waitFor(func(e formanalysis.Event) bool {
		return e.Type == formanalysis.EventTypeStateChanged && *e.State == formanalysis.StateActive
	})
	close(activeSeen)
	// one writer per connection
	<-writerDone
	assert.Equal(t, formanalysis.StateActive, *active.State)

	resp, err = s.httpClient.Do(s.newRequest(ctx, "GET", "/analysis/sessions/"+created.ID, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, conn.WriteJSON(analysis.ClientMessage{Type: analysis.ClientMessageStop}))
	stopped := waitFor(func(e formanalysis.Event) bool {
		return e.Type == formanalysis.EventTypeStopped
	})
	assert.Equal(t, formanalysis.EndReasonStopped, stopped.EndReason)

	// the run is persisted once the session ends
	var listed history.ListResponse
	require.Eventually(t, func() bool {
		resp, err := s.httpClient.Do(s.newRequest(ctx, "GET", "/analysis/history/it-athlete/page/1/size/10", ""))
		if err != nil {
			return false
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return false
		}
		return decodeBody(resp, &listed) == nil && listed.Total == 1
	}, 5*time.Second, 50*time.Millisecond)

	require.Len(t, listed.Sessions, 1)
	record := listed.Sessions[0]
	assert.Equal(t, created.ID, record.SessionID)
	assert.Equal(t, "lunge", record.ExerciseID)
	assert.Equal(t, string(formanalysis.EndReasonStopped), record.EndReason)
	assert.GreaterOrEqual(t, record.Activations, 1)

	var rows int
	require.NoError(t, s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_session WHERE session_id = $1`, created.ID,
	).Scan(&rows))
	assert.Equal(t, 1, rows)

	require.NoError(t, conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	))
	require.Eventually(t, func() bool {
		resp, err := s.httpClient.Do(s.newRequest(ctx, "GET", "/analysis/sessions/"+created.ID, ""))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 5*time.Second, 50*time.Millisecond)
}

func (s *IntegrationTestSuite) TestAnalysisUnknownExercise() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, err := s.httpClient.Do(s.newRequest(ctx, "POST", "/analysis/sessions",
		`{"userId": "it-athlete", "exerciseId": "yoga"}`))
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
