package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/2beens/fitcoach/internal/capture"
	"github.com/2beens/fitcoach/internal/formanalysis"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
	// largest CBOR frame message plus slack
	maxMessageSize = 4 << 20
)

// ClientMessageType can be one of:
//   - hello (camera answer)
//   - start (restart a stopped session)
//   - stop
type ClientMessageType string

const (
	ClientMessageHello ClientMessageType = "hello"
	ClientMessageStart ClientMessageType = "start"
	ClientMessageStop  ClientMessageType = "stop"
)

// ClientMessage is a text message from the client. Frames are sent as
// binary CBOR messages.
type ClientMessage struct {
	Type   ClientMessageType        `json:"type"`
	Camera capture.CameraPermission `json:"camera,omitempty"`
}

type wsClient struct {
	conn    *websocket.Conn
	client  *Client
	manager *Manager

	startWG sync.WaitGroup
}

func newWSClient(conn *websocket.Conn, client *Client, manager *Manager) *wsClient {
	return &wsClient{
		conn:    conn,
		client:  client,
		manager: manager,
	}
}

// run serves the connection until the client goes away. The session is
// started right away and waits for the client's hello.
func (c *wsClient) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	c.start(ctx)
	c.readLoop(ctx)

	cancel()
	c.manager.Detach(c.client.ID)
	c.startWG.Wait()
	<-writerDone
	if err := c.conn.Close(); err != nil {
		log.Tracef("analysis session [%s]: close websocket: %s", c.client.ID, err)
	}
}

func (c *wsClient) start(ctx context.Context) {
	c.startWG.Add(1)
	go func() {
		defer c.startWG.Done()
		err := c.client.Session.Start(ctx, c.client.ExerciseID)
		switch {
		case err == nil:
		case errors.Is(err, formanalysis.ErrSessionRunning):
			log.Tracef("analysis session [%s]: start ignored, already running", c.client.ID)
		case errors.Is(err, context.Canceled):
			log.Tracef("analysis session [%s]: start cancelled", c.client.ID)
		default:
			log.Debugf("analysis session [%s]: start: %s", c.client.ID, err)
		}
	}()
}

func (c *wsClient) readLoop(ctx context.Context) {
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("analysis session [%s]: read: %s", c.client.ID, err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleFrame(payload)
		case websocket.TextMessage:
			c.handleMessage(ctx, payload)
		}
	}
}

func (c *wsClient) handleFrame(payload []byte) {
	img, err := capture.DecodeFrame(payload)
	if err != nil {
		log.Debugf("analysis session [%s]: %s", c.client.ID, err)
		return
	}
	if err := c.client.Device.PushFrame(img); err != nil {
		// frames racing a stop or arriving before the hello
		log.Tracef("analysis session [%s]: push frame: %s", c.client.ID, err)
	}
}

func (c *wsClient) handleMessage(ctx context.Context, payload []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Debugf("analysis session [%s]: unmarshal client message: %s", c.client.ID, err)
		return
	}

	switch msg.Type {
	case ClientMessageHello:
		if !msg.Camera.IsValid() {
			msg.Camera = capture.CameraUnavailable
		}
		c.client.Device.Hello(capture.Hello{Camera: msg.Camera})
	case ClientMessageStart:
		c.start(ctx)
	case ClientMessageStop:
		c.client.Session.Stop()
	default:
		log.Debugf("analysis session [%s]: unknown client message [%s]", c.client.ID, msg.Type)
	}
}

func (c *wsClient) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.writeClose()
			return
		case event, ok := <-c.client.Events:
			if !ok {
				c.writeClose()
				return
			}
			if err := c.writeJSON(event); err != nil {
				log.Debugf("analysis session [%s]: write event: %s", c.client.ID, err)
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *wsClient) writeJSON(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
	)
}
