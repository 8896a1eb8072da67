package analysis

import (
	"sync"

	"github.com/2beens/fitcoach/internal/formanalysis"

	log "github.com/sirupsen/logrus"
)

const eventBufferSize = 128

// eventHub is the session listener. It never blocks the session: when the
// client falls behind, events are dropped.
type eventHub struct {
	sessionID string

	mu      sync.Mutex
	events  chan formanalysis.Event
	closed  bool
	dropped int
}

func newEventHub(sessionID string) *eventHub {
	return &eventHub{
		sessionID: sessionID,
		events:    make(chan formanalysis.Event, eventBufferSize),
	}
}

func (h *eventHub) OnEvent(event formanalysis.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	select {
	case h.events <- event:
	default:
		h.dropped++
		log.Warnf("analysis session [%s]: client too slow, dropped [%s] event (%d total)", h.sessionID, event.Type, h.dropped)
	}
}

func (h *eventHub) Events() <-chan formanalysis.Event {
	return h.events
}

func (h *eventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
	if h.dropped > 0 {
		log.Warnf("analysis session [%s]: hub closed, %d events dropped in total", h.sessionID, h.dropped)
	}
}
