package web

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"portfolio/internal/chat"
)

const (
	eventBuffer  = 32
	writeTimeout = 10 * time.Second
)

// handleEvents streams widget events over a websocket. The first frame is
// a synthetic state_changed event carrying the current snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	wd, id, ok := s.widget(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan chat.Event, eventBuffer)
	cancel := wd.Subscribe(func(ev chat.Event) {
		// listeners run under the widget lock; never block here
		select {
		case events <- ev:
		default:
			select {
			case <-events:
			default:
			}
			select {
			case events <- ev:
			default:
			}
		}
	})
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev chat.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug().Err(err).Str("session", id).Msg("websocket write failed")
			return false
		}
		return true
	}

	if !send(chat.Event{Kind: chat.EventStateChanged, Snapshot: wd.Snapshot()}) {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev := <-events:
			if !send(ev) {
				return
			}
		}
	}
}
