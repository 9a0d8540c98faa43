// Package sessions keeps one assistant widget per visitor and records each
// finished exchange.
package sessions

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"portfolio/internal/chat"
	"portfolio/internal/storage"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	ChannelWeb      = "web"
	ChannelTelegram = "telegram"
	ChannelDiscord  = "discord"
	ChannelMCP      = "mcp"
)

type entry struct {
	widget   *chat.Widget
	channel  string
	lastSeen time.Time
}

// recordQueueSize bounds the exchanges waiting to be written. Listeners
// run under the widget lock, so they only enqueue.
const recordQueueSize = 256

type Manager struct {
	newWidget func() *chat.Widget
	recorder  storage.Recorder
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry

	recMu   sync.RWMutex
	closed  bool
	records chan storage.Event
	done    chan struct{}
}

func NewManager(newWidget func() *chat.Widget, recorder storage.Recorder) *Manager {
	if recorder == nil {
		recorder = storage.Nop{}
	}
	m := &Manager{
		newWidget: newWidget,
		recorder:  recorder,
		now:       time.Now,
		sessions:  make(map[string]*entry),
		records:   make(chan storage.Event, recordQueueSize),
		done:      make(chan struct{}),
	}
	go m.writeRecords()
	return m
}

func (m *Manager) writeRecords() {
	defer close(m.done)
	for ev := range m.records {
		if err := m.recorder.AppendInteraction(ev); err != nil {
			log.Warn().Err(err).Str("session", ev.SessionID).Msg("failed to record interaction")
		}
	}
}

// enqueue never blocks; when the writer falls behind the event is dropped.
func (m *Manager) enqueue(ev storage.Event) {
	m.recMu.RLock()
	defer m.recMu.RUnlock()
	if m.closed {
		log.Warn().Str("session", ev.SessionID).Msg("manager closed, interaction not recorded")
		return
	}
	select {
	case m.records <- ev:
	default:
		log.Warn().Str("session", ev.SessionID).Msg("record queue full, interaction dropped")
	}
}

// Close stops recording and waits until queued exchanges are written.
func (m *Manager) Close() {
	m.recMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.records)
	}
	m.recMu.Unlock()
	<-m.done
}

// Create starts a session under a fresh random id.
func (m *Manager) Create(channel string) (string, *chat.Widget) {
	id := uuid.NewString()
	return id, m.GetOrCreate(id, channel)
}

func (m *Manager) GetOrCreate(id, channel string) *chat.Widget {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = m.now()
		return e.widget
	}
	w := m.newWidget()
	// never unsubscribed: a reply in flight after eviction is still recorded
	w.Subscribe(m.recordExchanges(id, channel))
	m.sessions[id] = &entry{widget: w, channel: channel, lastSeen: m.now()}
	log.Debug().Str("session", id).Str("channel", channel).Msg("session created")
	return w
}

func (m *Manager) Get(id string) (*chat.Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = m.now()
	return e.widget, nil
}

// Remove forgets a session. A reply still in flight for it is recorded
// but no longer reachable.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// EvictIdle drops sessions not used for maxIdle. Sessions with a reply
// in flight are kept.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxIdle)
	n := 0
	for id, e := range m.sessions {
		if e.lastSeen.After(cutoff) {
			continue
		}
		if e.widget.Snapshot().State == chat.StateAwaiting {
			continue
		}
		delete(m.sessions, id)
		n++
	}
	return n
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// recordExchanges pairs each assistant reply with the user message that
// preceded it.
func (m *Manager) recordExchanges(id, channel string) chat.Listener {
	var lastUser string
	return func(ev chat.Event) {
		if ev.Kind != chat.EventMessageAppended || ev.Message == nil {
			return
		}
		if ev.Message.Role == chat.RoleUser {
			lastUser = ev.Message.Text
			return
		}
		if ev.Outcome == "" {
			return
		}
		m.enqueue(storage.Event{
			Timestamp:         m.now().UTC(),
			SessionID:         id,
			Channel:           channel,
			UserMessage:       lastUser,
			AssistantResponse: ev.Message.Text,
			Outcome:           string(ev.Outcome),
		})
		lastUser = ""
	}
}

// CountByChannel reports live sessions per front end.
func (m *Manager) CountByChannel() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range m.sessions {
		out[e.channel]++
	}
	return out
}
