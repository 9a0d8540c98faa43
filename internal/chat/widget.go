// Package chat implements the assistant widget: a transcript, a pending
// gate that admits one outstanding request at a time, and a visibility
// toggle. Views subscribe to mutations and redraw from the snapshot they
// receive.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"portfolio/internal/llm"
)

var (
	ErrEmptyInput = errors.New("message is empty")
	ErrBusy       = errors.New("a reply is still pending")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type State string

const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting"
)

type Snapshot struct {
	Messages []Message `json:"messages"`
	State    State     `json:"state"`
	Visible  bool      `json:"visible"`
	Draft    string    `json:"draft"`
}

type EventKind string

const (
	EventMessageAppended   EventKind = "message_appended"
	EventCleared           EventKind = "cleared"
	EventStateChanged      EventKind = "state_changed"
	EventVisibilityChanged EventKind = "visibility_changed"
)

// Event describes one mutation. Message and Outcome are set for
// EventMessageAppended; Outcome only for assistant messages.
type Event struct {
	Kind     EventKind   `json:"kind"`
	Message  *Message    `json:"message,omitempty"`
	Outcome  llm.Outcome `json:"outcome,omitempty"`
	Snapshot Snapshot    `json:"snapshot"`
}

// Listener receives events synchronously, in mutation order, while the
// widget is locked. It must not call back into the widget.
type Listener func(Event)

type Widget struct {
	completer   llm.Completer
	instruction string

	mu        sync.Mutex
	messages  []Message
	state     State
	visible   bool
	draft     string
	listeners map[int]Listener
	nextID    int
}

// New returns an idle, hidden widget whose transcript holds the greeting.
func New(completer llm.Completer, systemInstruction, greeting string) *Widget {
	w := &Widget{
		completer:   completer,
		instruction: systemInstruction,
		state:       StateIdle,
		listeners:   make(map[int]Listener),
	}
	if greeting != "" {
		w.messages = append(w.messages, Message{Role: RoleAssistant, Text: greeting})
	}
	return w
}

// Submit sends text to the completion endpoint and appends both sides of
// the exchange. Whitespace-only text and calls made while a reply is
// pending change nothing.
//
// The completion call is detached from ctx cancellation: once accepted,
// the reply is always appended.
func (w *Widget) Submit(ctx context.Context, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyInput
	}

	w.mu.Lock()
	if w.state == StateAwaiting {
		w.mu.Unlock()
		return Message{}, ErrBusy
	}
	w.appendLocked(Message{Role: RoleUser, Text: text}, "")
	w.draft = ""
	w.setStateLocked(StateAwaiting)
	w.mu.Unlock()

	reply, outcome := llm.Answer(context.WithoutCancel(ctx), w.completer, llm.Request{
		Prompt:            text,
		SystemInstruction: w.instruction,
	})
	msg := Message{Role: RoleAssistant, Text: reply}

	w.mu.Lock()
	w.appendLocked(msg, outcome)
	w.setStateLocked(StateIdle)
	w.mu.Unlock()
	return msg, nil
}

// Clear empties the transcript. The pending gate is left alone.
func (w *Widget) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = nil
	w.emitLocked(Event{Kind: EventCleared})
}

func (w *Widget) ToggleVisibility() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = !w.visible
	w.emitLocked(Event{Kind: EventVisibilityChanged})
	return w.visible
}

// SetDraft records the unsent input. It does not notify listeners.
func (w *Widget) SetDraft(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft = text
}

func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Subscribe registers l and returns a function that removes it.
func (w *Widget) Subscribe(l Listener) (cancel func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = l
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

func (w *Widget) appendLocked(m Message, outcome llm.Outcome) {
	w.messages = append(w.messages, m)
	w.emitLocked(Event{Kind: EventMessageAppended, Message: &m, Outcome: outcome})
}

func (w *Widget) setStateLocked(s State) {
	w.state = s
	w.emitLocked(Event{Kind: EventStateChanged})
}

func (w *Widget) emitLocked(ev Event) {
	if len(w.listeners) == 0 {
		return
	}
	ev.Snapshot = w.snapshotLocked()
	for _, l := range w.listeners {
		l(ev)
	}
}

func (w *Widget) snapshotLocked() Snapshot {
	msgs := make([]Message, len(w.messages))
	copy(msgs, w.messages)
	return Snapshot{
		Messages: msgs,
		State:    w.state,
		Visible:  w.visible,
		Draft:    w.draft,
	}
}
