package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/llm"
)

const greeting = "Hi! Ask me anything."

type fakeCompleter struct {
	mu      sync.Mutex
	calls   []llm.Request
	resp    llm.Response
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.resp, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func blockingCompleter(resp llm.Response) *fakeCompleter {
	return &fakeCompleter{
		resp:    resp,
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
}

func TestNewWidgetIsSeeded(t *testing.T) {
	w := New(&fakeCompleter{}, "sys", greeting)
	snap := w.Snapshot()

	require.Len(t, snap.Messages, 1)
	assert.Equal(t, Message{Role: RoleAssistant, Text: greeting}, snap.Messages[0])
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Visible)
}

func TestSubmitAppendsExchange(t *testing.T) {
	fc := &fakeCompleter{resp: llm.Response{Content: "Hello"}}
	w := New(fc, "sys", greeting)
	w.SetDraft("Hi")

	reply, err := w.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, Message{Role: RoleAssistant, Text: "Hello"}, reply)

	snap := w.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, Message{Role: RoleUser, Text: "Hi"}, snap.Messages[1])
	assert.Equal(t, Message{Role: RoleAssistant, Text: "Hello"}, snap.Messages[2])
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Draft)

	require.Equal(t, 1, fc.callCount())
	assert.Equal(t, llm.Request{Prompt: "Hi", SystemInstruction: "sys"}, fc.calls[0])
}

func TestSubmitKeepsRawText(t *testing.T) {
	fc := &fakeCompleter{resp: llm.Response{Content: "ok"}}
	w := New(fc, "sys", "")

	_, err := w.Submit(context.Background(), "  spaced  ")
	require.NoError(t, err)
	assert.Equal(t, "  spaced  ", w.Snapshot().Messages[0].Text)
	assert.Equal(t, "  spaced  ", fc.calls[0].Prompt)
}

func TestSubmitEmptyIsNoop(t *testing.T) {
	fc := &fakeCompleter{resp: llm.Response{Content: "Hello"}}
	w := New(fc, "sys", greeting)
	w.SetDraft("   ")
	before := w.Snapshot()

	for _, in := range []string{"", "   ", "\n\t "} {
		_, err := w.Submit(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}

	assert.Equal(t, before, w.Snapshot())
	assert.Zero(t, fc.callCount())
}

func TestSubmitWhileAwaitingIsNoop(t *testing.T) {
	fc := blockingCompleter(llm.Response{Content: "done"})
	w := New(fc, "sys", greeting)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), "first")
		done <- err
	}()
	<-fc.started

	snap := w.Snapshot()
	assert.Equal(t, StateAwaiting, snap.State)
	require.Len(t, snap.Messages, 2)

	for i := 0; i < 3; i++ {
		_, err := w.Submit(context.Background(), "second")
		assert.ErrorIs(t, err, ErrBusy)
	}
	assert.Len(t, w.Snapshot().Messages, 2)

	close(fc.release)
	require.NoError(t, <-done)

	snap = w.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "done", snap.Messages[2].Text)
	assert.Equal(t, 1, fc.callCount())
}

func TestSubmitFailureUsesFallback(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("connection refused")}
	w := New(fc, "sys", greeting)

	reply, err := w.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, llm.FailureText, reply.Text)
	assert.Equal(t, StateIdle, w.Snapshot().State)
	assert.Len(t, w.Snapshot().Messages, 3)
}

func TestSubmitNoAnswerUsesDistinctFallback(t *testing.T) {
	w := New(&fakeCompleter{}, "sys", greeting)

	reply, err := w.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, llm.NoAnswerText, reply.Text)
	assert.NotEqual(t, llm.FailureText, reply.Text)
}

func TestSubmitAgainstGeminiEndpoint(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"answer", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"Hello"}]}}]}`, "Hello"},
		{"server error", http.StatusInternalServerError, `{}`, llm.FailureText},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, llm.NoAnswerText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			w := New(llm.NewGemini(server.URL, "k", "m", 5*time.Second), "sys", greeting)
			before := len(w.Snapshot().Messages)

			reply, err := w.Submit(context.Background(), "Hi")
			require.NoError(t, err)
			assert.Equal(t, tc.want, reply.Text)

			snap := w.Snapshot()
			assert.Len(t, snap.Messages, before+2)
			assert.Equal(t, StateIdle, snap.State)
		})
	}
}

func TestSubmitSurvivesCallerCancellation(t *testing.T) {
	fc := blockingCompleter(llm.Response{Content: "late"})
	w := New(fc, "sys", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Message, 1)
	go func() {
		m, _ := w.Submit(ctx, "Hi")
		done <- m
	}()
	<-fc.started
	cancel()
	close(fc.release)

	assert.Equal(t, "late", (<-done).Text)
	assert.Len(t, w.Snapshot().Messages, 2)
}

func TestClear(t *testing.T) {
	w := New(&fakeCompleter{resp: llm.Response{Content: "x"}}, "sys", greeting)
	_, err := w.Submit(context.Background(), "Hi")
	require.NoError(t, err)

	w.Clear()
	assert.Empty(t, w.Snapshot().Messages)

	w.Clear()
	assert.Empty(t, w.Snapshot().Messages)
}

func TestClearWhileAwaitingKeepsPending(t *testing.T) {
	fc := blockingCompleter(llm.Response{Content: "reply"})
	w := New(fc, "sys", greeting)

	done := make(chan struct{})
	go func() {
		_, _ = w.Submit(context.Background(), "Hi")
		close(done)
	}()
	<-fc.started

	w.Clear()
	snap := w.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, StateAwaiting, snap.State)

	close(fc.release)
	<-done
	snap = w.Snapshot()
	assert.Equal(t, []Message{{Role: RoleAssistant, Text: "reply"}}, snap.Messages)
	assert.Equal(t, StateIdle, snap.State)
}

func TestToggleVisibilityOnlyFlipsVisibility(t *testing.T) {
	fc := blockingCompleter(llm.Response{Content: "reply"})
	w := New(fc, "sys", greeting)

	done := make(chan struct{})
	go func() {
		_, _ = w.Submit(context.Background(), "Hi")
		close(done)
	}()
	<-fc.started

	before := w.Snapshot()
	assert.True(t, w.ToggleVisibility())
	after := w.Snapshot()
	assert.Equal(t, before.Messages, after.Messages)
	assert.Equal(t, before.State, after.State)
	assert.True(t, after.Visible)

	assert.False(t, w.ToggleVisibility())

	close(fc.release)
	<-done
}

func TestSubscribeSeesEveryMutationInOrder(t *testing.T) {
	w := New(&fakeCompleter{resp: llm.Response{Content: "Hello"}}, "sys", greeting)

	var kinds []EventKind
	var outcomes []llm.Outcome
	cancel := w.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventMessageAppended {
			outcomes = append(outcomes, ev.Outcome)
		}
	})

	_, err := w.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	w.ToggleVisibility()
	w.Clear()

	assert.Equal(t, []EventKind{
		EventMessageAppended,
		EventStateChanged,
		EventMessageAppended,
		EventStateChanged,
		EventVisibilityChanged,
		EventCleared,
	}, kinds)
	assert.Equal(t, []llm.Outcome{"", llm.OutcomeAnswered}, outcomes)

	cancel()
	cancel()
	w.ToggleVisibility()
	assert.Len(t, kinds, 6)
}

func TestSnapshotIsACopy(t *testing.T) {
	w := New(&fakeCompleter{}, "sys", greeting)
	snap := w.Snapshot()
	snap.Messages[0].Text = "mutated"

	assert.Equal(t, greeting, w.Snapshot().Messages[0].Text)
}
