package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/chat"
	"portfolio/internal/llm"
	"portfolio/internal/profile"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/suggest"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	resp    llm.Response
	err     error
	started chan struct{}
	release chan struct{}
}

func (c *scriptedCompleter) Complete(context.Context, llm.Request) (llm.Response, error) {
	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.release != nil {
		<-c.release
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resp, c.err
}

type memRecorder struct {
	mu     sync.Mutex
	events []storage.Event
}

func (m *memRecorder) AppendInteraction(ev storage.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memRecorder) LoadInteractions() ([]storage.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Event{}, m.events...), nil
}

func newTestServer(t *testing.T, c llm.Completer) (*httptest.Server, *memRecorder) {
	t.Helper()
	p := profile.Default()
	rec := &memRecorder{}
	mgr := sessions.NewManager(func() *chat.Widget { return chat.New(c, "sys", "Hi there") }, rec)
	srv, err := NewServer(Options{
		AllowedOrigins: []string{"*"},
		Profile:        p,
		Sessions:       mgr,
		Board:          suggest.NewBoard(c, p),
		Recorder:       rec,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, rec
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createSession(t *testing.T, base string) sessionResponse {
	t.Helper()
	var created sessionResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/api/sessions", nil, &created))
	require.NotEmpty(t, created.SessionID)
	return created
}

func TestIndexRendersProfile(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedCompleter{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	page := buf.String()
	assert.Contains(t, page, "Sarthak Jasuja")
	assert.Contains(t, page, "Tripmate")
	assert.Contains(t, page, `data-index="1"`)
	assert.Contains(t, page, "chat-panel")
}

func TestChatFlow(t *testing.T) {
	ts, rec := newTestServer(t, &scriptedCompleter{resp: llm.Response{Content: "Hello"}})
	created := createSession(t, ts.URL)
	require.Len(t, created.Snapshot.Messages, 1)

	base := ts.URL + "/api/sessions/" + created.SessionID

	var sub submitResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/messages", submitRequest{Text: "Hi"}, &sub))
	assert.Equal(t, chat.Message{Role: chat.RoleAssistant, Text: "Hello"}, sub.Reply)
	assert.Len(t, sub.Snapshot.Messages, 3)
	assert.Equal(t, chat.StateIdle, sub.Snapshot.State)

	var vis visibilityResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/visibility", nil, &vis))
	assert.True(t, vis.Visible)
	assert.Len(t, vis.Snapshot.Messages, 3)

	var cleared sessionResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodDelete, base+"/messages", nil, &cleared))
	assert.Empty(t, cleared.Snapshot.Messages)
	assert.True(t, cleared.Snapshot.Visible)

	var events []storage.Event
	require.Eventually(t, func() bool {
		events, _ = rec.LoadInteractions()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, sessions.ChannelWeb, events[0].Channel)
}

func TestSubmitValidation(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedCompleter{resp: llm.Response{Content: "Hello"}})
	created := createSession(t, ts.URL)
	base := ts.URL + "/api/sessions/" + created.SessionID

	var e errorResponse
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, base+"/messages", submitRequest{Text: "   "}, &e))
	assert.Equal(t, "error", e.Status)

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/nope/messages", submitRequest{Text: "Hi"}, nil))

	var snap sessionResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base, nil, &snap))
	assert.Len(t, snap.Snapshot.Messages, 1)
}

func TestSubmitWhileBusyConflicts(t *testing.T) {
	c := &scriptedCompleter{
		resp:    llm.Response{Content: "slow"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	ts, _ := newTestServer(t, c)
	created := createSession(t, ts.URL)
	base := ts.URL + "/api/sessions/" + created.SessionID

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(base+"/messages", "application/json", strings.NewReader(`{"text":"first"}`))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-c.started

	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/messages", submitRequest{Text: "second"}, nil))

	close(c.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestFallbacksOverHTTP(t *testing.T) {
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "key=broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer gemini.Close()

	for key, want := range map[string]string{"broken": llm.FailureText, "empty": llm.NoAnswerText} {
		ts, _ := newTestServer(t, llm.NewGemini(gemini.URL, key, "m", 5*time.Second))
		created := createSession(t, ts.URL)

		var sub submitResponse
		require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+created.SessionID+"/messages", submitRequest{Text: "Hi"}, &sub))
		assert.Equal(t, want, sub.Reply.Text)
		assert.Equal(t, chat.StateIdle, sub.Snapshot.State)
	}
}

func TestSuggestion(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedCompleter{resp: llm.Response{Content: "Feature Idea: AR maps."}})

	var sg suggest.Suggestion
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/projects/0/suggestion", nil, &sg))
	assert.Equal(t, "Feature Idea: AR maps.", sg.Text)
	assert.Equal(t, "Tripmate", sg.Project)

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, ts.URL+"/api/projects/9/suggestion", nil, nil))

	var snap suggest.Snapshot
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/projects/suggestions", nil, &snap))
	assert.Len(t, snap.Suggestions, 1)
}

func TestProfileStatusAndStats(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedCompleter{resp: llm.Response{Content: "ok"}})
	created := createSession(t, ts.URL)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+created.SessionID+"/messages", submitRequest{Text: "Hi"}, nil))

	var p profile.Profile
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/profile", nil, &p))
	assert.Equal(t, profile.Default(), p)

	var status map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/status", nil, &status))
	assert.Equal(t, "healthy", status["status"])

	var stats struct {
		TotalExchanges int `json:"total_exchanges"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/stats", nil, &stats))
	assert.Equal(t, 1, stats.TotalExchanges)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/api/stats?date=yesterday", nil, nil))
}

func TestEventStream(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedCompleter{resp: llm.Response{Content: "Hello"}})
	created := createSession(t, ts.URL)
	base := ts.URL + "/api/sessions/" + created.SessionID

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first chat.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Len(t, first.Snapshot.Messages, 1)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/messages", submitRequest{Text: "Hi"}, nil))

	var kinds []chat.EventKind
	var last chat.Event
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(kinds) < 4 {
		var ev chat.Event
		require.NoError(t, conn.ReadJSON(&ev))
		kinds = append(kinds, ev.Kind)
		last = ev
	}
	assert.Equal(t, []chat.EventKind{
		chat.EventMessageAppended,
		chat.EventStateChanged,
		chat.EventMessageAppended,
		chat.EventStateChanged,
	}, kinds)
	assert.Len(t, last.Snapshot.Messages, 3)
	assert.Equal(t, chat.StateIdle, last.Snapshot.State)
}

func TestDeleteSession(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedCompleter{resp: llm.Response{Content: "Hello"}})
	created := createSession(t, ts.URL)
	base := ts.URL + "/api/sessions/" + created.SessionID

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, base, nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, base, nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodDelete, base, nil, nil))
}
