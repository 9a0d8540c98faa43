package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"portfolio/internal/analytics"
	"portfolio/internal/chat"
	"portfolio/internal/sessions"
	"portfolio/internal/suggest"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type sessionResponse struct {
	SessionID string        `json:"session_id"`
	Snapshot  chat.Snapshot `json:"snapshot"`
}

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	Reply    chat.Message  `json:"reply"`
	Snapshot chat.Snapshot `json:"snapshot"`
}

type visibilityResponse struct {
	Visible  bool          `json:"visible"`
	Snapshot chat.Snapshot `json:"snapshot"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: msg})
}

// statusFor maps domain errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, sessions.ErrSessionNotFound), errors.Is(err, suggest.ErrUnknownProject):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) widget(w http.ResponseWriter, r *http.Request) (*chat.Widget, string, bool) {
	id := mux.Vars(r)["id"]
	wd, err := s.opts.Sessions.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, id, false
	}
	return wd, id, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, s.opts.Profile); err != nil {
		log.Error().Err(err).Msg("failed to render index")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"uptime":   time.Since(s.startTime).Round(time.Second).String(),
		"sessions": s.opts.Sessions.CountByChannel(),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Profile)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	events, err := s.opts.Recorder.LoadInteractions()
	if err != nil {
		log.Error().Err(err).Msg("failed to load interactions")
		writeError(w, http.StatusInternalServerError, "failed to load interactions")
		return
	}
	writeJSON(w, http.StatusOK, analytics.AnalyzeDailyLogs(events, day))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, wd := s.opts.Sessions.Create(sessions.ChannelWeb)
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, Snapshot: wd.Snapshot()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	wd, id, ok := s.widget(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Snapshot: wd.Snapshot()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.opts.Sessions.Remove(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	log.Debug().Str("session", id).Msg("session removed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	wd, id, ok := s.widget(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	reply, err := wd.Submit(r.Context(), req.Text)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	log.Info().Str("session", id).Int("prompt_len", len(req.Text)).Msg("chat exchange completed")
	writeJSON(w, http.StatusOK, submitResponse{Reply: reply, Snapshot: wd.Snapshot()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	wd, id, ok := s.widget(w, r)
	if !ok {
		return
	}
	wd.Clear()
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Snapshot: wd.Snapshot()})
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	wd, _, ok := s.widget(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	wd.SetDraft(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	wd, _, ok := s.widget(w, r)
	if !ok {
		return
	}
	visible := wd.ToggleVisibility()
	writeJSON(w, http.StatusOK, visibilityResponse{Visible: visible, Snapshot: wd.Snapshot()})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Board.Snapshot())
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(mux.Vars(r)["idx"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project index")
		return
	}
	sg, err := s.opts.Board.Suggest(r.Context(), idx)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sg)
}
