package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"wasender/internal/app"
	"wasender/internal/contacts"
	logx "wasender/pkg/logx"
)

type loadRequest struct {
	File string `json:"file"`
}

type loadResponse struct {
	Count    int                `json:"count"`
	Summary  contacts.Summary   `json:"summary"`
	Contacts []contacts.Contact `json:"contacts"`
}

type startRequest struct {
	File     string `json:"file"`
	Limit    int    `json:"limit,omitempty"`
	Delay    string `json:"delay,omitempty"` // Go duration string
	Template string `json:"template,omitempty"`
}

type startResponse struct {
	RunID string `json:"run_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.File == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"file\": \"...\"}")
		return
	}
	list, err := s.ctrl.LoadContacts(req.File)
	if err != nil {
		writeError(w, statusForLoadError(err), err.Error())
		return
	}
	cfg := s.ctrl.Config().Contacts
	writeJSON(w, http.StatusOK, loadResponse{
		Count:    len(list),
		Summary:  contacts.Validate(list, cfg.MinDigits, cfg.MaxDigits),
		Contacts: list,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.File == "" {
		writeError(w, http.StatusBadRequest, "body must include \"file\"")
		return
	}
	var delay time.Duration
	if req.Delay != "" {
		d, err := time.ParseDuration(req.Delay)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid delay: "+err.Error())
			return
		}
		delay = d
	}

	id, err := s.ctrl.StartRun(app.RunRequest{File: req.File, Limit: req.Limit, Delay: delay, Template: req.Template})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, app.ErrNoContacts):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, statusForLoadError(err), err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{RunID: id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.RequestStop()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	runs, err := s.ctrl.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	entries, err := s.ctrl.AuditTail(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleEvents streams the bus as server-sent events until the client leaves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsub := s.ctrl.Bus().Subscribe(64)
	defer unsub()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Debug("dropping unencodable event", logx.String("type", ev.Type))
				continue
			}
			if _, err := w.Write([]byte("event: " + ev.Type + "\ndata: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func statusForLoadError(err error) int {
	var se *contacts.SchemaError
	switch {
	case errors.Is(err, contacts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contacts.ErrUnsupportedFormat), errors.As(err, &se):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
