package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zero-day-ai/coachmem"
	"github.com/zero-day-ai/coachmem/memory"
	"github.com/zero-day-ai/coachmem/store"
)

var errBadRequest = errors.New("bad request")

type createThreadRequest struct {
	ResourceID string         `json:"resourceId"`
	Title      string         `json:"title"`
	Metadata   map[string]any `json:"metadata"`
}

type updateThreadRequest struct {
	Title    *string        `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

type addMessageRequest struct {
	Role     store.Role     `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type threadsResponse struct {
	Threads []store.Thread `json:"threads"`
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ResourceID == "" {
		s.writeError(w, r, fmt.Errorf("%w: resourceId is required", errBadRequest))
		return
	}

	thread, err := s.mem.CreateThread(r.Context(), req.ResourceID, req.Title, req.Metadata)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	thread, err := s.mem.GetThreadByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if thread == nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", store.ErrThreadNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleUpdateThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	thread, err := s.mem.UpdateThread(r.Context(), id, store.ThreadUpdate{
		Title:    req.Title,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if thread == nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", store.ErrThreadNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ok, err := s.mem.DeleteThread(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %s", store.ErrThreadNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	rid := chi.URLParam(r, "rid")

	var (
		threads []store.Thread
		err     error
	)
	if expr := r.URL.Query().Get("filter"); expr != "" {
		threads, err = s.mem.FilterThreads(r.Context(), rid, expr)
	} else {
		threads, err = s.mem.GetThreadsByResourceID(r.Context(), rid)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if threads == nil {
		threads = []store.Thread{}
	}
	writeJSON(w, http.StatusOK, threadsResponse{Threads: threads})
}

func (s *Server) handleClearResource(w http.ResponseWriter, r *http.Request) {
	n, err := s.mem.ClearResource(r.Context(), chi.URLParam(r, "rid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req addMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := s.mem.AddMessage(r.Context(), chi.URLParam(r, "id"), req.Role, req.Content, req.Metadata)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.messagesAdded.WithLabelValues(string(msg.Role)).Inc()
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelectBy(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.mem.Query(r.Context(), chi.URLParam(r, "id"), sel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.mem.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseSelectBy reads at most one of last, first or all from the query
// string. No parameter selects the default window.
func parseSelectBy(r *http.Request) (memory.SelectBy, error) {
	q := r.URL.Query()

	var (
		sel memory.SelectBy
		set int
	)
	for _, key := range []string{"last", "first", "all"} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		set++

		if key == "all" {
			all, err := strconv.ParseBool(v)
			if err != nil || !all {
				return sel, fmt.Errorf("%w: all must be true", memory.ErrInvalidSelectBy)
			}
			sel = memory.All()
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return sel, fmt.Errorf("%w: %s must be a non-negative integer", memory.ErrInvalidSelectBy, key)
		}
		if key == "last" {
			sel = memory.Last(n)
		} else {
			sel = memory.First(n)
		}
	}

	if set > 1 {
		return sel, fmt.Errorf("%w: use only one of last, first or all", memory.ErrInvalidSelectBy)
	}
	if set == 0 {
		sel = memory.Last(0)
	}
	return sel, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}

	switch coachmem.KindOf(err) {
	case coachmem.KindNotFound:
		return http.StatusNotFound
	case coachmem.KindValidation:
		return http.StatusBadRequest
	case coachmem.KindConflict:
		return http.StatusConflict
	case coachmem.KindPermission:
		return http.StatusForbidden
	case coachmem.KindNetwork, coachmem.KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
