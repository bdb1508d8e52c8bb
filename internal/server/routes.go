package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/engramd/engram/internal/engine"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the engine's error taxonomy onto HTTP status codes.
// Callers act differently on each, so the codes must stay distinct.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	var derr *engine.DuplicateError
	var ierr *engine.ImmutableRecordError
	var serr *engine.StorageError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.As(err, &derr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       derr.Error(),
			"existing_id": derr.ExistingID,
		})
	case errors.As(err, &ierr):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": ierr.Error()})
	case errors.As(err, &serr) && errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "memory not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string            `json:"user_id"`
		Content    string            `json:"content"`
		Category   string            `json:"category"`
		Metadata   map[string]string `json:"metadata"`
		Importance *float64          `json:"importance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	m, err := s.engine.Save(r.Context(), engine.SaveRequest{
		UserID:     req.UserID,
		Content:    req.Content,
		Category:   req.Category,
		Metadata:   req.Metadata,
		Importance: req.Importance,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Get(chi.URLParam(r, "memoryID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content    *string           `json:"content"`
		Importance *float64          `json:"importance"`
		Metadata   map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	m, err := s.engine.Update(r.Context(), chi.URLParam(r, "memoryID"), engine.UpdateRequest{
		Content:    req.Content,
		Importance: req.Importance,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(chi.URLParam(r, "memoryID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string             `json:"user_id"`
		Query    string             `json:"query"`
		Category string             `json:"category"`
		Window   int                `json:"window"`
		Limit    *engine.QueryLimit `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	limit := s.engine.Registry.Capability(req.Category).DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	records, meta, err := s.engine.Search(r.Context(), req.UserID, req.Query, req.Category, limit, req.Window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memories": records,
		"meta":     meta,
	})
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string   `json:"user_id"`
		Category      string   `json:"category"`
		UsedIDs       []string `json:"used_ids"`
		ActiveSession bool     `json:"active_session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id required"})
		return
	}

	used := make(map[string]bool, len(req.UsedIDs))
	for _, id := range req.UsedIDs {
		used[id] = true
	}

	result, err := s.engine.ApplyLifecycle(req.UserID, req.Category, used, req.ActiveSession)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDedupSweep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string  `json:"user_id"`
		Threshold float64 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id required"})
		return
	}

	removed, err := s.engine.DedupSweep(r.Context(), req.UserID, req.Threshold)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.URL.Query().Get("user_id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
