package server

import (
	"net/http"
	"strconv"

	"github.com/claude/heytrainer/internal/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleQueryWorkoutLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	logs, err := s.db.QueryWorkoutLogs(r.Context(), start, end, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleGetWorkoutLog(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	wl, err := s.db.GetWorkoutLog(r.Context(), id, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (s *Server) handleUpdateWorkoutLog(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var wl models.WorkoutLog
	if !decodeJSON(w, r, &wl) {
		return
	}
	for _, ex := range wl.Exercises {
		for _, set := range ex.Sets {
			if set.Weight < 0 || set.Reps < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weight and reps must not be negative"})
				return
			}
		}
	}
	wl.ID = id
	wl.UserID = uid

	if err := s.db.UpdateWorkoutLog(r.Context(), wl); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.db.GetWorkoutLog(r.Context(), id, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWorkoutLog(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.db.DeleteWorkoutLog(r.Context(), id, uid); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePendingWorkoutLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if s.outbox == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "outbox disabled"})
		return
	}
	pending, err := s.outbox.Pending(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleRetryWorkoutLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	if s.outbox == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "outbox disabled"})
		return
	}
	res, err := s.outbox.Retry(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExerciseHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	sets, err := s.db.QueryExerciseHistory(r.Context(), chi.URLParam(r, "name"), uid, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}
