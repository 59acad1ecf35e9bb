package server

import (
	"net/http"

	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/session"
)

func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	routines, err := s.db.ListRoutines(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routines)
}

func (s *Server) handleCreateRoutine(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var routine models.Routine
	if !decodeJSON(w, r, &routine) {
		return
	}
	if err := session.ValidateRoutine(routine); err != nil {
		s.writeError(w, r, err)
		return
	}
	routine.UserID = uid

	created, err := s.db.CreateRoutine(r.Context(), routine)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	routine, err := s.db.GetRoutine(r.Context(), id, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

func (s *Server) handleUpdateRoutine(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var routine models.Routine
	if !decodeJSON(w, r, &routine) {
		return
	}
	if err := session.ValidateRoutine(routine); err != nil {
		s.writeError(w, r, err)
		return
	}
	routine.ID = id
	routine.UserID = uid

	updated, err := s.db.UpdateRoutine(r.Context(), routine)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.db.DeleteRoutine(r.Context(), id, uid); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
