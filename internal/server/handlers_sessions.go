package server

import (
	"errors"
	"net/http"

	"github.com/claude/heytrainer/internal/coach"
	"github.com/claude/heytrainer/internal/session"
	"github.com/google/uuid"
)

// sessionView is a live session as the client sees it.
type sessionView struct {
	*coach.Session
	Voice    bool             `json:"voice_enabled"`
	Snapshot session.Snapshot `json:"snapshot"`
}

func viewOf(sess *coach.Session) sessionView {
	return sessionView{
		Session:  sess,
		Voice:    sess.Driver.Enabled(),
		Snapshot: sess.Engine.Snapshot(),
	}
}

// session resolves the {id} URL parameter to one of the caller's sessions.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*coach.Session, bool) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return nil, false
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return nil, false
	}
	sess, err := s.sessions.Get(id, uid)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

// persistStatus is 202 when the workout finished but its log only reached
// the retry queue.
func persistStatus(err error) int {
	if errors.Is(err, session.ErrPersist) {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	views := []sessionView{}
	for _, sess := range s.sessions.List(uid) {
		views = append(views, viewOf(sess))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		RoutineID uuid.UUID `json:"routine_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RoutineID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "routine_id required"})
		return
	}

	sess, err := s.sessions.Start(r.Context(), uid, req.RoutineID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

type setRequest struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
}

func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := sess.LogSet(r.Context(), req.Weight, req.Reps)
	if err != nil && !res.Finished {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, persistStatus(err), res)
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	position, ok := intParam(w, r, "position")
	if !ok {
		return
	}
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := sess.Engine.UpdateExerciseSet(index, position, req.Weight, req.Reps); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Engine.Snapshot())
}

func (s *Server) handleRemoveSet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	position, ok := intParam(w, r, "position")
	if !ok {
		return
	}

	if err := sess.Engine.RemoveSet(index, position); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Engine.Snapshot())
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := sess.Engine.JumpToExercise(req.Index); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Engine.Snapshot())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, err := sess.Engine.AdvanceExercise(r.Context())
	if err != nil && !res.Finished {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, persistStatus(err), res)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	req := struct {
		Persist *bool `json:"persist"`
	}{}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	persist := req.Persist == nil || *req.Persist

	wl, err := s.sessions.Finish(r.Context(), id, uid, persist)
	if err != nil && !errors.Is(err, session.ErrPersist) {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, persistStatus(err), wl)
}
