package server

import (
	"net/http"
	"net/url"

	"github.com/claude/heytrainer/internal/voice"
	"github.com/go-chi/chi/v5"
)

type triggerPhrases struct {
	Defaults []string `json:"defaults"`
	Custom   []string `json:"custom"`
	Active   []string `json:"active"`
}

func (s *Server) triggerPhrases(r *http.Request, uid int) (triggerPhrases, error) {
	custom, err := s.db.ListTriggerPhrases(r.Context(), uid)
	if err != nil {
		return triggerPhrases{}, err
	}
	return triggerPhrases{
		Defaults: voice.DefaultTriggerPhrases,
		Custom:   custom,
		Active:   voice.MergeTriggerPhrases(custom),
	}, nil
}

func (s *Server) handleListTriggerPhrases(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	phrases, err := s.triggerPhrases(r, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, phrases)
}

func (s *Server) handleAddTriggerPhrase(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		Phrase string `json:"phrase"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	phrase, err := voice.ValidateCustomPhrase(req.Phrase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.db.AddTriggerPhrase(r.Context(), uid, phrase); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reloadPhrases(r, uid)

	phrases, err := s.triggerPhrases(r, uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, phrases)
}

func (s *Server) handleRemoveTriggerPhrase(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	raw, err := url.PathUnescape(chi.URLParam(r, "phrase"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid phrase"})
		return
	}
	phrase, err := voice.ValidateCustomPhrase(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.db.RemoveTriggerPhrase(r.Context(), uid, phrase); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reloadPhrases(r, uid)
	w.WriteHeader(http.StatusNoContent)
}

// reloadPhrases pushes changed phrases into live sessions. The phrases are
// already stored, so a failure only delays them until the next session.
func (s *Server) reloadPhrases(r *http.Request, uid int) {
	if err := s.sessions.ReloadTriggerPhrases(r.Context(), uid); err != nil {
		s.log.Warn("reloading trigger phrases", "user", uid, "error", err)
	}
}
