package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/claude/heytrainer/internal/session"
	"github.com/claude/heytrainer/internal/speech"
	"github.com/claude/heytrainer/internal/voice"
	"github.com/coder/websocket"
)

const wsWriteTimeout = 5 * time.Second

// transcriptMessage is what voice clients send: the recogniser's full
// running transcript, not a delta.
type transcriptMessage struct {
	Transcript string `json:"transcript"`
}

type transcriptResult struct {
	Outcome  voice.Outcome    `json:"outcome"`
	Snapshot session.Snapshot `json:"snapshot"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var msg transcriptMessage
	if !decodeJSON(w, r, &msg) {
		return
	}
	outcome := sess.Transcript(r.Context(), msg.Transcript)
	writeJSON(w, http.StatusOK, transcriptResult{Outcome: outcome, Snapshot: sess.Engine.Snapshot()})
}

func (s *Server) handleSetVoice(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess.Driver.SetEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// wsSink forwards session events to one websocket client.
type wsSink struct {
	conn *websocket.Conn
}

func (ws wsSink) Send(ctx context.Context, ev speech.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.conn.Write(ctx, websocket.MessageText, data)
}

// handleVoiceWS streams transcripts in and speech, acks and transcript
// resets out for the lifetime of the connection.
func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "session", sess.ID, "error", err)
		return
	}
	defer conn.CloseNow()

	sink := wsSink{conn: conn}
	detach := sess.Events.Attach(sink)
	defer detach()

	ctx := r.Context()
	hello := speech.Event{Type: "snapshot", Data: sess.Engine.Snapshot()}
	if err := sink.Send(ctx, hello); err != nil {
		return
	}

	s.log.Info("voice client connected", "session", sess.ID)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				s.log.Warn("voice client read failed", "session", sess.ID, "error", err)
			}
			break
		}
		var msg transcriptMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("bad voice message", "session", sess.ID, "error", err)
			continue
		}
		sess.Transcript(ctx, msg.Transcript)
	}
	s.log.Info("voice client disconnected", "session", sess.ID)
	conn.Close(websocket.StatusNormalClosure, "")
}
