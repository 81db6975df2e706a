package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parlorlabs/arcade/internal/auth"
	"github.com/parlorlabs/arcade/internal/hub"
	"github.com/parlorlabs/arcade/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The bearer token is the access control; origin checks belong to the
	// deployment's proxy layer.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamIdentity authenticates the stream request. Browsers cannot set
// headers on websocket dials, so the bearer token is also accepted as a
// query parameter.
func (s *Server) streamIdentity(r *http.Request) (auth.Identity, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return s.auth.Parse(token)
	}
	return s.auth.Authenticate(r)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

// handleStream upgrades the session stream. The socket attaches only after a
// join permit for (session, user) is consumed; close codes carry the refusal.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "sessionID", sessionID, "error", err)
		return
	}

	identity, err := s.streamIdentity(r)
	if err != nil {
		closeWith(conn, wire.CloseUnauthorized, "unauthorized")
		return
	}
	if _, err := s.coord.SessionView(sessionID); err != nil {
		closeWith(conn, wire.CloseSessionNotFound, "session_not_found")
		return
	}
	if !s.coord.ConsumePermit(sessionID, identity.UserID) {
		closeWith(conn, wire.CloseNotJoined, "not_joined")
		return
	}

	c := s.hub.Attach(sessionID, identity.UserID, conn)

	view, err := s.coord.SessionView(sessionID)
	if err != nil {
		// Session swept between the permit check and the attach.
		s.hub.Detach(c)
		return
	}
	s.hub.SendOne(c, wire.Event{Type: wire.FrameSnapshot, Payload: view})

	s.log.Debug("stream attached", "sessionID", sessionID, "userID", identity.UserID)
	s.readLoop(conn, c, sessionID, identity.UserID)
}

// readLoop pumps client frames until the socket closes. Detach on exit
// triggers the coordinator's disconnect handling through the hub callback.
func (s *Server) readLoop(conn *websocket.Conn, c *hub.Conn, sessionID, userID string) {
	defer s.hub.Detach(c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError(c, wire.NewError(wire.CodeBadFormat, "malformed frame"))
			continue
		}

		switch frame.Type {
		case wire.FrameSubmit:
			if err := s.coord.Submit(sessionID, userID, frame.Payload); err != nil {
				s.sendError(c, err)
				continue
			}
			s.sendAck(c, frame.Type)

		case wire.FrameKeystroke:
			var sample wire.KeystrokePayload
			if err := json.Unmarshal(frame.Payload, &sample); err != nil {
				s.sendError(c, wire.NewError(wire.CodeBadFormat, "malformed keystroke payload"))
				continue
			}
			if err := s.coord.Keystroke(sessionID, userID, sample); err != nil {
				s.sendError(c, err)
				continue
			}
			s.sendAck(c, frame.Type)

		case wire.FramePing:
			var ping wire.PingPayload
			if err := json.Unmarshal(frame.Payload, &ping); err != nil {
				s.sendError(c, wire.NewError(wire.CodeBadFormat, "malformed ping payload"))
				continue
			}
			pong, err := s.coord.Ping(sessionID, userID, ping.ClientTimeMs)
			if err != nil {
				s.sendError(c, err)
				continue
			}
			s.hub.SendOne(c, wire.Event{Type: wire.FramePong, Payload: pong})

		default:
			s.sendError(c, wire.NewError(wire.CodeBadFormat, "unknown frame type "+frame.Type))
		}
	}
}

func (s *Server) sendAck(c *hub.Conn, frameType string) {
	s.hub.SendOne(c, wire.Event{Type: wire.FrameAck, Payload: wire.AckPayload{Type: frameType, OK: true}})
}

func (s *Server) sendError(c *hub.Conn, err error) {
	werr, ok := err.(*wire.Error)
	if !ok {
		s.log.Error("frame handling failed", "error", err)
		werr = wire.NewError(wire.CodeInternal, "")
	}
	s.hub.SendOne(c, wire.Event{Type: wire.FrameError, Payload: wire.ErrorPayload{
		Code:    werr.Code,
		Details: werr.Details,
	}})
}
