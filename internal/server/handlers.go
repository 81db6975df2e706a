package server

import (
	"net/http"

	"github.com/parlorlabs/arcade/internal/activity"
	"github.com/parlorlabs/arcade/internal/auth"
	"github.com/parlorlabs/arcade/internal/coordinator"
	"github.com/parlorlabs/arcade/internal/wire"
)

type createRequest struct {
	ActivityKey   string          `json:"activityKey"`
	CreatorUserID string          `json:"creatorUserId"`
	Participants  []string        `json:"participants"`
	Config        activity.Config `json:"config"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req createRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !id.CanActFor(req.CreatorUserID) {
		s.writeError(w, wire.NewError(wire.CodeForbidden, "creator must match the authenticated user"))
		return
	}
	sess, err := s.coord.CreateSession(coordinator.CreateParams{
		ActivityKey:  req.ActivityKey,
		CreatorID:    req.CreatorUserID,
		Participants: req.Participants,
		Config:       req.Config,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"sessionId": sess.ID})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", "all", "pending", "running", "ended":
	default:
		s.writeError(w, wire.NewError(wire.CodeInvalidRequest, "unknown status filter "+status))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": s.coord.Sessions(status)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	view, err := s.coord.SessionView(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

type targetRequest struct {
	UserID string `json:"userId"`
	Ready  *bool  `json:"ready,omitempty"`
	Role   string `json:"role,omitempty"`
}

// target decodes the {userId} body and enforces that the caller acts for
// themselves unless admin.
func (s *Server) target(w http.ResponseWriter, r *http.Request, id auth.Identity) (targetRequest, bool) {
	var req targetRequest
	if !s.decode(w, r, &req) {
		return req, false
	}
	if req.UserID == "" {
		s.writeError(w, wire.NewError(wire.CodeInvalidRequest, "userId is required"))
		return req, false
	}
	if !id.CanActFor(req.UserID) {
		s.writeError(w, wire.NewError(wire.CodeForbidden, ""))
		return req, false
	}
	return req, true
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	req, ok := s.target(w, r, id)
	if !ok {
		return
	}
	ttl, err := s.coord.Join(r.PathValue("id"), req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":               true,
		"permitTtlSeconds": int(ttl.Seconds()),
	})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	req, ok := s.target(w, r, id)
	if !ok {
		return
	}
	if err := s.coord.Leave(r.PathValue("id"), req.UserID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	req, ok := s.target(w, r, id)
	if !ok {
		return
	}
	ready := true
	if req.Ready != nil {
		ready = *req.Ready
	}
	if err := s.coord.Ready(r.PathValue("id"), req.UserID, ready, req.Role); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := s.coord.Start(r.PathValue("id"), id.UserID, id.Admin); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
