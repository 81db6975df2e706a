package coordinator

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/parlorlabs/arcade/internal/activity"
	"github.com/parlorlabs/arcade/internal/metrics"
	"github.com/parlorlabs/arcade/internal/ratelimit"
	"github.com/parlorlabs/arcade/internal/wire"
)

// CreateParams is the create-session command body.
type CreateParams struct {
	ActivityKey  string
	CreatorID    string
	Participants []string
	Config       activity.Config
}

// CreateSession allocates a new session in the lobby phase.
func (c *Coordinator) CreateSession(p CreateParams) (*activity.Session, error) {
	kind, ok := activity.ParseKind(p.ActivityKey)
	if !ok {
		return nil, wire.NewError(wire.CodeUnsupportedActivity, "unknown activity key "+p.ActivityKey)
	}
	if len(p.Participants) != 2 || p.Participants[0] == "" || p.Participants[1] == "" ||
		p.Participants[0] == p.Participants[1] {
		return nil, wire.NewError(wire.CodeInvalidParticipants, "exactly two unique participants required")
	}
	if !c.limiter.Check(ratelimit.ClassSessionCreate, p.CreatorID) {
		metrics.RateLimitDenials.WithLabelValues(string(ratelimit.ClassSessionCreate)).Inc()
		return nil, wire.NewError(wire.CodeRateLimitExceeded, "")
	}
	pending := c.store.List(func(s *activity.Session) bool {
		return s.Status == activity.StatusPending && s.CreatorID == p.CreatorID
	})
	if len(pending) >= c.pendingCap {
		return nil, wire.NewError(wire.CodeRateLimitExceeded, "pending session cap reached")
	}

	now := c.now()
	s := &activity.Session{
		ID:             uuid.NewString(),
		Kind:           kind,
		Status:         activity.StatusPending,
		Phase:          activity.PhaseLobby,
		CreatorID:      p.CreatorID,
		Scores:         make(map[string]int, 2),
		SkewMs:         make(map[string]float64, 2),
		RoundIndex:     -1,
		Config:         p.Config,
		CreatedAtMs:    now,
		LastActivityMs: now,
	}
	for _, userID := range p.Participants {
		s.Participants = append(s.Participants, &activity.Participant{UserID: userID})
		s.Scores[userID] = 0
	}
	if err := c.machines[kind].Init(s); err != nil {
		var werr *wire.Error
		if errors.As(err, &werr) {
			return nil, werr
		}
		return nil, wire.NewError(wire.CodeInvalidRequest, err.Error())
	}

	c.store.Save(s)
	c.hub.Publish(s.ID, wire.Event{Type: wire.EventSessionCreated, Payload: wire.SessionCreatedPayload{
		SessionID:    s.ID,
		Kind:         string(kind),
		CreatorID:    p.CreatorID,
		Participants: p.Participants,
	}})
	metrics.SessionsCreated.WithLabelValues(string(kind)).Inc()
	c.log.Info("session created", "sessionID", s.ID, "kind", kind, "creator", p.CreatorID)
	return s, nil
}

func presenceEvent(s *activity.Session, p *activity.Participant) wire.Event {
	return wire.Event{Type: wire.EventPresence, Payload: wire.PresencePayload{
		SessionID: s.ID,
		UserID:    p.UserID,
		Joined:    p.Joined,
		Ready:     p.Ready,
		Role:      p.Role,
	}}
}

// Join marks the user joined and grants a stream permit. Joining twice is
// idempotent; the permit TTL resets.
func (c *Coordinator) Join(sessionID, userID string) (time.Duration, error) {
	var ttl time.Duration
	err := c.withSession(sessionID, func(s *activity.Session) error {
		if s.Ended() {
			return wire.NewError(wire.CodeSessionStateMissing, "session already ended")
		}
		p := s.Participant(userID)
		if p == nil {
			return wire.NewError(wire.CodeParticipantNotInSession, "")
		}
		p.Joined = true
		s.Touch(c.now())
		ttl = c.permits.Grant(sessionID, userID)
		metrics.PermitsGranted.Inc()
		c.finalize(s, []wire.Event{presenceEvent(s, p)})
		return nil
	})
	return ttl, err
}

// Ready toggles readiness. Role, when present, is the story role pick; it is
// rejected for other kinds. All-ready with two joined participants enters the
// countdown; unready during countdown cancels it.
func (c *Coordinator) Ready(sessionID, userID string, ready bool, role string) error {
	return c.withSession(sessionID, func(s *activity.Session) error {
		if s.Phase != activity.PhaseLobby && s.Phase != activity.PhaseCountdown {
			return wire.NewError(wire.CodeSessionNotInLobby, "")
		}
		p := s.Participant(userID)
		if p == nil {
			return wire.NewError(wire.CodeParticipantNotInSession, "")
		}
		if !p.Joined {
			return wire.NewError(wire.CodeNotJoined, "join before ready")
		}
		if role != "" {
			sb, ok := c.machines[s.Kind].(*activity.StoryBuilder)
			if !ok {
				return wire.NewError(wire.CodeInvalidRequest, "role is only valid for story sessions")
			}
			if !sb.ValidRole(role) {
				return wire.NewError(wire.CodeInvalidRequest, "unknown role "+role)
			}
			p.Role = role
		}

		now := c.now()
		p.Ready = ready
		events := []wire.Event{presenceEvent(s, p)}
		switch {
		case ready && s.Phase == activity.PhaseLobby && s.AllReady() && s.JoinedCount() >= 2:
			if ev, ok := c.enterCountdown(s, now); ok {
				events = append(events, ev)
			}
		case !ready && s.Phase == activity.PhaseCountdown:
			s.Phase = activity.PhaseLobby
			s.CountdownEndsAtMs = 0
			events = append(events, wire.Event{
				Type:    wire.EventCountdownCancelled,
				Payload: wire.CountdownCancelledPayload{SessionID: s.ID},
			})
		}
		s.Touch(now)
		c.finalize(s, events)
		return nil
	})
}

// enterCountdown moves the lobby into the countdown phase. Story sessions
// additionally require both roles to be picked.
func (c *Coordinator) enterCountdown(s *activity.Session, now int64) (wire.Event, bool) {
	m := c.machines[s.Kind]
	if sb, ok := m.(*activity.StoryBuilder); ok && !sb.RolesReady(s) {
		return wire.Event{}, false
	}
	cd := m.Countdown()
	s.Phase = activity.PhaseCountdown
	s.CountdownEndsAtMs = now + cd.Milliseconds()
	return wire.Event{Type: wire.EventCountdown, Payload: wire.CountdownPayload{
		SessionID: s.ID,
		EndsAtMs:  s.CountdownEndsAtMs,
		Seconds:   int(cd.Seconds()),
	}}, true
}

// Start lets the creator (or an admin) push a lobby into the countdown
// without waiting for readiness.
func (c *Coordinator) Start(sessionID, callerID string, admin bool) error {
	return c.withSession(sessionID, func(s *activity.Session) error {
		if callerID != s.CreatorID && !admin {
			return wire.NewError(wire.CodeForbidden, "only the creator can start the session")
		}
		if s.Phase == activity.PhaseCountdown {
			return nil
		}
		if s.Phase != activity.PhaseLobby {
			return wire.NewError(wire.CodeSessionNotInLobby, "")
		}
		now := c.now()
		ev, ok := c.enterCountdown(s, now)
		if !ok {
			return wire.NewError(wire.CodeInvalidRequest, "roles not picked")
		}
		s.Touch(now)
		c.finalize(s, []wire.Event{ev})
		return nil
	})
}

// Leave removes the user from the session. Leaving a running session forfeits
// the match to the remaining participant.
func (c *Coordinator) Leave(sessionID, userID string) error {
	return c.withSession(sessionID, func(s *activity.Session) error {
		p := s.Participant(userID)
		if p == nil {
			return wire.NewError(wire.CodeParticipantNotInSession, "")
		}
		if s.Ended() {
			return nil
		}

		now := c.now()
		p.Joined = false
		p.Ready = false
		events := []wire.Event{presenceEvent(s, p)}

		if s.Status == activity.StatusRunning {
			events = append(events, c.forfeit(s, userID, now)...)
		} else if s.Phase == activity.PhaseCountdown {
			s.Phase = activity.PhaseLobby
			s.CountdownEndsAtMs = 0
			events = append(events, wire.Event{
				Type:    wire.EventCountdownCancelled,
				Payload: wire.CountdownCancelledPayload{SessionID: s.ID},
			})
		}
		s.Touch(now)
		c.finalize(s, events)
		return nil
	})
}

// forfeit ends a running session after userID dropped out. The last joined
// participant wins with reason opponent_left; nobody left ends it unwon.
func (c *Coordinator) forfeit(s *activity.Session, userID string, now int64) []wire.Event {
	var remaining []*activity.Participant
	for _, p := range s.Participants {
		if p.Joined && p.UserID != userID {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == 1 {
		winner := remaining[0].UserID
		c.machines[s.Kind].Forfeit(s, winner)
		return activity.EndSession(s, winner, false, "opponent_left", now)
	}
	return activity.EndSession(s, "", false, "abandoned", now)
}

// Submit routes one gameplay submission through the rate limiter and the
// kind's machine.
func (c *Coordinator) Submit(sessionID, userID string, payload json.RawMessage) error {
	return c.withSession(sessionID, func(s *activity.Session) error {
		p := s.Participant(userID)
		if p == nil {
			return wire.NewError(wire.CodeParticipantNotInSession, "")
		}
		if !p.Joined {
			return wire.NewError(wire.CodeNotJoined, "")
		}
		if s.Status != activity.StatusRunning {
			return wire.NewError(wire.CodeSessionNotRunning, "")
		}

		class := ratelimit.ClassSubmit
		if s.Kind == activity.KindTrivia {
			class = ratelimit.ClassTriviaSubmit
		}
		if !c.limiter.Check(class, sessionID+":"+userID) {
			metrics.RateLimitDenials.WithLabelValues(string(class)).Inc()
			return wire.NewError(wire.CodeRateLimitExceeded, "")
		}

		now := c.now()
		events, err := c.machines[s.Kind].Submit(s, userID, payload, now)
		if err != nil {
			return err
		}
		s.Touch(now)
		c.finalize(s, events)
		return nil
	})
}

// Keystroke appends one typing progress sample and publishes any anti-cheat
// flags it produced.
func (c *Coordinator) Keystroke(sessionID, userID string, sample wire.KeystrokePayload) error {
	return c.withSession(sessionID, func(s *activity.Session) error {
		if s.Kind != activity.KindTypingDuel {
			return wire.NewError(wire.CodeInvalidRequest, "keystroke frames are typing-only")
		}
		p := s.Participant(userID)
		if p == nil {
			return wire.NewError(wire.CodeParticipantNotInSession, "")
		}
		if s.Status != activity.StatusRunning {
			return wire.NewError(wire.CodeSessionNotRunning, "")
		}
		now := c.now()
		events := activity.AppendKeystroke(s, userID, sample, now)
		s.Touch(now)
		c.finalize(s, events)
		return nil
	})
}

// Ping refreshes the caller's clock-skew estimate. Pings are not participant
// activity; they do not reset the inactivity watchdog.
func (c *Coordinator) Ping(sessionID, userID string, clientTimeMs int64) (wire.PongPayload, error) {
	var pong wire.PongPayload
	err := c.withSession(sessionID, func(s *activity.Session) error {
		now := c.now()
		skew := activity.UpdateSkew(s, userID, clientTimeMs, now)
		c.store.Save(s)
		pong = wire.PongPayload{ServerNowMs: now, SkewMs: skew}
		return nil
	})
	return pong, err
}

// HandleDisconnect is the hub's detach callback. A drop mid-game counts as a
// leave; in the lobby it only clears readiness so the countdown cannot fire
// against a gone player.
func (c *Coordinator) HandleDisconnect(sessionID, userID string) {
	err := c.withSession(sessionID, func(s *activity.Session) error {
		if s.Ended() {
			return nil
		}
		p := s.Participant(userID)
		if p == nil {
			return nil
		}
		now := c.now()
		if s.Status == activity.StatusRunning {
			p.Joined = false
			p.Ready = false
			events := append([]wire.Event{presenceEvent(s, p)}, c.forfeit(s, userID, now)...)
			s.Touch(now)
			c.finalize(s, events)
			return nil
		}

		p.Ready = false
		events := []wire.Event{presenceEvent(s, p)}
		if s.Phase == activity.PhaseCountdown {
			s.Phase = activity.PhaseLobby
			s.CountdownEndsAtMs = 0
			events = append(events, wire.Event{
				Type:    wire.EventCountdownCancelled,
				Payload: wire.CountdownCancelledPayload{SessionID: s.ID},
			})
		}
		s.Touch(now)
		c.finalize(s, events)
		return nil
	})
	if err != nil {
		c.log.Debug("disconnect for missing session", "sessionID", sessionID, "userID", userID)
	}
}

// SessionView returns the client-facing view of one session.
func (c *Coordinator) SessionView(sessionID string) (activity.View, error) {
	var view activity.View
	err := c.withSession(sessionID, func(s *activity.Session) error {
		view = s.View()
		return nil
	})
	return view, err
}

// Sessions lists session summaries, optionally filtered by status. An empty
// filter or "all" lists everything.
func (c *Coordinator) Sessions(status string) []activity.Summary {
	sessions := c.store.List(func(s *activity.Session) bool {
		return status == "" || status == "all" || string(s.Status) == status
	})
	out := make([]activity.Summary, 0, len(sessions))
	for _, s := range sessions {
		mu := c.sessionLock(s.ID)
		mu.Lock()
		out = append(out, s.Summary())
		mu.Unlock()
	}
	return out
}
