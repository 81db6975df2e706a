package activity

import (
	"encoding/json"
	"time"

	"github.com/parlorlabs/arcade/internal/wire"
)

// Machine is one game variant's state machine. Machines are stateless; all
// state lives on the Session, and the coordinator serializes every call for
// a given session.
type Machine interface {
	Kind() Kind

	// Init validates and defaults the session config at creation time.
	Init(s *Session) error

	// Countdown is the delay between all-ready and running.
	Countdown() time.Duration

	// Begin transitions the session into running and starts the first round.
	Begin(s *Session, now int64) []wire.Event

	// Submit applies one player submission. Duplicate submissions are
	// silently ignored (nil events, nil error).
	Submit(s *Session, userID string, payload json.RawMessage, now int64) ([]wire.Event, error)

	// OnTimer handles a scheduler fire for roundIndex: a round deadline or a
	// pending inter-round start. Fires that no longer apply are no-ops.
	OnTimer(s *Session, roundIndex int, now int64) []wire.Event

	// Forfeit adjusts scores when the match ends because the opponent left.
	Forfeit(s *Session, winnerID string)
}

// NextTimer reports the session's next due instant: the running round's
// deadline, or a pending inter-round start. ok is false when the session has
// no round timer (the coordinator still arms the inactivity watchdog).
func NextTimer(s *Session) (atMs int64, roundIndex int, ok bool) {
	if r := s.RunningRound(); r != nil && r.DeadlineMs > 0 {
		return r.DeadlineMs, r.Index, true
	}
	if s.NextRoundAtMs > 0 {
		return s.NextRoundAtMs, s.NextRoundIndex, true
	}
	return 0, 0, false
}

// addScore applies a delta to the scoreboard and emits score.updated.
func addScore(s *Session, userID string, roundIndex, delta int) wire.Event {
	s.Scores[userID] += delta
	return wire.Event{Type: wire.EventScoreUpdated, Payload: wire.ScoreUpdatedPayload{
		SessionID:  s.ID,
		UserID:     userID,
		RoundIndex: roundIndex,
		Delta:      delta,
		Total:      s.Scores[userID],
	}}
}

// EndSession moves the session to its terminal state and emits
// session.ended. Safe to call once; later calls return nothing.
func EndSession(s *Session, winnerID string, draw bool, reason string, now int64) []wire.Event {
	if s.Ended() {
		return nil
	}
	s.Status = StatusEnded
	s.Phase = PhaseEnded
	s.EndedAtMs = now
	s.WinnerUserID = winnerID
	s.Draw = draw
	s.LeaveReason = reason
	s.NextRoundAtMs = 0
	s.CountdownEndsAtMs = 0
	for _, r := range s.Rounds {
		if r.State == RoundRunning {
			r.State = RoundDone
		}
	}
	s.Version++

	scores := make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		scores[k] = v
	}
	return []wire.Event{{Type: wire.EventSessionEnded, Payload: wire.SessionEndedPayload{
		SessionID:    s.ID,
		WinnerUserID: winnerID,
		Draw:         draw,
		Reason:       reason,
		Scores:       scores,
	}}}
}

// sessionStartedEvent marks the lobby-to-running transition.
func sessionStartedEvent(s *Session, now int64) wire.Event {
	s.Status = StatusRunning
	s.Phase = PhaseRunning
	s.StartedAtMs = now
	s.CountdownEndsAtMs = 0
	s.LastActivityMs = now
	s.Version++
	return wire.Event{Type: wire.EventSessionStarted, Payload: wire.SessionStartedPayload{
		SessionID:   s.ID,
		StartedAtMs: now,
	}}
}

// otherParticipant returns the participant that is not userID, or nil.
func otherParticipant(s *Session, userID string) *Participant {
	for _, p := range s.Participants {
		if p.UserID != userID {
			return p
		}
	}
	return nil
}
