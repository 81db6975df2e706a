package activity

import (
	"encoding/json"
	"time"

	"github.com/parlorlabs/arcade/internal/wire"
)

const (
	rpsMaxRounds       = 5
	rpsWinTarget       = 3
	rpsCountdown       = 5 * time.Second
	rpsInterRoundDelay = 5 * time.Second

	rpsForfeitPoints = 300
)

var rpsBeats = map[string]string{
	"rock":     "scissors",
	"scissors": "paper",
	"paper":    "rock",
}

// RPS is best-of-5 rock-paper-scissors with early stop at 3 round wins.
type RPS struct{}

func (m *RPS) Kind() Kind { return KindRPS }

func (m *RPS) Countdown() time.Duration { return rpsCountdown }

func (m *RPS) Init(s *Session) error { return nil }

func (m *RPS) Begin(s *Session, now int64) []wire.Event {
	events := []wire.Event{sessionStartedEvent(s, now)}
	s.RPS = &RPSMatch{RoundWins: make(map[string]int)}
	events = append(events, m.startRound(s, 0, now))
	return events
}

func (m *RPS) startRound(s *Session, index int, now int64) wire.Event {
	round := &Round{
		Index:       index,
		State:       RoundRunning,
		StartedAtMs: now,
		RPS:         &RPSRound{Moves: make(map[string]string)},
	}
	s.Rounds = append(s.Rounds, round)
	s.RoundIndex = index
	s.NextRoundAtMs = 0

	return wire.Event{Type: wire.EventRoundStarted, Payload: wire.RoundStartedPayload{
		SessionID:  s.ID,
		RoundIndex: index,
	}}
}

type rpsSubmitPayload struct {
	Move string `json:"move"`
}

func (m *RPS) Submit(s *Session, userID string, payload json.RawMessage, now int64) ([]wire.Event, error) {
	round := s.RunningRound()
	if round == nil || round.RPS == nil {
		return nil, wire.NewError(wire.CodeRoundNotStarted, "")
	}
	if _, dup := round.RPS.Moves[userID]; dup {
		return nil, nil
	}

	var body rpsSubmitPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, wire.NewError(wire.CodeInvalidRequest, "malformed submit payload")
	}
	if _, ok := rpsBeats[body.Move]; !ok {
		return nil, wire.NewError(wire.CodeInvalidRequest, "unknown move")
	}

	round.RPS.Moves[userID] = body.Move
	if len(round.RPS.Moves) < len(s.Participants) {
		return nil, nil
	}
	return m.resolveRound(s, round, now), nil
}

func (m *RPS) resolveRound(s *Session, round *Round, now int64) []wire.Event {
	round.State = RoundDone

	a, b := s.Participants[0], s.Participants[1]
	moveA, moveB := round.RPS.Moves[a.UserID], round.RPS.Moves[b.UserID]

	var roundWinner string
	switch {
	case moveA == moveB:
		// drawn round
	case rpsBeats[moveA] == moveB:
		roundWinner = a.UserID
	default:
		roundWinner = b.UserID
	}
	if roundWinner != "" {
		s.RPS.RoundWins[roundWinner]++
	}

	moves := map[string]string{a.UserID: moveA, b.UserID: moveB}
	events := []wire.Event{{Type: wire.EventRoundEnded, Payload: wire.RoundEndedPayload{
		SessionID:    s.ID,
		RoundIndex:   round.Index,
		Moves:        moves,
		WinnerUserID: roundWinner,
		Drawn:        roundWinner == "",
	}}}

	played := round.Index + 1
	if s.RPS.RoundWins[roundWinner] >= rpsWinTarget || played >= rpsMaxRounds {
		events = append(events, m.settle(s, now)...)
		return events
	}

	s.NextRoundAtMs = now + rpsInterRoundDelay.Milliseconds()
	s.NextRoundIndex = round.Index + 1
	return events
}

// settle awards final points by win spread: 3-0 is 300, 3-1 is 250, 3-2 is
// 200; an even split pays 150 each with no winner.
func (m *RPS) settle(s *Session, now int64) []wire.Event {
	a, b := s.Participants[0], s.Participants[1]
	winsA, winsB := s.RPS.RoundWins[a.UserID], s.RPS.RoundWins[b.UserID]

	var events []wire.Event
	lastIndex := s.RoundIndex
	if winsA == winsB {
		events = append(events, addScore(s, a.UserID, lastIndex, 150))
		events = append(events, addScore(s, b.UserID, lastIndex, 150))
		events = append(events, EndSession(s, "", true, "", now)...)
		return events
	}

	winner, spread := a.UserID, winsA-winsB
	if winsB > winsA {
		winner, spread = b.UserID, winsB-winsA
	}
	events = append(events, addScore(s, winner, lastIndex, rpsSpreadPoints(spread)))
	events = append(events, EndSession(s, winner, false, "", now)...)
	return events
}

func rpsSpreadPoints(spread int) int {
	switch {
	case spread >= 3:
		return 300
	case spread == 2:
		return 250
	default:
		return 200
	}
}

func (m *RPS) OnTimer(s *Session, roundIndex int, now int64) []wire.Event {
	if s.Ended() || s.NextRoundAtMs == 0 || s.NextRoundIndex != roundIndex {
		return nil
	}
	return []wire.Event{m.startRound(s, roundIndex, now)}
}

// Forfeit pays the remaining player the full forfeit bonus.
func (m *RPS) Forfeit(s *Session, winnerID string) {
	s.Scores[winnerID] += rpsForfeitPoints
}
