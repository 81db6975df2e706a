package activity

import (
	"encoding/json"
	"time"

	"github.com/parlorlabs/arcade/internal/wire"
)

const (
	defaultTTTWinTarget = 2

	tttCountdown       = 3 * time.Second
	tttInterRoundDelay = 3 * time.Second
)

var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// TicTacToe is a best-of-N match of 3x3 boards; first to the win target
// takes the session. X opens every round.
type TicTacToe struct {
	IntN func(n int) int
}

func (m *TicTacToe) Kind() Kind { return KindTicTacToe }

func (m *TicTacToe) Countdown() time.Duration { return tttCountdown }

func (m *TicTacToe) Init(s *Session) error {
	if s.Config.WinTarget == 0 {
		s.Config.WinTarget = defaultTTTWinTarget
	}
	if s.Config.WinTarget < 1 {
		return wire.NewError(wire.CodeInvalidRequest, "win target must be >= 1")
	}
	return nil
}

func (m *TicTacToe) Begin(s *Session, now int64) []wire.Event {
	events := []wire.Event{sessionStartedEvent(s, now)}

	x := s.Participants[m.IntN(len(s.Participants))]
	o := otherParticipant(s, x.UserID)
	s.TicTacToe = &TTTMatch{
		Marks:     map[string]string{x.UserID: "X", o.UserID: "O"},
		RoundWins: make(map[string]int),
	}

	events = append(events, m.startRound(s, 0, now))
	return events
}

func (m *TicTacToe) startRound(s *Session, index int, now int64) wire.Event {
	var xUser string
	for userID, mark := range s.TicTacToe.Marks {
		if mark == "X" {
			xUser = userID
		}
	}
	round := &Round{
		Index:       index,
		State:       RoundRunning,
		StartedAtMs: now,
		Board: &BoardRound{
			Cells:      make([]string, 9),
			TurnUserID: xUser,
		},
	}
	s.Rounds = append(s.Rounds, round)
	s.RoundIndex = index
	s.NextRoundAtMs = 0

	return wire.Event{Type: wire.EventRoundStarted, Payload: wire.RoundStartedPayload{
		SessionID:  s.ID,
		RoundIndex: index,
		TurnUserID: xUser,
	}}
}

type tttSubmitPayload struct {
	Cell int `json:"cell"`
}

func (m *TicTacToe) Submit(s *Session, userID string, payload json.RawMessage, now int64) ([]wire.Event, error) {
	round := s.RunningRound()
	if round == nil || round.Board == nil {
		return nil, wire.NewError(wire.CodeRoundNotStarted, "")
	}
	if round.Board.TurnUserID != userID {
		return nil, wire.NewError(wire.CodeInvalidRequest, "not your turn")
	}

	var body tttSubmitPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, wire.NewError(wire.CodeInvalidRequest, "malformed submit payload")
	}
	if body.Cell < 0 || body.Cell >= len(round.Board.Cells) {
		return nil, wire.NewError(wire.CodeInvalidRequest, "cell out of range")
	}
	if round.Board.Cells[body.Cell] != "" {
		return nil, wire.NewError(wire.CodeInvalidRequest, "cell occupied")
	}

	mark := s.TicTacToe.Marks[userID]
	round.Board.Cells[body.Cell] = mark

	if m.hasLine(round.Board.Cells, mark) {
		return m.endRound(s, round, userID, now), nil
	}
	if boardFull(round.Board.Cells) {
		return m.endRound(s, round, "", now), nil
	}

	round.Board.TurnUserID = otherParticipant(s, userID).UserID
	return nil, nil
}

func (m *TicTacToe) endRound(s *Session, round *Round, roundWinner string, now int64) []wire.Event {
	round.State = RoundDone

	var events []wire.Event
	if roundWinner != "" {
		s.TicTacToe.RoundWins[roundWinner]++
		events = append(events, addScore(s, roundWinner, round.Index, 1))
	}

	board := make([]string, len(round.Board.Cells))
	copy(board, round.Board.Cells)
	events = append(events, wire.Event{Type: wire.EventRoundEnded, Payload: wire.RoundEndedPayload{
		SessionID:    s.ID,
		RoundIndex:   round.Index,
		Board:        board,
		WinnerUserID: roundWinner,
		Drawn:        roundWinner == "",
	}})

	if roundWinner != "" && s.TicTacToe.RoundWins[roundWinner] >= s.Config.WinTarget {
		events = append(events, EndSession(s, roundWinner, false, "", now)...)
		return events
	}

	// Board resets after a short pause before the next round.
	s.NextRoundAtMs = now + tttInterRoundDelay.Milliseconds()
	s.NextRoundIndex = round.Index + 1
	return events
}

func (m *TicTacToe) OnTimer(s *Session, roundIndex int, now int64) []wire.Event {
	if s.Ended() || s.NextRoundAtMs == 0 || s.NextRoundIndex != roundIndex {
		return nil
	}
	return []wire.Event{m.startRound(s, roundIndex, now)}
}

func (m *TicTacToe) Forfeit(s *Session, winnerID string) {}

func (m *TicTacToe) hasLine(cells []string, mark string) bool {
	for _, line := range tttLines {
		if cells[line[0]] == mark && cells[line[1]] == mark && cells[line[2]] == mark {
			return true
		}
	}
	return false
}

func boardFull(cells []string) bool {
	for _, c := range cells {
		if c == "" {
			return false
		}
	}
	return true
}
