package activity

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/parlorlabs/arcade/internal/content"
	"github.com/parlorlabs/arcade/internal/wire"
)

const (
	defaultTriviaRounds      = 5
	defaultTriviaTimeLimitMs = 18_000

	triviaCountdown    = 5 * time.Second
	triviaCorrectScore = 1
)

// Trivia is an N-round quiz. Questions are drawn uniformly without
// replacement across the session; ties break on lower median response time.
type Trivia struct {
	Content *content.Library
	IntN    func(n int) int
}

func (m *Trivia) Kind() Kind { return KindTrivia }

func (m *Trivia) Countdown() time.Duration { return triviaCountdown }

func (m *Trivia) Init(s *Session) error {
	if s.Config.Rounds == 0 {
		s.Config.Rounds = defaultTriviaRounds
	}
	if s.Config.TimeLimitMs == 0 {
		s.Config.TimeLimitMs = defaultTriviaTimeLimitMs
	}
	if s.Config.Rounds < 1 {
		return wire.NewError(wire.CodeInvalidRequest, "rounds must be >= 1")
	}
	if s.Config.TimeLimitMs < 1000 {
		return wire.NewError(wire.CodeInvalidRequest, "time limit too short")
	}
	bank := m.Content.QuestionsForDifficulty(s.Config.Difficulty)
	if len(bank) < s.Config.Rounds {
		return wire.NewError(wire.CodeInvalidRequest, "not enough questions for requested rounds")
	}
	return nil
}

func (m *Trivia) Begin(s *Session, now int64) []wire.Event {
	events := []wire.Event{sessionStartedEvent(s, now)}

	bank := m.Content.QuestionsForDifficulty(s.Config.Difficulty)
	picked := make([]string, 0, s.Config.Rounds)
	remaining := make([]content.Question, len(bank))
	copy(remaining, bank)
	for i := 0; i < s.Config.Rounds; i++ {
		j := m.IntN(len(remaining))
		picked = append(picked, remaining[j].ID)
		remaining[j] = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
	}
	s.Trivia = &TriviaMatch{
		QuestionIDs:   picked,
		ResponseTimes: make(map[string][]int64),
	}

	events = append(events, m.startRound(s, 0, now))
	return events
}

func (m *Trivia) startRound(s *Session, index int, now int64) wire.Event {
	q, _ := m.Content.QuestionByID(s.Trivia.QuestionIDs[index])
	round := &Round{
		Index:       index,
		State:       RoundRunning,
		StartedAtMs: now,
		DeadlineMs:  now + s.Config.TimeLimitMs,
		TimeLimitMs: s.Config.TimeLimitMs,
		Trivia: &TriviaRound{
			QuestionID:   q.ID,
			Question:     q.Text,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Answers:      make(map[string]*TriviaAnswer),
		},
	}
	s.Rounds = append(s.Rounds, round)
	s.RoundIndex = index

	return wire.Event{Type: wire.EventRoundStarted, Payload: wire.RoundStartedPayload{
		SessionID:   s.ID,
		RoundIndex:  index,
		DeadlineMs:  round.DeadlineMs,
		TimeLimitMs: round.TimeLimitMs,
		QuestionID:  q.ID,
		Question:    q.Text,
		Options:     q.Options,
	}}
}

type triviaSubmitPayload struct {
	ChoiceIndex int `json:"choiceIndex"`
}

func (m *Trivia) Submit(s *Session, userID string, payload json.RawMessage, now int64) ([]wire.Event, error) {
	round := s.RunningRound()
	if round == nil || round.Trivia == nil {
		return nil, wire.NewError(wire.CodeRoundNotStarted, "")
	}
	if _, dup := round.Trivia.Answers[userID]; dup {
		return nil, nil
	}

	var body triviaSubmitPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, wire.NewError(wire.CodeInvalidRequest, "malformed submit payload")
	}
	if body.ChoiceIndex < 0 || body.ChoiceIndex >= len(round.Trivia.Options) {
		return nil, wire.NewError(wire.CodeInvalidRequest, "choice index out of range")
	}

	responseTime := now - round.StartedAtMs
	if responseTime < 0 {
		responseTime = 0
	}
	if responseTime > round.TimeLimitMs {
		responseTime = round.TimeLimitMs
	}

	answer := &TriviaAnswer{
		ChoiceIndex:    body.ChoiceIndex,
		ResponseTimeMs: responseTime,
		Correct:        body.ChoiceIndex == round.Trivia.CorrectIndex,
	}
	round.Trivia.Answers[userID] = answer
	s.Trivia.ResponseTimes[userID] = append(s.Trivia.ResponseTimes[userID], responseTime)

	var events []wire.Event
	if answer.Correct {
		events = append(events, addScore(s, userID, round.Index, triviaCorrectScore))
	}
	if len(round.Trivia.Answers) == len(s.Participants) {
		events = append(events, m.endRound(s, round, now)...)
	}
	return events, nil
}

func (m *Trivia) endRound(s *Session, round *Round, now int64) []wire.Event {
	round.State = RoundDone
	correct := round.Trivia.CorrectIndex

	events := []wire.Event{{Type: wire.EventRoundEnded, Payload: wire.RoundEndedPayload{
		SessionID:    s.ID,
		RoundIndex:   round.Index,
		CorrectIndex: &correct,
	}}}

	if round.Index+1 < s.Config.Rounds {
		events = append(events, m.startRound(s, round.Index+1, now))
		return events
	}

	winner, draw := m.settle(s)
	events = append(events, EndSession(s, winner, draw, "", now)...)
	return events
}

// settle picks the winner by score, breaking ties on lower median response
// time across answered rounds. Equal medians stay a draw.
func (m *Trivia) settle(s *Session) (winner string, draw bool) {
	winner, draw = leaderByScore(s)
	if !draw {
		return winner, false
	}

	best, bestMedian, ties := "", math.Inf(1), 0
	for _, p := range s.Participants {
		median := medianMs(s.Trivia.ResponseTimes[p.UserID])
		if median < bestMedian {
			best, bestMedian, ties = p.UserID, median, 1
		} else if median == bestMedian {
			ties++
		}
	}
	if ties > 1 || best == "" {
		return "", true
	}
	return best, false
}

func (m *Trivia) OnTimer(s *Session, roundIndex int, now int64) []wire.Event {
	round := s.RunningRound()
	if round == nil || round.Index != roundIndex || round.Trivia == nil {
		return nil
	}
	return m.endRound(s, round, now)
}

func (m *Trivia) Forfeit(s *Session, winnerID string) {}

// medianMs returns the median of a latency series, or +Inf for an empty one
// so a user who never answered always loses the tie-break.
func medianMs(times []int64) float64 {
	if len(times) == 0 {
		return math.Inf(1)
	}
	sorted := make([]int64, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2.0
}
