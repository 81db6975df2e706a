package activity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/parlorlabs/arcade/internal/content"
	"github.com/parlorlabs/arcade/internal/wire"
	"github.com/stretchr/testify/require"
)

func newTrivia() *Trivia {
	return &Trivia{Content: content.Default(), IntN: func(n int) int { return 0 }}
}

func answer(choice int) json.RawMessage {
	b, _ := json.Marshal(triviaSubmitPayload{ChoiceIndex: choice})
	return b
}

// answerCorrectly submits the running round's correct index for userID.
func answerCorrectly(t *testing.T, m *Trivia, s *Session, userID string, now int64) []wire.Event {
	t.Helper()
	round := s.RunningRound()
	require.NotNil(t, round)
	events, err := m.Submit(s, userID, answer(round.Trivia.CorrectIndex), now)
	require.NoError(t, err)
	return events
}

func TestArcade_Trivia_QuestionsDrawnWithoutReplacement(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	m.Begin(s, 0)

	require.Len(t, s.Trivia.QuestionIDs, defaultTriviaRounds)
	seen := map[string]bool{}
	for _, id := range s.Trivia.QuestionIDs {
		require.False(t, seen[id], "question %s drawn twice", id)
		seen[id] = true
	}
}

func TestArcade_Trivia_CorrectAnswerScoresOne(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	m.Begin(s, 0)

	events := answerCorrectly(t, m, s, "alice", 3_000)
	score := findEvent(t, events, wire.EventScoreUpdated).Payload.(wire.ScoreUpdatedPayload)
	require.Equal(t, 1, score.Delta)
	require.Equal(t, 1, s.Scores["alice"])
}

func TestArcade_Trivia_WrongAnswerScoresNothing(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	m.Begin(s, 0)

	round := s.RunningRound()
	wrong := (round.Trivia.CorrectIndex + 1) % len(round.Trivia.Options)
	events, err := m.Submit(s, "alice", answer(wrong), 3_000)
	require.NoError(t, err)
	require.False(t, hasEvent(events, wire.EventScoreUpdated))
	require.Equal(t, 0, s.Scores["alice"])
}

func TestArcade_Trivia_DuplicateAnswerIgnored(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	m.Begin(s, 0)

	answerCorrectly(t, m, s, "alice", 1_000)
	events, err := m.Submit(s, "alice", answer(0), 1_500)
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, 1, s.Scores["alice"])
}

func TestArcade_Trivia_RoundAdvancesWhenAllAnswered(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	m.Begin(s, 0)

	answerCorrectly(t, m, s, "alice", 1_000)
	events := answerCorrectly(t, m, s, "bob", 2_000)

	ended := findEvent(t, events, wire.EventRoundEnded).Payload.(wire.RoundEndedPayload)
	require.Equal(t, 0, ended.RoundIndex)
	require.NotNil(t, ended.CorrectIndex)

	started := findEvent(t, events, wire.EventRoundStarted).Payload.(wire.RoundStartedPayload)
	require.Equal(t, 1, started.RoundIndex)
	require.Equal(t, 1, s.RoundIndex)
	require.NotNil(t, s.RunningRound())
}

func TestArcade_Trivia_ExactlyOneRunningRound(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	m.Begin(s, 0)

	for !s.Ended() {
		running := 0
		for _, r := range s.Rounds {
			if r.State == RoundRunning {
				running++
			}
		}
		require.Equal(t, 1, running)
		answerCorrectly(t, m, s, "alice", 1_000)
		answerCorrectly(t, m, s, "bob", 2_000)
	}
}

func TestArcade_Trivia_DeadlineEndsRound(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	m.Begin(s, 0)

	events := m.OnTimer(s, 0, s.Config.TimeLimitMs)
	require.True(t, hasEvent(events, wire.EventRoundEnded))
	require.Equal(t, 1, s.RoundIndex)

	// A stale fire for the finished round does nothing.
	require.Empty(t, m.OnTimer(s, 0, s.Config.TimeLimitMs+1))
}

func TestArcade_Trivia_WinnerByScore(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	s.Config.Rounds = 2
	m.Begin(s, 0)

	answerCorrectly(t, m, s, "alice", 1_000)
	wrongOf := func() int {
		r := s.RunningRound()
		return (r.Trivia.CorrectIndex + 1) % len(r.Trivia.Options)
	}
	_, err := m.Submit(s, "bob", answer(wrongOf()), 2_000)
	require.NoError(t, err)

	answerCorrectly(t, m, s, "alice", 1_000)
	_, err = m.Submit(s, "bob", answer(wrongOf()), 2_000)
	require.NoError(t, err)

	require.True(t, s.Ended())
	require.Equal(t, "alice", s.WinnerUserID)
}

func TestArcade_Trivia_TieBreakByLowerMedian(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	s.Config.Rounds = 2
	m.Begin(s, 0)

	// Both answer correctly in both rounds; alice is faster on median.
	round := s.RunningRound()
	answerCorrectly(t, m, s, "alice", round.StartedAtMs+3_000)
	answerCorrectly(t, m, s, "bob", round.StartedAtMs+7_000)

	round = s.RunningRound()
	answerCorrectly(t, m, s, "alice", round.StartedAtMs+4_000)
	answerCorrectly(t, m, s, "bob", round.StartedAtMs+7_000)

	require.True(t, s.Ended())
	require.Equal(t, "alice", s.WinnerUserID)
	require.False(t, s.Draw)
}

func TestArcade_Trivia_EqualMediansStayDraw(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	s.Config.Rounds = 2
	m.Begin(s, 0)

	// A: [5000, 9000] median 7000; B: [7000, 7000] median 7000.
	round := s.RunningRound()
	answerCorrectly(t, m, s, "alice", round.StartedAtMs+5_000)
	answerCorrectly(t, m, s, "bob", round.StartedAtMs+7_000)

	round = s.RunningRound()
	answerCorrectly(t, m, s, "alice", round.StartedAtMs+9_000)
	answerCorrectly(t, m, s, "bob", round.StartedAtMs+7_000)

	require.True(t, s.Ended())
	require.Empty(t, s.WinnerUserID)
	require.True(t, s.Draw)
}

func TestArcade_Trivia_ResponseTimeClampedToLimit(t *testing.T) {
	t.Parallel()

	m := newTrivia()
	s := newTestSession(t, KindTrivia, m)
	m.Begin(s, 0)

	round := s.RunningRound()
	answerCorrectly(t, m, s, "alice", round.StartedAtMs+round.TimeLimitMs+5_000)
	require.Equal(t, round.TimeLimitMs, s.Trivia.ResponseTimes["alice"][0])
}

func TestArcade_Trivia_MedianOfEmptySeriesIsWorst(t *testing.T) {
	t.Parallel()

	require.True(t, math.IsInf(medianMs(nil), 1))
	require.Equal(t, 7_000.0, medianMs([]int64{5_000, 9_000}))
	require.Equal(t, 7_000.0, medianMs([]int64{7_000, 7_000, 9_000}))
}
