package activity

import (
	"encoding/json"
	"testing"

	"github.com/parlorlabs/arcade/internal/wire"
	"github.com/stretchr/testify/require"
)

func move(m string) json.RawMessage {
	b, _ := json.Marshal(rpsSubmitPayload{Move: m})
	return b
}

// playRound submits both moves into the currently running round.
func playRound(t *testing.T, m *RPS, s *Session, aliceMove, bobMove string, now int64) []wire.Event {
	t.Helper()
	_, err := m.Submit(s, "alice", move(aliceMove), now)
	require.NoError(t, err)
	events, err := m.Submit(s, "bob", move(bobMove), now+100)
	require.NoError(t, err)
	return events
}

// advanceRound fires the pending inter-round timer.
func advanceRound(t *testing.T, m *RPS, s *Session) {
	t.Helper()
	require.NotZero(t, s.NextRoundAtMs)
	events := m.OnTimer(s, s.NextRoundIndex, s.NextRoundAtMs)
	require.True(t, hasEvent(events, wire.EventRoundStarted))
}

func TestArcade_RPS_RoundResolution(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		alice  string
		bob    string
		winner string
		drawn  bool
	}{
		{"rock beats scissors", "rock", "scissors", "alice", false},
		{"scissors beats paper", "scissors", "paper", "alice", false},
		{"paper beats rock", "paper", "rock", "alice", false},
		{"scissors loses to rock", "scissors", "rock", "bob", false},
		{"equal moves draw", "rock", "rock", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := &RPS{}
			s := newTestSession(t, KindRPS, m)
			m.Begin(s, 0)

			events := playRound(t, m, s, tc.alice, tc.bob, 1_000)
			ended := findEvent(t, events, wire.EventRoundEnded).Payload.(wire.RoundEndedPayload)
			require.Equal(t, tc.winner, ended.WinnerUserID)
			require.Equal(t, tc.drawn, ended.Drawn)
		})
	}
}

func TestArcade_RPS_SweepPays300(t *testing.T) {
	t.Parallel()

	m := &RPS{}
	s := newTestSession(t, KindRPS, m)
	m.Begin(s, 0)

	for i := 0; i < 3; i++ {
		events := playRound(t, m, s, "rock", "scissors", int64(i*10_000))
		if i < 2 {
			require.False(t, hasEvent(events, wire.EventSessionEnded))
			advanceRound(t, m, s)
		} else {
			ended := findEvent(t, events, wire.EventSessionEnded).Payload.(wire.SessionEndedPayload)
			require.Equal(t, "alice", ended.WinnerUserID)
			require.Equal(t, 300, ended.Scores["alice"])
			require.Equal(t, 0, ended.Scores["bob"])
		}
	}
}

func TestArcade_RPS_ThreeTwoPays200(t *testing.T) {
	t.Parallel()

	m := &RPS{}
	s := newTestSession(t, KindRPS, m)
	m.Begin(s, 0)

	rounds := []struct{ alice, bob string }{
		{"rock", "scissors"}, // 1-0
		{"scissors", "rock"}, // 1-1
		{"rock", "scissors"}, // 2-1
		{"scissors", "rock"}, // 2-2
		{"rock", "scissors"}, // 3-2
	}
	for i, r := range rounds {
		playRound(t, m, s, r.alice, r.bob, int64(i*10_000))
		if i < len(rounds)-1 {
			advanceRound(t, m, s)
		}
	}

	require.True(t, s.Ended())
	require.Equal(t, "alice", s.WinnerUserID)
	require.Equal(t, 200, s.Scores["alice"])
	require.Equal(t, 0, s.Scores["bob"])
}

func TestArcade_RPS_TwoTwoAfterFiveIsTie(t *testing.T) {
	t.Parallel()

	m := &RPS{}
	s := newTestSession(t, KindRPS, m)
	m.Begin(s, 0)

	rounds := []struct{ alice, bob string }{
		{"rock", "scissors"}, // 1-0
		{"scissors", "rock"}, // 1-1
		{"rock", "scissors"}, // 2-1
		{"scissors", "rock"}, // 2-2
		{"rock", "rock"},     // drawn fifth round
	}
	for i, r := range rounds {
		playRound(t, m, s, r.alice, r.bob, int64(i*10_000))
		if i < len(rounds)-1 {
			advanceRound(t, m, s)
		}
	}

	require.True(t, s.Ended())
	require.True(t, s.Draw)
	require.Empty(t, s.WinnerUserID)
	require.Equal(t, 150, s.Scores["alice"])
	require.Equal(t, 150, s.Scores["bob"])
}

func TestArcade_RPS_InterRoundDelayFiveSeconds(t *testing.T) {
	t.Parallel()

	m := &RPS{}
	s := newTestSession(t, KindRPS, m)
	m.Begin(s, 0)

	playRound(t, m, s, "rock", "scissors", 10_000)
	require.Equal(t, int64(10_100+5_000), s.NextRoundAtMs)
	require.Equal(t, 1, s.NextRoundIndex)
}

func TestArcade_RPS_DuplicateMoveIgnored(t *testing.T) {
	t.Parallel()

	m := &RPS{}
	s := newTestSession(t, KindRPS, m)
	m.Begin(s, 0)

	_, err := m.Submit(s, "alice", move("rock"), 1_000)
	require.NoError(t, err)
	events, err := m.Submit(s, "alice", move("paper"), 1_100)
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, "rock", s.Rounds[0].RPS.Moves["alice"])
}

func TestArcade_RPS_UnknownMoveRejected(t *testing.T) {
	t.Parallel()

	m := &RPS{}
	s := newTestSession(t, KindRPS, m)
	m.Begin(s, 0)

	_, err := m.Submit(s, "alice", move("lizard"), 1_000)
	var werr *wire.Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, wire.CodeInvalidRequest, werr.Code)
}

func TestArcade_RPS_StaleNextRoundTimerIsNoop(t *testing.T) {
	t.Parallel()

	m := &RPS{}
	s := newTestSession(t, KindRPS, m)
	m.Begin(s, 0)

	playRound(t, m, s, "rock", "scissors", 1_000)
	advanceRound(t, m, s)

	// The already-consumed inter-round timer index does nothing.
	require.Empty(t, m.OnTimer(s, 1, 20_000))
}

func TestArcade_RPS_ForfeitAwards300(t *testing.T) {
	t.Parallel()

	m := &RPS{}
	s := newTestSession(t, KindRPS, m)
	m.Begin(s, 0)
	playRound(t, m, s, "rock", "scissors", 1_000)

	m.Forfeit(s, "alice")
	require.Equal(t, 300, s.Scores["alice"])
}
