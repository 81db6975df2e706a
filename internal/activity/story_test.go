package activity

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/parlorlabs/arcade/internal/content"
	"github.com/parlorlabs/arcade/internal/wire"
	"github.com/stretchr/testify/require"
)

func newStory() *StoryBuilder {
	// Order stays [alice, bob], prompt is the pool's first entry.
	return &StoryBuilder{Content: content.Default(), IntN: func(n int) int { return 0 }}
}

func newStorySession(t *testing.T, m *StoryBuilder, roleAlice, roleBob string) *Session {
	t.Helper()
	s := newTestSession(t, KindStory, m)
	s.Participants[0].Role = roleAlice
	s.Participants[1].Role = roleBob
	return s
}

func paragraph(text string) json.RawMessage {
	b, _ := json.Marshal(storySubmitPayload{Kind: "paragraph", Text: text})
	return b
}

func vote(index, score int) json.RawMessage {
	b, _ := json.Marshal(storySubmitPayload{Kind: "vote", ParagraphIndex: index, Score: score})
	return b
}

// writeAllParagraphs alternates turns until the writing phase completes.
func writeAllParagraphs(t *testing.T, m *StoryBuilder, s *Session) {
	t.Helper()
	total := s.Config.ParagraphCap * len(s.Participants)
	for i := 0; i < total; i++ {
		author := s.Story.Order[i%2]
		_, err := m.Submit(s, author, paragraph(fmt.Sprintf("paragraph %d", i)), int64(i*1_000))
		require.NoError(t, err)
	}
	require.Equal(t, PhaseVoting, s.Phase)
}

func TestArcade_Story_RolePairSelectsPool(t *testing.T) {
	t.Parallel()

	cases := []struct {
		roleA, roleB, pool string
	}{
		{RoleBoy, RoleGirl, content.PoolMixed},
		{RoleGirl, RoleBoy, content.PoolMixed},
		{RoleBoy, RoleBoy, content.PoolSameBoy},
		{RoleGirl, RoleGirl, content.PoolSameGirl},
	}
	for _, tc := range cases {
		m := newStory()
		s := newStorySession(t, m, tc.roleA, tc.roleB)
		m.Begin(s, 0)
		require.Equal(t, tc.pool, s.Story.Pool)
		require.NotEmpty(t, s.Story.Prompt)
	}
}

func TestArcade_Story_RolesGateCountdown(t *testing.T) {
	t.Parallel()

	m := newStory()
	s := newTestSession(t, KindStory, m)
	require.False(t, m.RolesReady(s))

	s.Participants[0].Role = RoleBoy
	require.False(t, m.RolesReady(s))
	s.Participants[1].Role = RoleGirl
	require.True(t, m.RolesReady(s))

	require.True(t, m.ValidRole(RoleBoy))
	require.False(t, m.ValidRole("wizard"))
}

func TestArcade_Story_TurnOrderEnforced(t *testing.T) {
	t.Parallel()

	m := newStory()
	s := newStorySession(t, m, RoleBoy, RoleGirl)
	m.Begin(s, 0)

	_, err := m.Submit(s, "bob", paragraph("out of turn"), 1_000)
	var werr *wire.Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, wire.CodeInvalidRequest, werr.Code)

	events, err := m.Submit(s, "alice", paragraph("once upon a time"), 1_000)
	require.NoError(t, err)
	started := findEvent(t, events, wire.EventRoundStarted).Payload.(wire.RoundStartedPayload)
	require.Equal(t, "bob", started.AuthorUserID)
}

func TestArcade_Story_WritingCompletesIntoVoting(t *testing.T) {
	t.Parallel()

	m := newStory()
	s := newStorySession(t, m, RoleBoy, RoleGirl)
	m.Begin(s, 0)

	writeAllParagraphs(t, m, s)
	require.Len(t, s.Story.Paragraphs, 6)

	_, err := m.Submit(s, "alice", paragraph("too late"), 99_000)
	var werr *wire.Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, wire.CodeSessionNotRunning, werr.Code)
}

func TestArcade_Story_SelfVoteRejected(t *testing.T) {
	t.Parallel()

	m := newStory()
	s := newStorySession(t, m, RoleBoy, RoleGirl)
	m.Begin(s, 0)
	writeAllParagraphs(t, m, s)

	// Paragraph 0 was written by alice.
	_, err := m.Submit(s, "alice", vote(0, 10), 50_000)
	var werr *wire.Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, wire.CodeInvalidRequest, werr.Code)
}

func TestArcade_Story_VoteBoundsChecked(t *testing.T) {
	t.Parallel()

	m := newStory()
	s := newStorySession(t, m, RoleBoy, RoleGirl)
	m.Begin(s, 0)
	writeAllParagraphs(t, m, s)

	var werr *wire.Error
	_, err := m.Submit(s, "bob", vote(0, 11), 50_000)
	require.ErrorAs(t, err, &werr)
	_, err = m.Submit(s, "bob", vote(99, 5), 50_000)
	require.ErrorAs(t, err, &werr)
}

func TestArcade_Story_TallyDeterminesWinner(t *testing.T) {
	t.Parallel()

	m := newStory()
	s := newStorySession(t, m, RoleBoy, RoleGirl)
	m.Begin(s, 0)
	writeAllParagraphs(t, m, s)

	// Order is [alice, bob]: even paragraphs are alice's, odd are bob's.
	// bob scores alice's paragraphs 8 each; alice scores bob's 3 each.
	for i := 0; i < 6; i += 2 {
		_, err := m.Submit(s, "bob", vote(i, 8), 50_000)
		require.NoError(t, err)
	}
	var events []wire.Event
	for i := 1; i < 6; i += 2 {
		ev, err := m.Submit(s, "alice", vote(i, 3), 51_000)
		require.NoError(t, err)
		events = ev
	}

	require.True(t, s.Ended())
	ended := findEvent(t, events, wire.EventSessionEnded).Payload.(wire.SessionEndedPayload)
	require.Equal(t, "alice", ended.WinnerUserID)
	require.Equal(t, 24, ended.Scores["alice"])
	require.Equal(t, 9, ended.Scores["bob"])
}

func TestArcade_Story_EqualTalliesProduceNoWinner(t *testing.T) {
	t.Parallel()

	m := newStory()
	s := newStorySession(t, m, RoleBoy, RoleGirl)
	m.Begin(s, 0)
	writeAllParagraphs(t, m, s)

	for i := 0; i < 6; i += 2 {
		_, err := m.Submit(s, "bob", vote(i, 5), 50_000)
		require.NoError(t, err)
	}
	for i := 1; i < 6; i += 2 {
		_, err := m.Submit(s, "alice", vote(i, 5), 51_000)
		require.NoError(t, err)
	}

	require.True(t, s.Ended())
	require.True(t, s.Draw)
	require.Empty(t, s.WinnerUserID)
}

func TestArcade_Story_DuplicateVoteIgnored(t *testing.T) {
	t.Parallel()

	m := newStory()
	s := newStorySession(t, m, RoleBoy, RoleGirl)
	m.Begin(s, 0)
	writeAllParagraphs(t, m, s)

	_, err := m.Submit(s, "bob", vote(0, 8), 50_000)
	require.NoError(t, err)
	events, err := m.Submit(s, "bob", vote(0, 1), 50_500)
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, 8, s.Story.Votes["bob"][0])
}
