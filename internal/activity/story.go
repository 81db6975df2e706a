package activity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/parlorlabs/arcade/internal/content"
	"github.com/parlorlabs/arcade/internal/wire"
)

const (
	defaultStoryParagraphCap = 3

	storyCountdown = 5 * time.Second
	storyVoteMax   = 10
)

// Story roles pickable in the lobby. The pair selects the prompt pool.
const (
	RoleBoy  = "boy"
	RoleGirl = "girl"
)

// StoryBuilder is the collaborative writing game: alternating paragraphs up
// to a cap each, then cross-voting on every paragraph.
type StoryBuilder struct {
	Content *content.Library
	IntN    func(n int) int
}

func (m *StoryBuilder) Kind() Kind { return KindStory }

func (m *StoryBuilder) Countdown() time.Duration { return storyCountdown }

func (m *StoryBuilder) Init(s *Session) error {
	if s.Config.ParagraphCap == 0 {
		s.Config.ParagraphCap = defaultStoryParagraphCap
	}
	if s.Config.ParagraphCap < 1 {
		return wire.NewError(wire.CodeInvalidRequest, "paragraph cap must be >= 1")
	}
	return nil
}

// ValidRole reports whether a lobby role pick is acceptable.
func (m *StoryBuilder) ValidRole(role string) bool {
	return role == RoleBoy || role == RoleGirl
}

// RolesReady gates the countdown: every participant must have picked a role.
func (m *StoryBuilder) RolesReady(s *Session) bool {
	for _, p := range s.Participants {
		if p.Role == "" {
			return false
		}
	}
	return true
}

func (m *StoryBuilder) Begin(s *Session, now int64) []wire.Event {
	events := []wire.Event{sessionStartedEvent(s, now)}

	pool := content.PoolMixed
	switch {
	case s.Participants[0].Role == RoleBoy && s.Participants[1].Role == RoleBoy:
		pool = content.PoolSameBoy
	case s.Participants[0].Role == RoleGirl && s.Participants[1].Role == RoleGirl:
		pool = content.PoolSameGirl
	}
	prompts := m.Content.StoryPrompts[pool]
	prompt := prompts[m.IntN(len(prompts))]

	order := []string{s.Participants[0].UserID, s.Participants[1].UserID}
	if m.IntN(2) == 1 {
		order[0], order[1] = order[1], order[0]
	}

	s.Story = &StoryMatch{
		Pool:   pool,
		Prompt: prompt,
		Order:  order,
		Votes:  make(map[string]map[int]int),
	}

	events = append(events, wire.Event{Type: wire.EventRoundStarted, Payload: wire.RoundStartedPayload{
		SessionID:    s.ID,
		RoundIndex:   0,
		Text:         prompt,
		AuthorUserID: order[0],
	}})
	return events
}

type storySubmitPayload struct {
	Kind           string `json:"kind"`
	Text           string `json:"text,omitempty"`
	ParagraphIndex int    `json:"paragraphIndex,omitempty"`
	Score          int    `json:"score,omitempty"`
}

func (m *StoryBuilder) Submit(s *Session, userID string, payload json.RawMessage, now int64) ([]wire.Event, error) {
	var body storySubmitPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, wire.NewError(wire.CodeInvalidRequest, "malformed submit payload")
	}

	switch body.Kind {
	case "paragraph":
		return m.submitParagraph(s, userID, body.Text, now)
	case "vote":
		return m.submitVote(s, userID, body.ParagraphIndex, body.Score, now)
	default:
		return nil, wire.NewError(wire.CodeInvalidRequest, "unknown story submit kind")
	}
}

func (m *StoryBuilder) submitParagraph(s *Session, userID, text string, now int64) ([]wire.Event, error) {
	if s.Phase != PhaseRunning {
		return nil, wire.NewError(wire.CodeSessionNotRunning, "writing is over")
	}
	turn := s.Story.Order[len(s.Story.Paragraphs)%len(s.Story.Order)]
	if turn != userID {
		return nil, wire.NewError(wire.CodeInvalidRequest, "not your turn")
	}
	if strings.TrimSpace(text) == "" {
		return nil, wire.NewError(wire.CodeInvalidRequest, "empty paragraph")
	}

	s.Story.Paragraphs = append(s.Story.Paragraphs, Paragraph{AuthorUserID: userID, Text: text})
	s.Story.TurnIndex = len(s.Story.Paragraphs)

	total := s.Config.ParagraphCap * len(s.Participants)
	if len(s.Story.Paragraphs) >= total {
		s.Phase = PhaseVoting
		s.Version++
		return []wire.Event{{Type: wire.EventRoundEnded, Payload: wire.RoundEndedPayload{
			SessionID:  s.ID,
			RoundIndex: len(s.Story.Paragraphs) - 1,
			NextPhase:  string(PhaseVoting),
		}}}, nil
	}

	next := s.Story.Order[len(s.Story.Paragraphs)%len(s.Story.Order)]
	return []wire.Event{{Type: wire.EventRoundStarted, Payload: wire.RoundStartedPayload{
		SessionID:    s.ID,
		RoundIndex:   len(s.Story.Paragraphs),
		AuthorUserID: next,
	}}}, nil
}

func (m *StoryBuilder) submitVote(s *Session, userID string, index, score int, now int64) ([]wire.Event, error) {
	if s.Phase != PhaseVoting {
		return nil, wire.NewError(wire.CodeSessionNotRunning, "not in voting phase")
	}
	if index < 0 || index >= len(s.Story.Paragraphs) {
		return nil, wire.NewError(wire.CodeInvalidRequest, "paragraph index out of range")
	}
	if score < 0 || score > storyVoteMax {
		return nil, wire.NewError(wire.CodeInvalidRequest, "score out of range")
	}
	if s.Story.Paragraphs[index].AuthorUserID == userID {
		return nil, wire.NewError(wire.CodeInvalidRequest, "cannot vote on your own paragraph")
	}
	if _, dup := s.Story.Votes[userID][index]; dup {
		return nil, nil
	}

	if s.Story.Votes[userID] == nil {
		s.Story.Votes[userID] = make(map[int]int)
	}
	s.Story.Votes[userID][index] = score

	if !m.votingComplete(s) {
		return nil, nil
	}
	return m.settle(s, now), nil
}

// votingComplete requires every participant to have scored every paragraph
// they did not author.
func (m *StoryBuilder) votingComplete(s *Session) bool {
	for _, p := range s.Participants {
		for i, para := range s.Story.Paragraphs {
			if para.AuthorUserID == p.UserID {
				continue
			}
			if _, ok := s.Story.Votes[p.UserID][i]; !ok {
				return false
			}
		}
	}
	return true
}

func (m *StoryBuilder) settle(s *Session, now int64) []wire.Event {
	tally := make(map[string]int)
	for _, votes := range s.Story.Votes {
		for i, score := range votes {
			tally[s.Story.Paragraphs[i].AuthorUserID] += score
		}
	}

	var events []wire.Event
	for _, p := range s.Participants {
		events = append(events, addScore(s, p.UserID, len(s.Story.Paragraphs)-1, tally[p.UserID]))
	}

	winner, draw := leaderByScore(s)
	events = append(events, EndSession(s, winner, draw, "", now)...)
	return events
}

// OnTimer is a no-op: the story machine owns no round timers, only the
// coordinator's inactivity watchdog applies.
func (m *StoryBuilder) OnTimer(s *Session, roundIndex int, now int64) []wire.Event {
	return nil
}

func (m *StoryBuilder) Forfeit(s *Session, winnerID string) {}
