package activity

import (
	"encoding/json"
	"math"
	"time"

	"github.com/parlorlabs/arcade/internal/content"
	"github.com/parlorlabs/arcade/internal/wire"
)

const (
	defaultTypingTextMinLen  = 70
	defaultTypingTextMaxLen  = 120
	defaultTypingTimeLimitMs = 40_000

	typingCountdown = 10 * time.Second

	typingPerfectBase   = 100
	typingImperfectLoss = -25

	// Anti-cheat: sustained typing above this rate across a window of
	// samples is flagged as implausible. 30 chars/sec is roughly 360 WPM.
	antiCheatRateWindow     = 5
	antiCheatMaxCharsPerSec = 30.0

	// Skew estimation from ping exchanges.
	skewAlpha   = 0.4
	skewClampMs = 600.0
)

// Anti-cheat incident names. Stable wire contract; thresholds are ours.
const (
	IncidentPaste           = "paste"
	IncidentImplausibleRate = "implausible_rate"
	IncidentLateInput       = "late_input_after_deadline"
)

// TypingDuel is a single-round race to reproduce a text sample.
type TypingDuel struct {
	Content *content.Library
	// IntN picks a random sample; defaults to math/rand. Injected in tests.
	IntN func(n int) int
}

func (m *TypingDuel) Kind() Kind { return KindTypingDuel }

func (m *TypingDuel) Countdown() time.Duration { return typingCountdown }

func (m *TypingDuel) Init(s *Session) error {
	if s.Config.TextMinLen == 0 {
		s.Config.TextMinLen = defaultTypingTextMinLen
	}
	if s.Config.TextMaxLen == 0 {
		s.Config.TextMaxLen = defaultTypingTextMaxLen
	}
	if s.Config.TimeLimitMs == 0 {
		s.Config.TimeLimitMs = defaultTypingTimeLimitMs
	}
	if s.Config.TextMinLen > s.Config.TextMaxLen {
		return wire.NewError(wire.CodeInvalidRequest, "text length bounds inverted")
	}
	if s.Config.TimeLimitMs < 1000 {
		return wire.NewError(wire.CodeInvalidRequest, "time limit too short")
	}
	return nil
}

func (m *TypingDuel) Begin(s *Session, now int64) []wire.Event {
	events := []wire.Event{sessionStartedEvent(s, now)}

	samples := m.Content.SamplesWithin(s.Config.TextMinLen, s.Config.TextMaxLen)
	text := samples[m.IntN(len(samples))]

	round := &Round{
		Index:       0,
		State:       RoundRunning,
		StartedAtMs: now,
		DeadlineMs:  now + s.Config.TimeLimitMs,
		TimeLimitMs: s.Config.TimeLimitMs,
		Typing: &TypingRound{
			Text:        text,
			Submissions: make(map[string]*TypingSubmission),
			Keystrokes:  make(map[string][]KeystrokeSample),
		},
	}
	s.Rounds = []*Round{round}
	s.RoundIndex = 0

	events = append(events, wire.Event{Type: wire.EventRoundStarted, Payload: wire.RoundStartedPayload{
		SessionID:   s.ID,
		RoundIndex:  0,
		DeadlineMs:  round.DeadlineMs,
		TimeLimitMs: round.TimeLimitMs,
		Text:        text,
	}})
	return events
}

type typingSubmitPayload struct {
	Text string `json:"text"`
}

func (m *TypingDuel) Submit(s *Session, userID string, payload json.RawMessage, now int64) ([]wire.Event, error) {
	round := s.RunningRound()
	if round == nil || round.Typing == nil {
		return nil, wire.NewError(wire.CodeRoundNotStarted, "")
	}
	if _, dup := round.Typing.Submissions[userID]; dup {
		return nil, nil
	}

	var body typingSubmitPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, wire.NewError(wire.CodeInvalidRequest, "malformed submit payload")
	}

	sub := m.recordSubmission(s, round, userID, body.Text, now)

	var events []wire.Event
	if len(sub.Incidents) > 0 {
		events = append(events, wire.Event{Type: wire.EventAntiCheatFlag, Payload: wire.AntiCheatFlagPayload{
			SessionID:  s.ID,
			UserID:     userID,
			RoundIndex: round.Index,
			Incidents:  sub.Incidents,
		}})
	}

	if sub.Perfect {
		delta := typingPerfectBase + int((round.TimeLimitMs-sub.DurationMs)/1000)
		events = append(events, addScore(s, userID, round.Index, delta))
		events = append(events, m.endRound(s, round, now)...)
		return events, nil
	}

	events = append(events, addScore(s, userID, round.Index, typingImperfectLoss))
	if len(round.Typing.Submissions) == len(s.Participants) {
		events = append(events, m.endRound(s, round, now)...)
	}
	return events, nil
}

func (m *TypingDuel) recordSubmission(s *Session, round *Round, userID, text string, now int64) *TypingSubmission {
	duration := now - round.StartedAtMs
	if duration < 0 {
		duration = 0
	}
	if duration > round.TimeLimitMs {
		duration = round.TimeLimitMs
	}

	sub := &TypingSubmission{
		Text:       text,
		AtMs:       now,
		DurationMs: duration,
		Perfect:    text == round.Typing.Text,
		Accuracy:   typingAccuracy(round.Typing.Text, text),
		Incidents:  deriveIncidents(round.Typing.Keystrokes[userID], round.DeadlineMs),
	}
	if duration > 0 {
		sub.WPM = (float64(len(text)) / 5.0) / (float64(duration) / 60_000.0)
	}
	round.Typing.Submissions[userID] = sub
	return sub
}

// endRound closes the round, charges the users that never submitted, and
// settles the match.
func (m *TypingDuel) endRound(s *Session, round *Round, now int64) []wire.Event {
	round.State = RoundDone

	var events []wire.Event
	for _, p := range s.Participants {
		if _, ok := round.Typing.Submissions[p.UserID]; !ok {
			events = append(events, addScore(s, p.UserID, round.Index, typingImperfectLoss))
		}
	}

	events = append(events, wire.Event{Type: wire.EventRoundEnded, Payload: wire.RoundEndedPayload{
		SessionID:  s.ID,
		RoundIndex: round.Index,
	}})

	winner, draw := leaderByScore(s)
	events = append(events, EndSession(s, winner, draw, "", now)...)
	return events
}

func (m *TypingDuel) OnTimer(s *Session, roundIndex int, now int64) []wire.Event {
	round := s.RunningRound()
	if round == nil || round.Index != roundIndex || round.Typing == nil {
		return nil
	}
	return m.endRound(s, round, now)
}

func (m *TypingDuel) Forfeit(s *Session, winnerID string) {}

// AppendKeystroke normalizes one client sample by the user's skew estimate,
// enforces monotonic server time, stores it, and flags paste immediately.
func AppendKeystroke(s *Session, userID string, sample wire.KeystrokePayload, now int64) []wire.Event {
	round := s.RunningRound()
	if round == nil || round.Typing == nil {
		return nil
	}

	serverTime := sample.ClientTimeMs + int64(math.Round(s.SkewMs[userID]))
	if serverTime > now {
		serverTime = now
	}
	series := round.Typing.Keystrokes[userID]
	if n := len(series); n > 0 && serverTime < series[n-1].ServerTimeMs+1 {
		serverTime = series[n-1].ServerTimeMs + 1
	}
	round.Typing.Keystrokes[userID] = append(series, KeystrokeSample{
		ServerTimeMs: serverTime,
		Length:       sample.Length,
		Paste:        sample.Paste,
	})

	if sample.Paste {
		return []wire.Event{{Type: wire.EventAntiCheatFlag, Payload: wire.AntiCheatFlagPayload{
			SessionID:  s.ID,
			UserID:     userID,
			RoundIndex: round.Index,
			Incidents:  []string{IncidentPaste},
		}}}
	}
	return nil
}

// UpdateSkew folds one ping exchange into the user's skew EWMA and returns
// the new estimate.
func UpdateSkew(s *Session, userID string, clientTimeMs, now int64) float64 {
	if s.SkewMs == nil {
		s.SkewMs = make(map[string]float64)
	}
	observed := float64(now - clientTimeMs)
	skew, ok := s.SkewMs[userID]
	if !ok {
		skew = observed
	} else {
		skew += skewAlpha * (observed - skew)
	}
	skew = math.Max(-skewClampMs, math.Min(skewClampMs, skew))
	s.SkewMs[userID] = skew
	return skew
}

// deriveIncidents scans a keystroke series for anti-cheat signals.
func deriveIncidents(series []KeystrokeSample, deadlineMs int64) []string {
	var incidents []string

	for _, k := range series {
		if k.Paste {
			incidents = append(incidents, IncidentPaste)
			break
		}
	}

	for i := antiCheatRateWindow - 1; i < len(series); i++ {
		first, last := series[i-antiCheatRateWindow+1], series[i]
		dt := last.ServerTimeMs - first.ServerTimeMs
		dc := last.Length - first.Length
		if dt <= 0 || dc <= 0 {
			continue
		}
		if float64(dc)/(float64(dt)/1000.0) > antiCheatMaxCharsPerSec {
			incidents = append(incidents, IncidentImplausibleRate)
			break
		}
	}

	for _, k := range series {
		if k.ServerTimeMs > deadlineMs {
			incidents = append(incidents, IncidentLateInput)
			break
		}
	}
	return incidents
}

// typingAccuracy is the positional character match ratio against the prompt.
func typingAccuracy(prompt, typed string) float64 {
	if len(prompt) == 0 {
		return 0
	}
	n := len(typed)
	if len(prompt) < n {
		n = len(prompt)
	}
	match := 0
	for i := 0; i < n; i++ {
		if prompt[i] == typed[i] {
			match++
		}
	}
	return float64(match) / float64(len(prompt))
}

// leaderByScore settles a two-player match on the scoreboard.
func leaderByScore(s *Session) (winner string, draw bool) {
	best, bestScore, ties := "", math.MinInt, 0
	for _, p := range s.Participants {
		score := s.Scores[p.UserID]
		if score > bestScore {
			best, bestScore, ties = p.UserID, score, 1
		} else if score == bestScore {
			ties++
		}
	}
	if ties > 1 || best == "" {
		return "", true
	}
	return best, false
}
