package wire

// Event is a server-emitted session event. Events are serialized as frames,
// with the event type as the frame type.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Session event types, in canonical emission order.
const (
	EventSessionCreated     = "activity.session.created"
	EventPresence           = "activity.session.presence"
	EventCountdown          = "activity.session.countdown"
	EventCountdownCancelled = "activity.session.countdown.cancelled"
	EventSessionStarted     = "activity.session.started"
	EventRoundStarted       = "activity.round.started"
	EventScoreUpdated       = "activity.score.updated"
	EventAntiCheatFlag      = "activity.anti_cheat.flag"
	EventRoundEnded         = "activity.round.ended"
	EventSessionEnded       = "activity.session.ended"
)

type SessionCreatedPayload struct {
	SessionID    string   `json:"sessionId"`
	Kind         string   `json:"kind"`
	CreatorID    string   `json:"creatorUserId"`
	Participants []string `json:"participants"`
}

type PresencePayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Joined    bool   `json:"joined"`
	Ready     bool   `json:"ready"`
	Role      string `json:"role,omitempty"`
}

type CountdownPayload struct {
	SessionID string `json:"sessionId"`
	EndsAtMs  int64  `json:"endsAtMs"`
	Seconds   int    `json:"seconds"`
}

type CountdownCancelledPayload struct {
	SessionID string `json:"sessionId"`
}

type SessionStartedPayload struct {
	SessionID   string `json:"sessionId"`
	StartedAtMs int64  `json:"startedAtMs"`
}

// RoundStartedPayload carries the kind-specific round payload. Only the
// fields relevant to the session's kind are set.
type RoundStartedPayload struct {
	SessionID  string `json:"sessionId"`
	RoundIndex int    `json:"roundIndex"`
	DeadlineMs int64  `json:"deadlineMs,omitempty"`
	TimeLimitMs int64 `json:"timeLimitMs,omitempty"`

	// Typing duel.
	Text string `json:"text,omitempty"`

	// Trivia. The correct index is never included.
	QuestionID string   `json:"questionId,omitempty"`
	Question   string   `json:"question,omitempty"`
	Options    []string `json:"options,omitempty"`

	// Story builder.
	AuthorUserID string `json:"authorUserId,omitempty"`

	// Tic-tac-toe.
	TurnUserID string `json:"turnUserId,omitempty"`
}

type ScoreUpdatedPayload struct {
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId"`
	RoundIndex int    `json:"roundIndex"`
	Delta      int    `json:"delta"`
	Total      int    `json:"total"`
}

type AntiCheatFlagPayload struct {
	SessionID  string   `json:"sessionId"`
	UserID     string   `json:"userId"`
	RoundIndex int      `json:"roundIndex"`
	Incidents  []string `json:"incidents"`
}

type RoundEndedPayload struct {
	SessionID  string `json:"sessionId"`
	RoundIndex int    `json:"roundIndex"`

	// Trivia reveals the correct index once the round is over.
	CorrectIndex *int `json:"correctIndex,omitempty"`

	// RPS reveals both moves and the round winner.
	Moves        map[string]string `json:"moves,omitempty"`
	WinnerUserID string            `json:"winnerUserId,omitempty"`
	Drawn        bool              `json:"drawn,omitempty"`

	// Tic-tac-toe reveals the final board.
	Board []string `json:"board,omitempty"`

	// Story signals the transition into voting.
	NextPhase string `json:"nextPhase,omitempty"`
}

type SessionEndedPayload struct {
	SessionID    string         `json:"sessionId"`
	WinnerUserID string         `json:"winnerUserId,omitempty"`
	Draw         bool           `json:"draw"`
	Reason       string         `json:"reason,omitempty"`
	Scores       map[string]int `json:"scores"`
}
