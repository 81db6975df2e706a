package activity

// Authoritative per-session state. The coordinator is the exclusive writer;
// nothing in this package takes locks.

// Kind selects the game variant and its state machine.
type Kind string

const (
	KindTypingDuel Kind = "typing_duel"
	KindTrivia     Kind = "trivia"
	KindRPS        Kind = "rps"
	KindTicTacToe  Kind = "tictactoe"
	KindStory      Kind = "story"
)

// ParseKind validates an activity key from the wire.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindTypingDuel, KindTrivia, KindRPS, KindTicTacToe, KindStory:
		return Kind(s), true
	}
	return "", false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhaseRunning   Phase = "running"
	PhaseVoting    Phase = "voting"
	PhaseEnded     Phase = "ended"
)

type RoundState string

const (
	RoundQueued  RoundState = "queued"
	RoundRunning RoundState = "running"
	RoundDone    RoundState = "done"
)

// Participant is one of the session's two declared players.
type Participant struct {
	UserID string `json:"userId"`
	Joined bool   `json:"joined"`
	Ready  bool   `json:"ready"`
	Role   string `json:"role,omitempty"`
}

// KeystrokeSample is one server-normalized typing progress sample.
type KeystrokeSample struct {
	ServerTimeMs int64 `json:"serverTimeMs"`
	Length       int   `json:"length"`
	Paste        bool  `json:"paste,omitempty"`
}

// TypingSubmission is the recorded final submission for one user.
type TypingSubmission struct {
	Text       string   `json:"text"`
	AtMs       int64    `json:"atMs"`
	DurationMs int64    `json:"durationMs"`
	Accuracy   float64  `json:"accuracy"`
	WPM        float64  `json:"wpm"`
	Perfect    bool     `json:"perfect"`
	Incidents  []string `json:"incidents,omitempty"`
}

type TypingRound struct {
	Text        string                       `json:"text"`
	Submissions map[string]*TypingSubmission `json:"submissions"`
	Keystrokes  map[string][]KeystrokeSample `json:"keystrokes"`
}

type TriviaAnswer struct {
	ChoiceIndex    int   `json:"choiceIndex"`
	ResponseTimeMs int64 `json:"responseTimeMs"`
	Correct        bool  `json:"correct"`
}

type TriviaRound struct {
	QuestionID   string                   `json:"questionId"`
	Question     string                   `json:"question"`
	Options      []string                 `json:"options"`
	CorrectIndex int                      `json:"correctIndex"`
	Answers      map[string]*TriviaAnswer `json:"answers"`
}

type RPSRound struct {
	Moves map[string]string `json:"moves"`
}

// BoardRound is one tic-tac-toe board. Cells hold "X", "O" or "".
type BoardRound struct {
	Cells      []string `json:"cells"`
	TurnUserID string   `json:"turnUserId"`
}

// Round is one unit of gameplay. Exactly one kind payload pointer is set,
// matching the session kind.
type Round struct {
	Index       int        `json:"index"`
	State       RoundState `json:"state"`
	StartedAtMs int64      `json:"startedAtMs,omitempty"`
	DeadlineMs  int64      `json:"deadlineMs,omitempty"`
	TimeLimitMs int64      `json:"timeLimitMs,omitempty"`

	Typing *TypingRound `json:"typing,omitempty"`
	Trivia *TriviaRound `json:"trivia,omitempty"`
	RPS    *RPSRound    `json:"rps,omitempty"`
	Board  *BoardRound  `json:"board,omitempty"`
}

// Config holds the kind-specific knobs accepted at session creation. Zero
// values are backfilled with defaults by the machine's Init.
type Config struct {
	// Typing duel.
	TextMinLen  int   `json:"textMinLen,omitempty"`
	TextMaxLen  int   `json:"textMaxLen,omitempty"`
	TimeLimitMs int64 `json:"timeLimitMs,omitempty"`

	// Trivia.
	Rounds     int    `json:"rounds,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`

	// Tic-tac-toe.
	WinTarget int `json:"winTarget,omitempty"`

	// Story builder.
	ParagraphCap int `json:"paragraphCap,omitempty"`
}

type RPSMatch struct {
	RoundWins map[string]int `json:"roundWins"`
}

type TTTMatch struct {
	// Marks maps userID to "X" or "O". X moves first in every round.
	Marks     map[string]string `json:"marks"`
	RoundWins map[string]int    `json:"roundWins"`
}

type TriviaMatch struct {
	// QuestionIDs are the session's pre-drawn questions, one per round,
	// picked without replacement.
	QuestionIDs []string `json:"questionIds"`
	// ResponseTimes accumulates per-user answer latencies for tie-breaking.
	ResponseTimes map[string][]int64 `json:"responseTimes"`
}

type Paragraph struct {
	AuthorUserID string `json:"authorUserId"`
	Text         string `json:"text"`
}

type StoryMatch struct {
	Pool       string      `json:"pool"`
	Prompt     string      `json:"prompt"`
	Order      []string    `json:"order"`
	TurnIndex  int         `json:"turnIndex"`
	Paragraphs []Paragraph `json:"paragraphs"`
	// Votes maps voter -> paragraph index -> score in [0..10].
	Votes map[string]map[int]int `json:"votes"`
}

// Session is the authoritative state for one activity session.
type Session struct {
	ID           string         `json:"id"`
	Kind         Kind           `json:"kind"`
	Status       Status         `json:"status"`
	Phase        Phase          `json:"phase"`
	CreatorID    string         `json:"creatorUserId"`
	Participants []*Participant `json:"participants"`
	Scores       map[string]int `json:"scores"`
	RoundIndex   int            `json:"roundIndex"`
	Rounds       []*Round       `json:"rounds"`
	Config       Config         `json:"config"`

	CreatedAtMs       int64 `json:"createdAtMs"`
	StartedAtMs       int64 `json:"startedAtMs,omitempty"`
	EndedAtMs         int64 `json:"endedAtMs,omitempty"`
	CountdownEndsAtMs int64 `json:"countdownEndsAtMs,omitempty"`
	LastActivityMs    int64 `json:"lastActivityMs"`

	// NextRoundAtMs marks a pending inter-round delay (rps, tictactoe). The
	// coordinator arms a timer for NextRoundIndex at that instant.
	NextRoundAtMs  int64 `json:"nextRoundAtMs,omitempty"`
	NextRoundIndex int   `json:"nextRoundIndex,omitempty"`

	WinnerUserID string `json:"winnerUserId,omitempty"`
	Draw         bool   `json:"draw,omitempty"`
	LeaveReason  string `json:"leaveReason,omitempty"`

	// SkewMs is the per-user EWMA of (serverNow - clientNow), maintained
	// from ping exchanges and used to normalize keystroke timestamps.
	SkewMs map[string]float64 `json:"skewMs,omitempty"`

	Version       uint64 `json:"version"`
	StatsRecorded bool   `json:"statsRecorded"`

	RPS       *RPSMatch    `json:"rpsMatch,omitempty"`
	TicTacToe *TTTMatch    `json:"tictactoeMatch,omitempty"`
	Trivia    *TriviaMatch `json:"triviaMatch,omitempty"`
	Story     *StoryMatch  `json:"storyMatch,omitempty"`
}

// Participant returns the participant record for userID, or nil.
func (s *Session) Participant(userID string) *Participant {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// JoinedCount counts participants currently joined.
func (s *Session) JoinedCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.Joined {
			n++
		}
	}
	return n
}

// AllReady reports whether every participant is joined and ready.
func (s *Session) AllReady() bool {
	for _, p := range s.Participants {
		if !p.Joined || !p.Ready {
			return false
		}
	}
	return len(s.Participants) > 0
}

// CurrentRound returns the round at RoundIndex, or nil.
func (s *Session) CurrentRound() *Round {
	if s.RoundIndex < 0 || s.RoundIndex >= len(s.Rounds) {
		return nil
	}
	return s.Rounds[s.RoundIndex]
}

// RunningRound returns the unique round in state running, or nil.
func (s *Session) RunningRound() *Round {
	for _, r := range s.Rounds {
		if r.State == RoundRunning {
			return r
		}
	}
	return nil
}

// Touch records participant activity for the inactivity watchdog and bumps
// the version counter.
func (s *Session) Touch(now int64) {
	s.LastActivityMs = now
	s.Version++
}

// Ended reports terminal state.
func (s *Session) Ended() bool {
	return s.Status == StatusEnded
}
