package activity

// Client-facing projections of session state. Views never leak the trivia
// correct index for a round still in flight, nor other players' keystroke
// series.

type View struct {
	ID                string         `json:"id"`
	Kind              Kind           `json:"kind"`
	Status            Status         `json:"status"`
	Phase             Phase          `json:"phase"`
	CreatorID         string         `json:"creatorUserId"`
	Participants      []Participant  `json:"participants"`
	Scores            map[string]int `json:"scores"`
	RoundIndex        int            `json:"roundIndex"`
	Rounds            []RoundView    `json:"rounds,omitempty"`
	CreatedAtMs       int64          `json:"createdAtMs"`
	StartedAtMs       int64          `json:"startedAtMs,omitempty"`
	EndedAtMs         int64          `json:"endedAtMs,omitempty"`
	CountdownEndsAtMs int64          `json:"countdownEndsAtMs,omitempty"`
	WinnerUserID      string         `json:"winnerUserId,omitempty"`
	Draw              bool           `json:"draw,omitempty"`
	LeaveReason       string         `json:"leaveReason,omitempty"`
	Version           uint64         `json:"version"`

	Story *StoryView `json:"story,omitempty"`
}

type RoundView struct {
	Index       int        `json:"index"`
	State       RoundState `json:"state"`
	StartedAtMs int64      `json:"startedAtMs,omitempty"`
	DeadlineMs  int64      `json:"deadlineMs,omitempty"`
	TimeLimitMs int64      `json:"timeLimitMs,omitempty"`

	Text string `json:"text,omitempty"`

	QuestionID   string   `json:"questionId,omitempty"`
	Question     string   `json:"question,omitempty"`
	Options      []string `json:"options,omitempty"`
	CorrectIndex *int     `json:"correctIndex,omitempty"`

	Moves map[string]string `json:"moves,omitempty"`

	Board      []string `json:"board,omitempty"`
	TurnUserID string   `json:"turnUserId,omitempty"`
}

type StoryView struct {
	Prompt     string      `json:"prompt"`
	Order      []string    `json:"order"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Summary is the list-endpoint projection.
type Summary struct {
	ID           string   `json:"id"`
	Kind         Kind     `json:"kind"`
	Status       Status   `json:"status"`
	Phase        Phase    `json:"phase"`
	CreatorID    string   `json:"creatorUserId"`
	Participants []string `json:"participants"`
	CreatedAtMs  int64    `json:"createdAtMs"`
}

// View builds the client snapshot of the session.
func (s *Session) View() View {
	v := View{
		ID:                s.ID,
		Kind:              s.Kind,
		Status:            s.Status,
		Phase:             s.Phase,
		CreatorID:         s.CreatorID,
		Scores:            make(map[string]int, len(s.Scores)),
		RoundIndex:        s.RoundIndex,
		CreatedAtMs:       s.CreatedAtMs,
		StartedAtMs:       s.StartedAtMs,
		EndedAtMs:         s.EndedAtMs,
		CountdownEndsAtMs: s.CountdownEndsAtMs,
		WinnerUserID:      s.WinnerUserID,
		Draw:              s.Draw,
		LeaveReason:       s.LeaveReason,
		Version:           s.Version,
	}
	for _, p := range s.Participants {
		v.Participants = append(v.Participants, *p)
	}
	for k, score := range s.Scores {
		v.Scores[k] = score
	}
	for _, r := range s.Rounds {
		v.Rounds = append(v.Rounds, roundView(r))
	}
	if s.Story != nil {
		v.Story = &StoryView{
			Prompt:     s.Story.Prompt,
			Order:      s.Story.Order,
			Paragraphs: s.Story.Paragraphs,
		}
	}
	return v
}

func roundView(r *Round) RoundView {
	rv := RoundView{
		Index:       r.Index,
		State:       r.State,
		StartedAtMs: r.StartedAtMs,
		DeadlineMs:  r.DeadlineMs,
		TimeLimitMs: r.TimeLimitMs,
	}
	if r.Typing != nil {
		rv.Text = r.Typing.Text
	}
	if r.Trivia != nil {
		rv.QuestionID = r.Trivia.QuestionID
		rv.Question = r.Trivia.Question
		rv.Options = r.Trivia.Options
		if r.State == RoundDone {
			correct := r.Trivia.CorrectIndex
			rv.CorrectIndex = &correct
		}
	}
	if r.RPS != nil && r.State == RoundDone {
		rv.Moves = make(map[string]string, len(r.RPS.Moves))
		for k, m := range r.RPS.Moves {
			rv.Moves[k] = m
		}
	}
	if r.Board != nil {
		rv.Board = append([]string(nil), r.Board.Cells...)
		rv.TurnUserID = r.Board.TurnUserID
	}
	return rv
}

// Summary builds the list projection.
func (s *Session) Summary() Summary {
	users := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		users = append(users, p.UserID)
	}
	return Summary{
		ID:           s.ID,
		Kind:         s.Kind,
		Status:       s.Status,
		Phase:        s.Phase,
		CreatorID:    s.CreatorID,
		Participants: users,
		CreatedAtMs:  s.CreatedAtMs,
	}
}
