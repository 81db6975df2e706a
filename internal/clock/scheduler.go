package clock

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Reserved round indices for session-level timers.
const (
	RoundCountdown = -1 // lobby countdown
	RoundWatchdog  = -2 // inactivity watchdog
)

// Config configures a Scheduler.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	// OnElapsed is invoked on its own goroutine when a timer fires. It is
	// never called under any lock held by the scheduling caller.
	OnElapsed func(sessionID string, roundIndex int)
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.OnElapsed == nil {
		return errors.New("on-elapsed callback is required")
	}
	return nil
}

// Scheduler maintains at most one pending one-shot timer per session.
// Scheduling for a session replaces any prior pending fire for that session;
// generation counters make a late fire after cancel a no-op.
type Scheduler struct {
	log       *slog.Logger
	clock     clockwork.Clock
	onElapsed func(sessionID string, roundIndex int)

	mu      sync.Mutex
	pending map[string]*entry
	gen     uint64
}

type entry struct {
	gen        uint64
	roundIndex int
	timer      clockwork.Timer
}

// Handle cancels a scheduled fire. Cancel after fire is a no-op.
type Handle struct {
	s         *Scheduler
	sessionID string
	gen       uint64
}

func New(cfg *Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		log:       cfg.Logger,
		clock:     cfg.Clock,
		onElapsed: cfg.OnElapsed,
		pending:   make(map[string]*entry),
	}, nil
}

// Now returns the scheduler's clock as unix milliseconds.
func (s *Scheduler) Now() int64 {
	return s.clock.Now().UnixMilli()
}

// Schedule arms a one-shot timer for (sessionID, roundIndex) after delay,
// replacing any pending timer for the session.
func (s *Scheduler) Schedule(sessionID string, roundIndex int, delay time.Duration) Handle {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[sessionID]; ok {
		prev.timer.Stop()
		delete(s.pending, sessionID)
	}

	s.gen++
	gen := s.gen
	e := &entry{gen: gen, roundIndex: roundIndex}
	e.timer = s.clock.AfterFunc(delay, func() {
		s.fire(sessionID, gen)
	})
	s.pending[sessionID] = e

	s.log.Debug("scheduler: armed timer",
		"sessionID", sessionID,
		"roundIndex", roundIndex,
		"delay", delay,
	)
	return Handle{s: s, sessionID: sessionID, gen: gen}
}

// CancelSession drops any pending timer for the session.
func (s *Scheduler) CancelSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.pending[sessionID]; ok {
		e.timer.Stop()
		delete(s.pending, sessionID)
	}
}

// Cancel drops the scheduled fire if it is still pending.
func (h Handle) Cancel() {
	if h.s == nil {
		return
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if e, ok := h.s.pending[h.sessionID]; ok && e.gen == h.gen {
		e.timer.Stop()
		delete(h.s.pending, h.sessionID)
	}
}

func (s *Scheduler) fire(sessionID string, gen uint64) {
	s.mu.Lock()
	e, ok := s.pending[sessionID]
	if !ok || e.gen != gen {
		// Cancelled or superseded between fire and lock acquisition.
		s.mu.Unlock()
		return
	}
	delete(s.pending, sessionID)
	roundIndex := e.roundIndex
	s.mu.Unlock()

	s.onElapsed(sessionID, roundIndex)
}
