// Package coordinator is the request entry point for activity sessions. It
// serializes every command and timer fire for a session behind that session's
// lock, routes them to the kind's state machine, and publishes the resulting
// events in mutation order.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/parlorlabs/arcade/internal/activity"
	"github.com/parlorlabs/arcade/internal/clock"
	"github.com/parlorlabs/arcade/internal/hub"
	"github.com/parlorlabs/arcade/internal/metrics"
	"github.com/parlorlabs/arcade/internal/permit"
	"github.com/parlorlabs/arcade/internal/ratelimit"
	"github.com/parlorlabs/arcade/internal/stats"
	"github.com/parlorlabs/arcade/internal/store"
	"github.com/parlorlabs/arcade/internal/wire"
)

const (
	defaultPendingCap       = 3
	defaultWatchdogTimeout  = 120 * time.Second
	defaultEndedRetention   = time.Hour
	defaultPendingRetention = 24 * time.Hour
	defaultJanitorInterval  = 10 * time.Minute
)

// Config configures a Coordinator.
type Config struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Store    store.Store
	Hub      *hub.Hub
	Permits  *permit.Registry
	Limiter  *ratelimit.Limiter
	Recorder stats.Recorder
	Machines map[activity.Kind]activity.Machine

	// PendingCap bounds concurrent pending sessions per creator.
	PendingCap int

	// WatchdogTimeout ends a running session as a draw after this much time
	// without a state-mutating participant event.
	WatchdogTimeout time.Duration

	EndedRetention   time.Duration
	PendingRetention time.Duration
	JanitorInterval  time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Hub == nil {
		return errors.New("hub is required")
	}
	if c.Permits == nil {
		return errors.New("permit registry is required")
	}
	if c.Limiter == nil {
		return errors.New("rate limiter is required")
	}
	if c.Recorder == nil {
		return errors.New("stats recorder is required")
	}
	if len(c.Machines) == 0 {
		return errors.New("machines are required")
	}
	if c.PendingCap == 0 {
		c.PendingCap = defaultPendingCap
	}
	if c.WatchdogTimeout == 0 {
		c.WatchdogTimeout = defaultWatchdogTimeout
	}
	if c.EndedRetention == 0 {
		c.EndedRetention = defaultEndedRetention
	}
	if c.PendingRetention == 0 {
		c.PendingRetention = defaultPendingRetention
	}
	if c.JanitorInterval == 0 {
		c.JanitorInterval = defaultJanitorInterval
	}
	return nil
}

// Coordinator owns the sessions: it is the exclusive writer to the store and
// the only emit path to the hub for any session it manages.
type Coordinator struct {
	log      *slog.Logger
	clock    clockwork.Clock
	store    store.Store
	hub      *hub.Hub
	permits  *permit.Registry
	limiter  *ratelimit.Limiter
	recorder stats.Recorder
	machines map[activity.Kind]activity.Machine
	sched    *clock.Scheduler

	pendingCap       int
	watchdog         time.Duration
	endedRetention   time.Duration
	pendingRetention time.Duration
	janitorInterval  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(cfg *Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		log:              cfg.Logger,
		clock:            cfg.Clock,
		store:            cfg.Store,
		hub:              cfg.Hub,
		permits:          cfg.Permits,
		limiter:          cfg.Limiter,
		recorder:         cfg.Recorder,
		machines:         cfg.Machines,
		pendingCap:       cfg.PendingCap,
		watchdog:         cfg.WatchdogTimeout,
		endedRetention:   cfg.EndedRetention,
		pendingRetention: cfg.PendingRetention,
		janitorInterval:  cfg.JanitorInterval,
		locks:            make(map[string]*sync.Mutex),
	}
	sched, err := clock.New(&clock.Config{
		Logger:    cfg.Logger,
		Clock:     cfg.Clock,
		OnElapsed: c.onElapsed,
	})
	if err != nil {
		return nil, err
	}
	c.sched = sched
	return c, nil
}

func (c *Coordinator) now() int64 {
	return c.clock.Now().UnixMilli()
}

func (c *Coordinator) sessionLock(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[id] = mu
	}
	return mu
}

func (c *Coordinator) dropLock(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, id)
}

// withSession runs fn with exclusive access to the session. Everything that
// mutates session state goes through here.
func (c *Coordinator) withSession(id string, fn func(s *activity.Session) error) error {
	mu := c.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()
	s, ok := c.store.Load(id)
	if !ok {
		return wire.NewError(wire.CodeSessionNotFound, "")
	}
	return fn(s)
}

// finalize persists the session, publishes events in order, and re-arms the
// session's single pending timer for whatever state it is now in. Must be
// called under the session lock.
func (c *Coordinator) finalize(s *activity.Session, events []wire.Event) {
	c.store.Save(s)
	for _, ev := range events {
		if ev.Type == wire.EventAntiCheatFlag {
			if p, ok := ev.Payload.(wire.AntiCheatFlagPayload); ok {
				for _, incident := range p.Incidents {
					metrics.AntiCheatFlags.WithLabelValues(incident).Inc()
				}
			}
		}
		c.hub.Publish(s.ID, ev)
	}

	switch {
	case s.Ended():
		c.sched.CancelSession(s.ID)
		c.recordOutcome(s)
	case s.Phase == activity.PhaseCountdown:
		delay := time.Duration(s.CountdownEndsAtMs-c.now()) * time.Millisecond
		c.sched.Schedule(s.ID, clock.RoundCountdown, delay)
	case s.Status == activity.StatusRunning:
		c.armTimer(s)
	default:
		c.sched.CancelSession(s.ID)
	}
}

// armTimer schedules the earlier of the session's next round instant and the
// inactivity watchdog.
func (c *Coordinator) armTimer(s *activity.Session) {
	now := c.now()
	at, idx, ok := activity.NextTimer(s)
	if wdAt := s.LastActivityMs + c.watchdog.Milliseconds(); !ok || wdAt < at {
		at, idx = wdAt, clock.RoundWatchdog
	}
	c.sched.Schedule(s.ID, idx, time.Duration(at-now)*time.Millisecond)
}

// recordOutcome delivers the terminal stats record exactly once per session,
// guarded by the stats flag across every end path.
func (c *Coordinator) recordOutcome(s *activity.Session) {
	if s.StatsRecorded {
		return
	}
	s.StatsRecorded = true
	c.store.Save(s)

	reason := s.LeaveReason
	if reason == "" {
		reason = "completed"
	}
	metrics.SessionsEnded.WithLabelValues(string(s.Kind), reason).Inc()

	participants := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, p.UserID)
	}
	scores := make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		scores[k] = v
	}
	outcome := stats.Outcome{
		SessionID:    s.ID,
		Kind:         string(s.Kind),
		Participants: participants,
		Scores:       scores,
		WinnerUserID: s.WinnerUserID,
		Draw:         s.Draw,
		Reason:       reason,
		EndedAtMs:    s.EndedAtMs,
		DurationMs:   s.EndedAtMs - s.CreatedAtMs,
	}
	if err := c.recorder.RecordOutcome(context.Background(), outcome); err != nil {
		c.log.Error("failed to record session outcome", "sessionID", s.ID, "error", err)
	}
}

// onElapsed is the scheduler callback. It re-enters the session lock; the
// scheduler guarantees it is not called under it.
func (c *Coordinator) onElapsed(sessionID string, roundIndex int) {
	metrics.TimersFired.Inc()
	err := c.withSession(sessionID, func(s *activity.Session) error {
		if s.Ended() {
			return nil
		}
		now := c.now()
		var events []wire.Event
		switch roundIndex {
		case clock.RoundCountdown:
			if s.Phase != activity.PhaseCountdown {
				return nil
			}
			events = c.machines[s.Kind].Begin(s, now)
		case clock.RoundWatchdog:
			if s.Status != activity.StatusRunning {
				return nil
			}
			if now-s.LastActivityMs >= c.watchdog.Milliseconds() {
				events = activity.EndSession(s, "", true, "inactivity", now)
			}
			// Otherwise activity happened since arming; finalize re-arms.
		default:
			if s.Status != activity.StatusRunning {
				return nil
			}
			events = c.machines[s.Kind].OnTimer(s, roundIndex, now)
		}
		c.finalize(s, events)
		return nil
	})
	if err != nil {
		// Session swept between fire and lock acquisition.
		c.log.Debug("timer fired for missing session", "sessionID", sessionID, "roundIndex", roundIndex)
	}
}

// ConsumePermit atomically consumes the join permit for (session, user). The
// websocket upgrade path calls this before attaching.
func (c *Coordinator) ConsumePermit(sessionID, userID string) bool {
	ok := c.permits.Consume(sessionID, userID)
	if ok {
		metrics.PermitsConsumed.WithLabelValues("granted").Inc()
	} else {
		metrics.PermitsConsumed.WithLabelValues("absent").Inc()
	}
	return ok
}

// Close stops all pending timers.
func (c *Coordinator) Close() {
	for _, s := range c.store.List(nil) {
		c.sched.CancelSession(s.ID)
	}
}
