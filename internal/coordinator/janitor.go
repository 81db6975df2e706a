package coordinator

import (
	"context"

	"github.com/parlorlabs/arcade/internal/activity"
	"github.com/parlorlabs/arcade/internal/metrics"
	"github.com/parlorlabs/arcade/internal/wire"
)

// RunJanitor periodically sweeps the store: expired sessions are deleted,
// and running sessions whose timers were lost (e.g. reloaded from snapshots
// after a restart) are ended by the inactivity rule. Blocks until ctx is
// cancelled.
func (c *Coordinator) RunJanitor(ctx context.Context) {
	ticker := c.clock.NewTicker(c.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.Sweep()
		}
	}
}

// Sweep runs one janitor pass.
func (c *Coordinator) Sweep() {
	metrics.JanitorSweeps.Inc()
	sessions := c.store.List(nil)
	metrics.SessionsActive.Set(float64(len(sessions)))

	for _, candidate := range sessions {
		id := candidate.ID
		deleted := false
		err := c.withSession(id, func(s *activity.Session) error {
			now := c.now()
			switch {
			case s.Ended() && now-s.EndedAtMs >= c.endedRetention.Milliseconds():
				c.deleteSession(s)
				deleted = true
				metrics.JanitorReaped.WithLabelValues("expired").Inc()
			case !s.Ended() && s.Status != activity.StatusRunning &&
				now-s.CreatedAtMs >= c.pendingRetention.Milliseconds():
				c.deleteSession(s)
				deleted = true
				metrics.JanitorReaped.WithLabelValues("stale_pending").Inc()
			case s.Status == activity.StatusRunning &&
				now-s.LastActivityMs >= c.watchdog.Milliseconds():
				events := activity.EndSession(s, "", true, "inactivity", now)
				c.finalize(s, events)
				metrics.JanitorReaped.WithLabelValues("inactive").Inc()
			}
			return nil
		})
		if err == nil && deleted {
			c.dropLock(id)
		}
	}
}

// deleteSession removes a session and tears down anything still pointing at
// it. Must be called under the session lock.
func (c *Coordinator) deleteSession(s *activity.Session) {
	c.sched.CancelSession(s.ID)
	c.store.Delete(s.ID)
	c.hub.CloseSession(s.ID, wire.CloseSessionNotFound, "session expired")
	c.log.Info("session swept", "sessionID", s.ID, "kind", s.Kind, "status", s.Status)
}
