package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arcade_build_info",
		Help: "Build information of the arcade daemon",
	}, []string{"version", "commit", "date"})

	SessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_sessions_created_total", Help: "Total sessions created, by activity kind.",
	}, []string{"kind"})
	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_sessions_ended_total", Help: "Total sessions ended, by activity kind and end reason.",
	}, []string{"kind", "reason"})
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arcade_sessions_active", Help: "Sessions currently held in the store.",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_events_published_total", Help: "Total events fanned out to session sockets, by event type.",
	}, []string{"type"})
	SocketsAttached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_sockets_attached_total", Help: "Total sockets attached to session streams.",
	})
	SocketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_sockets_dropped_total", Help: "Total sockets dropped, by reason.",
	}, []string{"reason"})

	PermitsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_permits_granted_total", Help: "Total join permits granted.",
	})
	PermitsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_permits_consumed_total", Help: "Total join permit consumption attempts, by result.",
	}, []string{"result"})

	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_rate_limit_denials_total", Help: "Total requests denied by the rate limiter, by class.",
	}, []string{"class"})
	AntiCheatFlags = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_anti_cheat_flags_total", Help: "Total anti-cheat incidents flagged, by incident type.",
	}, []string{"incident"})

	TimersFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_timers_fired_total", Help: "Total scheduler timers fired.",
	})
	JanitorSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_janitor_sweeps_total", Help: "Total janitor sweeps over the session store.",
	})
	JanitorReaped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_janitor_reaped_total", Help: "Total sessions reaped by the janitor, by reason.",
	}, []string{"reason"})

	StatsOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcade_stats_outcomes_total", Help: "Total stats outcome records, by result.",
	}, []string{"result"})
)
