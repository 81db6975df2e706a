package ratelimit

import (
	"errors"
	"log/slog"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// Class names a rate-limited operation family. The class name is part of the
// limiter category, so keys from different classes never share a window.
type Class string

const (
	// ClassSubmit admits typing-duel submissions: 5 per 2s per (session, user).
	ClassSubmit Class = "submit"
	// ClassTriviaSubmit admits trivia answers: 1 per 5s per (session, user).
	ClassTriviaSubmit Class = "qt_submit"
	// ClassSessionCreate admits session creation: 20 per 60s per user.
	ClassSessionCreate Class = "session.create"
)

// Config configures a Limiter.
type Config struct {
	Logger *slog.Logger

	// Rates overrides the per-class sliding windows. Nil means defaults.
	Rates map[Class]Rate
}

// Rate is one sliding-window bound.
type Rate struct {
	Limit  int
	Window time.Duration
}

func defaultRates() map[Class]Rate {
	return map[Class]Rate{
		ClassSubmit:        {Limit: 5, Window: 2 * time.Second},
		ClassTriviaSubmit:  {Limit: 1, Window: 5 * time.Second},
		ClassSessionCreate: {Limit: 20, Window: 60 * time.Second},
	}
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Rates == nil {
		c.Rates = defaultRates()
	}
	for class, r := range c.Rates {
		if r.Limit <= 0 || r.Window <= 0 {
			return errors.New("invalid rate for class " + string(class))
		}
	}
	return nil
}

// Limiter answers sliding-window admission decisions for submission-class
// operations. Each class gets its own multi-category limiter; categories are
// the caller-supplied keys (e.g. "sessionID:userID").
type Limiter struct {
	log      *slog.Logger
	limiters map[Class]*catrate.Limiter
}

func New(cfg *Config) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limiters := make(map[Class]*catrate.Limiter, len(cfg.Rates))
	for class, r := range cfg.Rates {
		limiters[class] = catrate.NewLimiter(map[time.Duration]int{r.Window: r.Limit})
	}
	return &Limiter{log: cfg.Logger, limiters: limiters}, nil
}

// Check registers an event for (class, key) and reports whether it is within
// the window. Unknown classes admit and log; misconfiguration must not block
// gameplay.
func (l *Limiter) Check(class Class, key string) bool {
	lim, ok := l.limiters[class]
	if !ok {
		l.log.Warn("ratelimit: unknown class, admitting", "class", string(class), "key", key)
		return true
	}
	_, allowed := lim.Allow(key)
	return allowed
}
