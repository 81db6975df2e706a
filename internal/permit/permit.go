package permit

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const defaultTTL = 60 * time.Second

// Permit proves an HTTP join preceded a websocket attach for (session, user).
type Permit struct {
	SessionID string
	UserID    string
}

// Config configures a Registry.
type Config struct {
	Logger *slog.Logger
	TTL    time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.TTL == 0 {
		c.TTL = defaultTTL
	}
	if c.TTL < 0 {
		return errors.New("ttl must be > 0")
	}
	return nil
}

// Registry issues short-lived single-use permits. Grant and Consume are safe
// for concurrent use from the HTTP and websocket upgrade paths.
type Registry struct {
	log   *slog.Logger
	ttl   time.Duration
	cache *ttlcache.Cache[string, Permit]
}

func New(cfg *Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, Permit](cfg.TTL),
		ttlcache.WithDisableTouchOnHit[string, Permit](),
	)
	go cache.Start()
	return &Registry{log: cfg.Logger, ttl: cfg.TTL, cache: cache}, nil
}

func key(sessionID, userID string) string {
	return sessionID + "/" + userID
}

// Grant records a permit and returns its TTL. Re-granting resets the TTL.
func (r *Registry) Grant(sessionID, userID string) time.Duration {
	r.cache.Set(key(sessionID, userID), Permit{SessionID: sessionID, UserID: userID}, ttlcache.DefaultTTL)
	r.log.Debug("permit: granted", "sessionID", sessionID, "userID", userID, "ttl", r.ttl)
	return r.ttl
}

// Consume atomically removes the permit if present and unexpired.
func (r *Registry) Consume(sessionID, userID string) bool {
	_, ok := r.cache.GetAndDelete(key(sessionID, userID))
	return ok
}

// Close stops the expiry loop.
func (r *Registry) Close() {
	r.cache.Stop()
}
