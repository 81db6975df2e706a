// Package stats records ended-session outcomes to the stats sidecar. The
// coordinator guarantees at most one outcome record per session.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v5"

	"github.com/parlorlabs/arcade/internal/metrics"
)

// Outcome is the terminal result of one session.
type Outcome struct {
	SessionID    string         `json:"sessionId"`
	Kind         string         `json:"kind"`
	Participants []string       `json:"participants"`
	Scores       map[string]int `json:"scores"`
	WinnerUserID string         `json:"winnerUserId,omitempty"`
	Draw         bool           `json:"draw,omitempty"`
	Reason       string         `json:"reason"`
	EndedAtMs    int64          `json:"endedAtMs"`
	DurationMs   int64          `json:"durationMs"`
}

// Recorder delivers outcomes somewhere durable.
type Recorder interface {
	RecordOutcome(ctx context.Context, o Outcome) error
}

// LogRecorder writes outcomes to the structured log. It is the default when
// no stats endpoint is configured.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r *LogRecorder) RecordOutcome(_ context.Context, o Outcome) error {
	r.Logger.Info("session outcome",
		"sessionID", o.SessionID,
		"kind", o.Kind,
		"winner", o.WinnerUserID,
		"draw", o.Draw,
		"reason", o.Reason,
		"scores", o.Scores,
		"durationMs", o.DurationMs,
	)
	return nil
}

// HTTPRecorderConfig configures an HTTPRecorder.
type HTTPRecorderConfig struct {
	Logger     *slog.Logger
	Endpoint   string
	HTTPClient *http.Client
	MaxTries   uint
}

func (c *HTTPRecorderConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.MaxTries == 0 {
		c.MaxTries = 4
	}
	return nil
}

// HTTPRecorder POSTs outcomes as JSON, retrying transient failures with
// exponential backoff. 4xx responses are not retried.
type HTTPRecorder struct {
	log      *slog.Logger
	endpoint string
	client   *http.Client
	maxTries uint
}

func NewHTTPRecorder(cfg *HTTPRecorderConfig) (*HTTPRecorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPRecorder{
		log:      cfg.Logger,
		endpoint: cfg.Endpoint,
		client:   cfg.HTTPClient,
		maxTries: cfg.MaxTries,
	}, nil
}

func (r *HTTPRecorder) RecordOutcome(ctx context.Context, o Outcome) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			r.log.Warn("retrying outcome delivery", "sessionID", o.SessionID, "attempt", attempt)
		}
		return struct{}{}, r.post(ctx, body)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(r.maxTries))
	if err != nil {
		metrics.StatsOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to deliver outcome for session %s: %w", o.SessionID, err)
	}
	metrics.StatsOutcomes.WithLabelValues("ok").Inc()
	return nil
}

func (r *HTTPRecorder) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("stats sidecar rejected outcome: %s", resp.Status))
	default:
		return fmt.Errorf("stats sidecar returned %s", resp.Status)
	}
}

// AsyncRecorderConfig configures an AsyncRecorder.
type AsyncRecorderConfig struct {
	Logger  *slog.Logger
	Inner   Recorder
	Workers int
	Timeout time.Duration
}

func (c *AsyncRecorderConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Inner == nil {
		return errors.New("inner recorder is required")
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// AsyncRecorder hands outcomes to a worker pool so session teardown never
// blocks on the sidecar. Delivery failures are logged, not surfaced.
type AsyncRecorder struct {
	log     *slog.Logger
	inner   Recorder
	pool    pond.Pool
	timeout time.Duration
}

func NewAsyncRecorder(cfg *AsyncRecorderConfig) (*AsyncRecorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AsyncRecorder{
		log:     cfg.Logger,
		inner:   cfg.Inner,
		pool:    pond.NewPool(cfg.Workers),
		timeout: cfg.Timeout,
	}, nil
}

func (r *AsyncRecorder) RecordOutcome(_ context.Context, o Outcome) error {
	r.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.inner.RecordOutcome(ctx, o); err != nil {
			r.log.Error("failed to record session outcome", "sessionID", o.SessionID, "error", err)
		}
	})
	return nil
}

// Close drains in-flight deliveries.
func (r *AsyncRecorder) Close() {
	r.pool.StopAndWait()
}
