package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parlorlabs/arcade/internal/metrics"
	"github.com/parlorlabs/arcade/internal/wire"
)

const defaultQueueSize = 64

// Socket is the transport surface the hub writes to. *websocket.Conn
// satisfies it; tests substitute fakes.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Config configures a Hub.
type Config struct {
	Logger *slog.Logger

	// QueueSize bounds each socket's outbound queue. A socket that falls
	// behind by more than this is dropped so it cannot stall the session.
	QueueSize int

	// OnDetach is invoked on its own goroutine whenever a socket leaves the
	// hub outside of CloseSession: read close, write error, or overflow.
	OnDetach func(sessionID, userID string)
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.QueueSize < 1 {
		return errors.New("queue size must be > 0")
	}
	return nil
}

// Conn is one attached socket with its bounded outbound queue.
type Conn struct {
	sock      Socket
	sessionID string
	userID    string

	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (c *Conn) UserID() string { return c.userID }

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// Hub is the per-session socket registry and event fan-out. Publishes issued
// while the coordinator holds a session's lock are enqueued in issue order,
// so every surviving socket observes the canonical event order.
type Hub struct {
	log       *slog.Logger
	queueSize int
	onDetach  func(sessionID, userID string)

	mu       sync.Mutex
	sessions map[string]*sessionSockets
}

type sessionSockets struct {
	conns  map[*Conn]struct{}
	byUser map[string]*Conn
}

func New(cfg *Config) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Hub{
		log:       cfg.Logger,
		queueSize: cfg.QueueSize,
		onDetach:  cfg.OnDetach,
		sessions:  make(map[string]*sessionSockets),
	}, nil
}

// Attach registers a socket for the session and starts its writer. A second
// attach for the same user replaces the previous socket.
func (h *Hub) Attach(sessionID, userID string, sock Socket) *Conn {
	c := &Conn{
		sock:      sock,
		sessionID: sessionID,
		userID:    userID,
		out:       make(chan []byte, h.queueSize),
		done:      make(chan struct{}),
	}

	var replaced *Conn
	h.mu.Lock()
	ss, ok := h.sessions[sessionID]
	if !ok {
		ss = &sessionSockets{conns: make(map[*Conn]struct{}), byUser: make(map[string]*Conn)}
		h.sessions[sessionID] = ss
	}
	if prev, ok := ss.byUser[userID]; ok {
		delete(ss.conns, prev)
		replaced = prev
	}
	ss.conns[c] = struct{}{}
	ss.byUser[userID] = c
	h.mu.Unlock()

	if replaced != nil {
		replaced.close()
	}

	go h.writer(c)
	metrics.SocketsAttached.Inc()
	return c
}

func (h *Hub) writer(c *Conn) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			if err := c.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("hub: write error, dropping socket",
					"sessionID", c.sessionID,
					"userID", c.userID,
					"error", err,
				)
				h.drop(c, "write_error")
				return
			}
		}
	}
}

// Publish serializes the event once and enqueues it to every socket attached
// to the session. Sockets whose queue is full are dropped.
func (h *Hub) Publish(sessionID string, event wire.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("hub: failed to marshal event", "type", event.Type, "error", err)
		return
	}

	var overflowed []*Conn
	h.mu.Lock()
	ss, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	for c := range ss.conns {
		select {
		case c.out <- data:
		default:
			overflowed = append(overflowed, c)
		}
	}
	h.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	for _, c := range overflowed {
		h.drop(c, "overflow")
	}
}

// SendOne enqueues an event to a single socket.
func (h *Hub) SendOne(c *Conn, event wire.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("hub: failed to marshal event", "type", event.Type, "error", err)
		return
	}
	select {
	case c.out <- data:
	default:
		h.drop(c, "overflow")
	}
}

// Detach removes a socket, typically after its read loop observed a close.
// Disconnect handling in the coordinator is triggered through OnDetach.
func (h *Hub) Detach(c *Conn) {
	h.drop(c, "detach")
}

func (h *Hub) drop(c *Conn, reason string) {
	h.mu.Lock()
	removed := false
	if ss, ok := h.sessions[c.sessionID]; ok {
		if _, ok := ss.conns[c]; ok {
			delete(ss.conns, c)
			removed = true
		}
		if ss.byUser[c.userID] == c {
			delete(ss.byUser, c.userID)
		}
		if len(ss.conns) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
	h.mu.Unlock()

	c.close()
	if !removed {
		return
	}
	metrics.SocketsDropped.WithLabelValues(reason).Inc()
	if h.onDetach != nil {
		go h.onDetach(c.sessionID, c.userID)
	}
}

// CloseSession tears down every socket for the session with a close code.
// OnDetach is not fired; the coordinator initiated the teardown.
func (h *Hub) CloseSession(sessionID string, code int, reason string) {
	h.mu.Lock()
	ss, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	msg := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	for c := range ss.conns {
		_ = c.sock.WriteControl(websocket.CloseMessage, msg, deadline)
		c.close()
	}
}

// Count returns the number of sockets attached to the session.
func (h *Hub) Count(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ss, ok := h.sessions[sessionID]; ok {
		return len(ss.conns)
	}
	return 0
}
