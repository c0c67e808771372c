package fanout

import (
	"log/slog"
	"sync"

	"github.com/xbiggyl/wsassistant/internal/metrics"
	"github.com/xbiggyl/wsassistant/internal/protocol"
)

// Conn is one outbound client connection handle. Implementations must make
// WriteEvent safe for concurrent use and deliver events in call order per
// connection; the transport layer owns the connection lifecycle.
type Conn interface {
	WriteEvent(msg protocol.Message) error
	Close() error
}

// Fanout is a non-owning routing table from client id to connection handle,
// used to broadcast outbound events to every client bound to a session.
// Delivery is best-effort: a send failure to one client is logged, its
// route is dropped, and the remaining recipients are unaffected.
type Fanout struct {
	conns   map[string]Conn
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Counters for monitoring.
	eventsSent   uint64
	sendFailures uint64

	mu sync.RWMutex
}

// Stats represents fanout counters for monitoring.
type Stats struct {
	ActiveConnections int    `json:"active_connections"`
	EventsSent        uint64 `json:"events_sent"`
	SendFailures      uint64 `json:"send_failures"`
}

// New creates an empty fanout table. Metrics may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Fanout {
	return &Fanout{
		conns:   make(map[string]Conn),
		logger:  logger,
		metrics: m,
	}
}

// Register adds a route for a client connection, replacing any stale one.
func (f *Fanout) Register(clientID string, conn Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[clientID] = conn
}

// Remove drops a client's route. The connection itself is not closed here;
// the transport layer owns it.
func (f *Fanout) Remove(clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, clientID)
}

// Broadcast sends msg to every listed client. Failed sends are logged and
// the stale routes removed; they never prevent delivery to the others or
// propagate to the caller.
func (f *Fanout) Broadcast(sessionID string, clientIDs []string, msg protocol.Message) {
	for _, clientID := range clientIDs {
		f.mu.RLock()
		conn, ok := f.conns[clientID]
		f.mu.RUnlock()

		if !ok {
			continue
		}

		if err := conn.WriteEvent(msg); err != nil {
			f.logger.Warn("Failed to deliver event to client",
				slog.String("session_id", sessionID),
				slog.String("client_id", clientID),
				slog.String("event_type", msg.Type),
				slog.String("error", err.Error()),
			)

			f.mu.Lock()
			f.sendFailures++
			delete(f.conns, clientID)
			f.mu.Unlock()
			if f.metrics != nil {
				f.metrics.RecordSendFailure()
			}
			continue
		}

		f.mu.Lock()
		f.eventsSent++
		f.mu.Unlock()
		if f.metrics != nil {
			f.metrics.RecordEventSent()
		}
	}
}

// SendTo delivers msg to a single client, used for protocol errors that go
// to the offending connection only.
func (f *Fanout) SendTo(clientID string, msg protocol.Message) error {
	f.mu.RLock()
	conn, ok := f.conns[clientID]
	f.mu.RUnlock()

	if !ok {
		return nil
	}

	if err := conn.WriteEvent(msg); err != nil {
		f.mu.Lock()
		f.sendFailures++
		delete(f.conns, clientID)
		f.mu.Unlock()
		if f.metrics != nil {
			f.metrics.RecordSendFailure()
		}
		return err
	}

	f.mu.Lock()
	f.eventsSent++
	f.mu.Unlock()
	if f.metrics != nil {
		f.metrics.RecordEventSent()
	}
	return nil
}

// Stats returns current fanout counters.
func (f *Fanout) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return Stats{
		ActiveConnections: len(f.conns),
		EventsSent:        f.eventsSent,
		SendFailures:      f.sendFailures,
	}
}
