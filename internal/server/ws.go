package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xbiggyl/wsassistant/internal/config"
	"github.com/xbiggyl/wsassistant/internal/metrics"
	"github.com/xbiggyl/wsassistant/internal/orchestrator"
	"github.com/xbiggyl/wsassistant/internal/protocol"
	"github.com/xbiggyl/wsassistant/internal/session"
)

const writeTimeout = 10 * time.Second

// WSServer accepts client WebSocket connections and dispatches their
// messages into the orchestrator.
type WSServer struct {
	server   *http.Server
	upgrader websocket.Upgrader

	orch    *orchestrator.Orchestrator
	logger  *slog.Logger
	metrics *metrics.Metrics
	config  config.ServerConfig
}

// wsConn wraps one client connection. Writes are serialized with a mutex
// so fanout deliveries and error replies never interleave frames; that
// single outbound path is what preserves per-recipient event order.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteEvent sends one envelope as a JSON text frame.
func (c *wsConn) WriteEvent(msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (c *wsConn) Close() error {
	return c.conn.Close()
}

// NewWSServer creates the WebSocket transport server.
func NewWSServer(cfg config.ServerConfig, orch *orchestrator.Orchestrator,
	logger *slog.Logger, m *metrics.Metrics) *WSServer {

	s := &WSServer{
		orch:    orch,
		logger:  logger,
		metrics: m,
		config:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Extension clients carry no meaningful origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler:     mux,
		ReadTimeout: 0, // Long-lived connections manage their own deadlines
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// Start begins accepting connections.
func (s *WSServer) Start() error {
	s.logger.Info("Starting WebSocket server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("WebSocket server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the server. Established connections are closed by
// their read loops when clients drop or the process exits.
func (s *WSServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping WebSocket server...")

	return s.server.Shutdown(ctx)
}

// handleUpgrade upgrades the HTTP request and runs the connection's read
// loop until the client disconnects.
func (s *WSServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	clientID := uuid.New().String()
	wc := &wsConn{conn: conn}

	conn.SetReadLimit(s.config.MaxMessageBytes)

	s.orch.RegisterConn(clientID, wc)
	if s.metrics != nil {
		s.metrics.RecordConnectionOpened()
	}

	s.logger.Info("Client connected",
		slog.String("client_id", clientID),
		slog.String("remote", r.RemoteAddr),
	)

	s.readLoop(clientID, wc)

	s.orch.ClientDisconnected(clientID)
	conn.Close()
	if s.metrics != nil {
		s.metrics.RecordConnectionClosed()
	}

	s.logger.Info("Client disconnected",
		slog.String("client_id", clientID),
	)
}

// readLoop consumes frames until the connection errors or closes.
func (s *WSServer) readLoop(clientID string, wc *wsConn) {
	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Unexpected connection close",
					slog.String("client_id", clientID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if s.metrics != nil {
			s.metrics.RecordMessageReceived()
		}

		s.dispatch(clientID, wc, data)
	}
}

// dispatch parses one frame and routes it. Protocol errors answer the
// offending connection only; the session is unaffected.
func (s *WSServer) dispatch(clientID string, wc *wsConn, data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordParseError()
		}
		s.logger.Warn("Malformed client message",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeBadMessage, "cannot parse message", err.Error()))
		return
	}

	switch msg.Type {
	case protocol.TypeMeetingStart:
		s.handleMeetingStart(clientID, wc, msg)
	case protocol.TypeMeetingEnd:
		s.handleMeetingEnd(clientID, wc, msg)
	case protocol.TypeAudioChunk:
		s.handleAudioChunk(clientID, wc, msg)
	case protocol.TypeVideoChunk:
		// Video is accepted and discarded; only audio feeds the pipeline.
		s.logger.Debug("Discarding video chunk",
			slog.String("client_id", clientID),
		)
	default:
		wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeBadMessage,
			fmt.Sprintf("unexpected message type %q from client", msg.Type), ""))
	}
}

func (s *WSServer) handleMeetingStart(clientID string, wc *wsConn, msg *protocol.Message) {
	payload, err := msg.DecodeMeetingStart()
	if err != nil {
		wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeBadMessage, "invalid meeting_start payload", err.Error()))
		return
	}

	sess, created, err := s.orch.StartMeeting(clientID, payload)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateSession) {
			wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeDuplicateSession, "session id already active", payload.SessionID))
			return
		}
		s.logger.Error("Failed to start meeting",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeInternal, "failed to start meeting", ""))
		return
	}

	if s.metrics != nil && created {
		s.metrics.RecordSessionCreated()
	}

	s.logger.Info("Meeting started",
		slog.String("client_id", clientID),
		slog.String("session_id", sess.ID),
		slog.Bool("created", created),
	)
}

func (s *WSServer) handleMeetingEnd(clientID string, wc *wsConn, msg *protocol.Message) {
	payload, err := msg.DecodeMeetingEnd()
	if err != nil {
		wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeBadMessage, "invalid meeting_end payload", err.Error()))
		return
	}

	if err := s.orch.EndMeeting(payload.SessionID); err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeUnknownSession, "unknown session", payload.SessionID))
			return
		}
		wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeInternal, "failed to end meeting", ""))
	}
}

func (s *WSServer) handleAudioChunk(clientID string, wc *wsConn, msg *protocol.Message) {
	payload, err := msg.DecodeAudioChunk()
	if err != nil {
		wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeBadMessage, "invalid audio_chunk payload", err.Error()))
		return
	}

	if s.metrics != nil {
		s.metrics.RecordFragmentReceived()
	}

	if err := s.orch.HandleAudioChunk(payload); err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			wc.WriteEvent(protocol.NewErrorMessage(protocol.CodeUnknownSession, "unknown session", payload.SessionID))
			return
		}
		s.logger.Error("Failed to handle audio chunk",
			slog.String("client_id", clientID),
			slog.String("session_id", payload.SessionID),
			slog.String("error", err.Error()),
		)
	}
}
