package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/xbiggyl/wsassistant/internal/audio"
	"github.com/xbiggyl/wsassistant/internal/fanout"
	"github.com/xbiggyl/wsassistant/internal/metrics"
	"github.com/xbiggyl/wsassistant/internal/notify"
	"github.com/xbiggyl/wsassistant/internal/persistence"
	"github.com/xbiggyl/wsassistant/internal/protocol"
	"github.com/xbiggyl/wsassistant/internal/session"
	"github.com/xbiggyl/wsassistant/internal/summarize"
	"github.com/xbiggyl/wsassistant/internal/transcription"
)

// Config contains pipeline timing settings.
type Config struct {
	// WindowThreshold is the buffered audio duration that triggers a flush.
	WindowThreshold time.Duration
	// SummaryInterval is the period between summarization attempts.
	SummaryInterval time.Duration
	// AdapterTimeout bounds individual transcription and summarization calls.
	AdapterTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.WindowThreshold <= 0 {
		c.WindowThreshold = 10 * time.Second
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = 300 * time.Second
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 30 * time.Second
	}
}

// Orchestrator drives every session's pipeline. It owns the background
// workers (one transcription worker and one summary scheduler per session)
// and the teardown sequence.
type Orchestrator struct {
	registry    *session.Registry
	fanout      *fanout.Fanout
	transcriber transcription.Transcriber
	summarizer  summarize.Summarizer

	// Optional post-archive collaborators; nil disables the step.
	store    persistence.Store
	notifier notify.Notifier

	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an orchestrator. Store, notifier and metrics may be nil.
func New(registry *session.Registry, fan *fanout.Fanout, transcriber transcription.Transcriber,
	summarizer summarize.Summarizer, store persistence.Store, notifier notify.Notifier,
	m *metrics.Metrics, logger *slog.Logger, config Config) *Orchestrator {

	config.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		registry:    registry,
		fanout:      fan,
		transcriber: transcriber,
		summarizer:  summarizer,
		store:       store,
		notifier:    notifier,
		config:      config,
		logger:      logger,
		metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// RegisterConn adds a client connection to the fanout routing table.
func (o *Orchestrator) RegisterConn(clientID string, conn fanout.Conn) {
	o.fanout.Register(clientID, conn)
}

// StartMeeting creates a session for a meeting_start message and binds the
// requesting client, or joins the client to the session when the announced
// id is already active. The returned bool reports whether a new session was
// created.
func (o *Orchestrator) StartMeeting(clientID string, p *protocol.MeetingStartPayload) (*session.Session, bool, error) {
	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = ulid.Make().String()
	}

	// Announcing an active session id means join, not conflict.
	if existing, ok := o.registry.Get(sessionID); ok {
		if err := o.bindClient(clientID, sessionID); err != nil {
			return nil, false, err
		}
		o.sendStatus(existing)
		return existing, false, nil
	}

	meta := session.Metadata{
		Title:        p.Title,
		CreatedAt:    time.Now(),
		Language:     p.Language,
		Participants: convertParticipants(p.Participants),
	}

	s, err := o.registry.Create(sessionID, meta)
	if err != nil {
		// Lost a creation race; fall back to joining.
		if bindErr := o.bindClient(clientID, sessionID); bindErr == nil {
			if joined, ok := o.registry.Get(sessionID); ok {
				return joined, false, nil
			}
		}
		return nil, false, err
	}

	if err := o.bindClient(clientID, sessionID); err != nil {
		return nil, false, err
	}

	taskCtx := s.BindTasks(o.ctx)

	o.wg.Add(2)
	go o.transcriptionWorker(taskCtx, s)
	go o.summaryLoop(taskCtx, s)

	if o.metrics != nil {
		o.metrics.SetActiveSessions(o.registry.ActiveCount())
	}

	o.sendStatus(s)

	return s, true, nil
}

// bindClient attaches the client to the session and archives any session
// the move emptied: a client rebinding to a new meeting is a disconnect as
// far as its previous session is concerned.
func (o *Orchestrator) bindClient(clientID, sessionID string) error {
	drained, err := o.registry.Bind(clientID, sessionID)
	if err != nil {
		return err
	}
	if drained != "" {
		if prev, ok := o.registry.Get(drained); ok {
			o.archive(prev)
		}
	}
	return nil
}

// HandleAudioChunk buffers one audio fragment and, when the window
// threshold is reached, flushes a window to the session's transcription
// queue. Fragments for draining or archived sessions are ignored.
func (o *Orchestrator) HandleAudioChunk(p *protocol.AudioChunkPayload) error {
	s, ok := o.registry.Get(p.SessionID)
	if !ok {
		return session.ErrUnknownSession
	}

	if s.State() != session.StateActive {
		return nil
	}

	_, evicted := s.Window.Append(audio.Fragment{
		Data:       p.Chunk,
		CapturedAt: p.CapturedAt(),
	})
	if evicted > 0 && o.metrics != nil {
		o.metrics.RecordFragmentsDropped(evicted)
	}

	w := s.Window.TryFlush(o.config.WindowThreshold)
	if w == nil {
		return nil
	}

	if o.metrics != nil {
		o.metrics.RecordWindowFlushed(w.Duration.Seconds(), len(w.Data))
	}

	if !s.EnqueueWindow(w) {
		// Full queue drops the window, the same policy as a failed
		// transcription call.
		if o.metrics != nil {
			o.metrics.RecordWindowDropped()
		}
		o.logger.Warn("Window queue full, dropping window",
			slog.String("session_id", s.ID),
			slog.Uint64("window_seq", w.Seq),
			slog.Duration("duration", w.Duration),
		)
	}

	return nil
}

// transcriptionWorker consumes flushed windows in order so transcript
// append order always equals window-flush order.
func (o *Orchestrator) transcriptionWorker(ctx context.Context, s *session.Session) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case w := <-s.WindowQueue():
			o.transcribeWindow(s, w)
		}
	}
}

// transcribeWindow issues the single transcription call for a window. The
// call is bounded by the adapter timeout but deliberately not tied to the
// session's task context: teardown never cancels an in-flight call, it only
// discards its result through the append guard.
func (o *Orchestrator) transcribeWindow(s *session.Session, w *audio.Window) {
	callCtx, cancel := context.WithTimeout(context.Background(), o.config.AdapterTimeout)
	defer cancel()

	callStart := time.Now()
	segments, err := o.transcriber.Transcribe(callCtx, w, s.Metadata.Language)
	if o.metrics != nil {
		o.metrics.RecordTranscription(err == nil, time.Since(callStart).Seconds())
	}
	if err != nil {
		// No retry: the window's audio is dropped and the session continues.
		o.logger.Error("Transcription failed, dropping window",
			slog.String("session_id", s.ID),
			slog.Uint64("window_seq", w.Seq),
			slog.Duration("duration", w.Duration),
			slog.String("error", err.Error()),
		)
		return
	}

	for i := range segments {
		segments[i].SpeakerName = s.Metadata.SpeakerName(segments[i].SpeakerID)
	}

	if !s.AppendTranscript(segments) {
		o.logger.Debug("Discarded stale transcription result",
			slog.String("session_id", s.ID),
			slog.Uint64("window_seq", w.Seq),
		)
		return
	}

	for _, seg := range segments {
		msg, err := protocol.NewMessage(protocol.TypeTranscript, protocol.TranscriptEventPayload{
			SessionID:  s.ID,
			Start:      seg.Start.UnixMilli(),
			End:        seg.End.UnixMilli(),
			SpeakerID:  seg.SpeakerID,
			Speaker:    seg.SpeakerName,
			Text:       seg.Text,
			Confidence: seg.Confidence,
			Language:   seg.Language,
		})
		if err != nil {
			o.logger.Error("Failed to encode transcript event",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		o.fanout.Broadcast(s.ID, s.Clients(), msg)
	}
}

// summaryLoop runs the per-session summary scheduler. A failed attempt
// only logs; the watermark stays put so the next tick covers the same span.
func (o *Orchestrator) summaryLoop(ctx context.Context, s *session.Session) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.SummaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			o.summarizeOnce(s, tick)
		}
	}
}

// summarizeOnce performs one summarization attempt for everything past the
// watermark. Empty spans are skipped without calling the provider.
func (o *Orchestrator) summarizeOnce(s *session.Session, tick time.Time) {
	segments, watermark := s.SummaryWindow()
	if len(segments) == 0 {
		return
	}

	callCtx, cancel := context.WithTimeout(context.Background(), o.config.AdapterTimeout)
	defer cancel()

	callStart := time.Now()
	rec, err := o.summarizer.Summarize(callCtx, segments, watermark, tick)
	if o.metrics != nil {
		o.metrics.RecordSummary(err == nil, time.Since(callStart).Seconds())
	}
	if err != nil {
		o.logger.Error("Summarization failed, will retry next interval",
			slog.String("session_id", s.ID),
			slog.Int("segments", len(segments)),
			slog.String("error", err.Error()),
		)
		return
	}

	if !s.AppendSummary(rec, tick) {
		o.logger.Debug("Discarded stale summary result",
			slog.String("session_id", s.ID),
		)
		return
	}

	msg, err := protocol.NewMessage(protocol.TypeSummary, protocol.SummaryEventPayload{
		SessionID: s.ID,
		Start:     rec.Start.UnixMilli(),
		End:       rec.End.UnixMilli(),
		Bullets:   rec.Bullets,
		Keywords:  rec.Keywords,
	})
	if err != nil {
		o.logger.Error("Failed to encode summary event",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	o.fanout.Broadcast(s.ID, s.Clients(), msg)
}

// EndMeeting drains and archives a session on explicit request. It is safe
// against concurrent disconnect-driven teardown: only the drain winner
// archives.
func (o *Orchestrator) EndMeeting(sessionID string) error {
	s, ok := o.registry.Get(sessionID)
	if !ok {
		return session.ErrUnknownSession
	}

	if s.BeginDrain() {
		o.archive(s)
	}
	return nil
}

// ClientDisconnected removes the client's fanout route and session binding.
// When the disconnect drains the session's last client, this caller owns the
// archive step.
func (o *Orchestrator) ClientDisconnected(clientID string) {
	o.fanout.Remove(clientID)

	sessionID, drained, ok := o.registry.Unbind(clientID)
	if !ok {
		return
	}

	if drained {
		if s, exists := o.registry.Get(sessionID); exists {
			o.archive(s)
		}
	}
}

// archive runs the teardown sequence exactly once per session: stop the
// background tasks, seal the state, snapshot it and hand the aggregate to
// the post-archive collaborators. Their failures are logged and never
// resurrect the session.
func (o *Orchestrator) archive(s *session.Session) {
	s.CancelTasks()
	s.MarkArchived()

	// Clients still connected after an explicit end get a final status
	// before their routes disappear.
	o.sendStatus(s)

	aggregate := s.Snapshot()
	o.registry.Remove(s.ID)

	if o.metrics != nil {
		o.metrics.RecordSessionArchived(aggregate.EndedAt.Sub(aggregate.Metadata.CreatedAt).Seconds())
		o.metrics.SetActiveSessions(o.registry.ActiveCount())
	}

	o.logger.Info("Session archived",
		slog.String("session_id", s.ID),
		slog.Int("transcript_segments", len(aggregate.Transcript)),
		slog.Int("summaries", len(aggregate.Summaries)),
		slog.Duration("duration", aggregate.EndedAt.Sub(aggregate.Metadata.CreatedAt)),
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		if o.store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), o.config.AdapterTimeout)
			if err := o.store.Save(ctx, aggregate); err != nil {
				o.logger.Error("Failed to persist session aggregate",
					slog.String("session_id", aggregate.SessionID),
					slog.String("error", err.Error()),
				)
			}
			cancel()
		}

		if o.notifier != nil {
			ctx, cancel := context.WithTimeout(context.Background(), o.config.AdapterTimeout)
			if err := o.notifier.Notify(ctx, aggregate); err != nil {
				o.logger.Error("Failed to send meeting minutes",
					slog.String("session_id", aggregate.SessionID),
					slog.String("error", err.Error()),
				)
			}
			cancel()
		}
	}()
}

// Stop drains every remaining session and waits for background work to
// finish. Called during graceful shutdown.
func (o *Orchestrator) Stop() {
	for _, s := range o.registry.Sessions() {
		if s.BeginDrain() {
			o.archive(s)
		}
	}

	o.cancel()
	o.wg.Wait()
}

// sendStatus broadcasts the current session status to its clients.
func (o *Orchestrator) sendStatus(s *session.Session) {
	active := s.State() == session.StateActive
	msg, err := protocol.NewMessage(protocol.TypeStatus, protocol.StatusPayload{
		Recording:    active,
		Transcribing: active,
		Connected:    true,
	})
	if err != nil {
		return
	}
	o.fanout.Broadcast(s.ID, s.Clients(), msg)
}

func convertParticipants(ps []protocol.Participant) []session.Participant {
	out := make([]session.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, session.Participant{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Email:       p.Email,
			Self:        p.Self,
		})
	}
	return out
}
