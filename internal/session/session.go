package session

import (
	"context"
	"sync"
	"time"

	"github.com/xbiggyl/wsassistant/internal/audio"
)

// Session is one live meeting instance and its accumulated state. All
// mutable fields are guarded by mu; the mutex is held only across state
// mutations, never across adapter or collaborator calls.
type Session struct {
	ID       string
	Metadata Metadata

	// Window accumulates inbound audio fragments until the flush threshold.
	Window *audio.WindowBuffer

	state      State
	clients    map[string]struct{}
	transcript []TranscriptSegment
	summaries  []SummaryRecord
	watermark  time.Time

	// Flushed windows awaiting transcription, consumed by a single ordered
	// worker so transcript append order equals window-flush order.
	windows chan *audio.Window

	// Cancellation handle for the session's background tasks (summary
	// scheduler and transcription worker). Canceling it is the first step
	// of teardown.
	taskCancel context.CancelFunc

	mu sync.RWMutex
}

// newSession is called by the registry, which owns session construction.
func newSession(id string, meta Metadata, window *audio.WindowBuffer, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = 8
	}

	return &Session{
		ID:       id,
		Metadata: meta,
		Window:   window,
		state:    StateActive,
		clients:  make(map[string]struct{}),
		windows:  make(chan *audio.Window, queueSize),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// BeginDrain transitions Active to Draining. It returns true for exactly one
// caller; concurrent triggers while already Draining (or Archived) are no-ops.
func (s *Session) BeginDrain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}
	s.state = StateDraining
	return true
}

// MarkArchived moves the session to its terminal state. Results of in-flight
// adapter calls arriving afterwards are rejected by the append guards.
func (s *Session) MarkArchived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateArchived
}

// BindTasks stores the cancellation handle for the session's background
// tasks, returning a context derived from parent.
func (s *Session) BindTasks(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	s.taskCancel = cancel
	s.mu.Unlock()

	return ctx
}

// CancelTasks cancels the session's background tasks. Safe to call more
// than once and before BindTasks.
func (s *Session) CancelTasks() {
	s.mu.RLock()
	cancel := s.taskCancel
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
}

// EnqueueWindow queues a flushed window for the transcription worker. It
// returns false without blocking when the queue is full; the window's audio
// is then lost, the same policy as a failed transcription call.
func (s *Session) EnqueueWindow(w *audio.Window) bool {
	select {
	case s.windows <- w:
		return true
	default:
		return false
	}
}

// WindowQueue exposes the flushed-window queue to the transcription worker.
func (s *Session) WindowQueue() <-chan *audio.Window {
	return s.windows
}

// bindClient adds a client to the bound set. Idempotent.
func (s *Session) bindClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = struct{}{}
}

// unbindClient removes a client and returns how many remain bound.
func (s *Session) unbindClient(clientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientID)
	return len(s.clients)
}

// Clients returns a snapshot of the bound client ids.
func (s *Session) Clients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}

// ClientCount returns the number of bound clients.
func (s *Session) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// AppendTranscript appends segments in the order given. It returns false,
// discarding the segments, once the session is archived (stale guard for
// in-flight transcription results).
func (s *Session) AppendTranscript(segments []TranscriptSegment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateArchived {
		return false
	}

	s.transcript = append(s.transcript, segments...)
	return true
}

// SummaryWindow returns a copy of all transcript segments starting at or
// after the current watermark, together with the watermark itself.
func (s *Session) SummaryWindow() ([]TranscriptSegment, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var window []TranscriptSegment
	for _, seg := range s.transcript {
		if !seg.Start.Before(s.watermark) {
			window = append(window, seg)
		}
	}
	return window, s.watermark
}

// AppendSummary appends a summary record and advances the watermark to tick.
// The watermark is monotonic non-decreasing and only moves on success; it
// returns false once the session is archived (stale guard).
func (s *Session) AppendSummary(rec SummaryRecord, tick time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateArchived {
		return false
	}

	s.summaries = append(s.summaries, rec)
	if tick.After(s.watermark) {
		s.watermark = tick
	}
	return true
}

// Watermark returns the end of the last successfully summarized span.
func (s *Session) Watermark() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermark
}

// TranscriptLength returns the number of appended transcript segments.
func (s *Session) TranscriptLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcript)
}

// SummaryCount returns the number of appended summary records.
func (s *Session) SummaryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.summaries)
}

// Snapshot assembles the final aggregate as a deep copy. Collaborators
// receive this copy, never references into live session state.
func (s *Session) Snapshot() Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript := make([]TranscriptSegment, len(s.transcript))
	copy(transcript, s.transcript)

	summaries := make([]SummaryRecord, len(s.summaries))
	copy(summaries, s.summaries)

	meta := s.Metadata
	meta.Participants = append([]Participant(nil), s.Metadata.Participants...)

	return Aggregate{
		SessionID:  s.ID,
		Metadata:   meta,
		Transcript: transcript,
		Summaries:  summaries,
		EndedAt:    time.Now(),
	}
}

// Info returns session state for monitoring.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.Window.Stats()

	return Info{
		SessionID:        s.ID,
		Title:            s.Metadata.Title,
		Language:         s.Metadata.Language,
		State:            s.state.String(),
		CreatedAt:        s.Metadata.CreatedAt,
		Duration:         time.Since(s.Metadata.CreatedAt),
		BoundClients:     len(s.clients),
		TranscriptLength: len(s.transcript),
		SummaryCount:     len(s.summaries),
		Watermark:        s.watermark,
		PendingFragments: stats.PendingFragments,
		DroppedFragments: stats.DroppedFragments,
		WindowsFlushed:   stats.WindowsFlushed,
	}
}
