package audio

import (
	"sync"
	"time"
)

// Fragment is one raw audio fragment as received from a client, together
// with the capture timestamp the sender reported for it.
type Fragment struct {
	Data       []byte
	CapturedAt time.Time
}

// Window is a merged batch of fragments flushed together for one
// transcription call. Seq is the per-session flush sequence number and is
// strictly increasing; transcript append order follows it.
type Window struct {
	Data     []byte
	Duration time.Duration
	Seq      uint64
	Start    time.Time
	End      time.Time
}

// WindowBuffer accumulates inbound audio fragments for one session until a
// duration threshold is met, then yields them merged into a single window.
//
// Fragments are concatenated in arrival order, not capture-timestamp order.
// Capture timestamps are recorded on the window bounds but never used to
// reorder data; under network reordering this can misorder audio within a
// window, which is the documented ordering policy rather than an accident.
type WindowBuffer struct {
	bytesPerSecond int
	maxPending     time.Duration

	fragments []Fragment
	total     time.Duration
	flushSeq  uint64
	dropped   uint64

	mu sync.Mutex
}

// WindowBufferStats represents buffer state for monitoring.
type WindowBufferStats struct {
	PendingFragments int           `json:"pending_fragments"`
	PendingDuration  time.Duration `json:"pending_duration"`
	WindowsFlushed   uint64        `json:"windows_flushed"`
	DroppedFragments uint64        `json:"dropped_fragments"`
}

// NewWindowBuffer creates a window buffer. bytesPerSecond is the byte rate
// used to estimate fragment durations (sample rate * channels * bytes per
// sample). maxPending caps the buffered duration; once exceeded the oldest
// fragments are dropped. maxPending <= 0 disables the cap.
func NewWindowBuffer(bytesPerSecond int, maxPending time.Duration) *WindowBuffer {
	if bytesPerSecond <= 0 {
		bytesPerSecond = 16000 // 8 kHz mono PCM-16
	}

	return &WindowBuffer{
		bytesPerSecond: bytesPerSecond,
		maxPending:     maxPending,
		fragments:      make([]Fragment, 0, 16),
	}
}

// Append adds a fragment in arrival order and returns the updated cumulative
// estimated duration of all pending fragments, plus the number of old
// fragments the pending cap evicted to make room.
func (b *WindowBuffer) Append(frag Fragment) (time.Duration, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fragments = append(b.fragments, frag)
	b.total += b.estimate(len(frag.Data))

	// Drop-oldest once the cap is exceeded. Ingestion faster than the flush
	// and transcription rate would otherwise grow the buffer without bound.
	evicted := 0
	if b.maxPending > 0 {
		for b.total > b.maxPending && len(b.fragments) > 1 {
			oldest := b.fragments[0]
			b.fragments = b.fragments[1:]
			b.total -= b.estimate(len(oldest.Data))
			b.dropped++
			evicted++
		}
	}

	return b.total, evicted
}

// TryFlush returns all pending fragments merged into one window if their
// cumulative duration has reached threshold, clearing the buffer. It returns
// nil, leaving the buffer untouched, while below threshold.
func (b *WindowBuffer) TryFlush(threshold time.Duration) *Window {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.fragments) == 0 || b.total < threshold {
		return nil
	}

	size := 0
	for _, frag := range b.fragments {
		size += len(frag.Data)
	}

	merged := make([]byte, 0, size)
	start := b.fragments[0].CapturedAt
	end := b.fragments[0].CapturedAt
	for _, frag := range b.fragments {
		merged = append(merged, frag.Data...)
		if frag.CapturedAt.Before(start) {
			start = frag.CapturedAt
		}
		if frag.CapturedAt.After(end) {
			end = frag.CapturedAt
		}
	}

	b.flushSeq++
	window := &Window{
		Data:     merged,
		Duration: b.total,
		Seq:      b.flushSeq,
		Start:    start,
		End:      end,
	}

	b.fragments = b.fragments[:0]
	b.total = 0

	return window
}

// Pending returns the number of fragments awaiting flush.
func (b *WindowBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fragments)
}

// PendingDuration returns the cumulative estimated duration awaiting flush.
func (b *WindowBuffer) PendingDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Stats returns current buffer statistics.
func (b *WindowBuffer) Stats() WindowBufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return WindowBufferStats{
		PendingFragments: len(b.fragments),
		PendingDuration:  b.total,
		WindowsFlushed:   b.flushSeq,
		DroppedFragments: b.dropped,
	}
}

// estimate converts a fragment byte length into an estimated duration.
func (b *WindowBuffer) estimate(byteLen int) time.Duration {
	return time.Duration(byteLen) * time.Second / time.Duration(b.bytesPerSecond)
}
