package transcription

import (
	"context"

	"github.com/xbiggyl/wsassistant/internal/audio"
	"github.com/xbiggyl/wsassistant/internal/session"
)

// Transcriber converts one flushed audio window into ordered transcript
// segments. The orchestrator calls it exactly once per window and does not
// retry; on failure the window's audio is dropped by policy. Providers are
// added by implementing this interface.
type Transcriber interface {
	Transcribe(ctx context.Context, window *audio.Window, language string) ([]session.TranscriptSegment, error)
}
