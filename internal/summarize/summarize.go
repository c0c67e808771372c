package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xbiggyl/wsassistant/internal/session"
)

// Summarizer condenses a span of transcript segments into a summary record.
// The scheduler calls it once per interval tick; on failure the tick is
// skipped and the same segments are included in the next attempt.
type Summarizer interface {
	Summarize(ctx context.Context, segments []session.TranscriptSegment, windowStart, windowEnd time.Time) (session.SummaryRecord, error)
}

// Config selects and configures a summarization provider.
type Config struct {
	Provider string // "http" or "gemini"

	// HTTP provider settings.
	Endpoint string
	APIKey   string

	// Gemini provider settings.
	GeminiAPIKey string
	Model        string

	Timeout time.Duration
}

// New creates the summarizer named by config.Provider. Provider selection
// happens once at startup; callers hold only the Summarizer interface.
func New(config Config) (Summarizer, error) {
	switch config.Provider {
	case "http":
		return NewHTTPSummarizer(config)
	case "gemini":
		return NewGeminiSummarizer(config)
	default:
		return nil, fmt.Errorf("unknown summarizer provider: %q", config.Provider)
	}
}

// renderTranscript formats segments as speaker-attributed lines for a
// summarization prompt or request body.
func renderTranscript(segments []session.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		speaker := seg.SpeakerName
		if speaker == "" {
			speaker = seg.SpeakerID
		}
		if speaker == "" {
			speaker = "unknown"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", seg.Start.Format("15:04:05"), speaker, seg.Text)
	}
	return b.String()
}
