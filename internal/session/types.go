package session

import (
	"time"
)

// State is the lifecycle state of a session. A session id that is not
// registered at all is implicitly idle.
type State int

const (
	// StateActive means the session is registered with at least one bound client.
	StateActive State = iota
	// StateDraining means teardown has been initiated and is in progress.
	StateDraining
	// StateArchived is terminal; the session has been removed from the registry.
	StateArchived
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Participant is one meeting attendee from the session roster.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Self        bool   `json:"self,omitempty"`
}

// Metadata describes one meeting instance. It is immutable for the
// session's lifetime.
type Metadata struct {
	Title        string        `json:"title"`
	CreatedAt    time.Time     `json:"created_at"`
	Language     string        `json:"language"`
	Participants []Participant `json:"participants,omitempty"`
}

// SpeakerName resolves a speaker id against the participant roster,
// falling back to the id itself when the roster has no entry.
func (m *Metadata) SpeakerName(speakerID string) string {
	for _, p := range m.Participants {
		if p.ID == speakerID {
			return p.DisplayName
		}
	}
	return speakerID
}

// TranscriptSegment is one transcribed span of meeting audio.
type TranscriptSegment struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	SpeakerID   string    `json:"speaker_id"`
	SpeakerName string    `json:"speaker_name"`
	Text        string    `json:"text"`
	Confidence  float32   `json:"confidence"`
	Language    string    `json:"language,omitempty"`
}

// SummaryRecord is one generated summary covering a span of transcript.
type SummaryRecord struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Bullets     []string  `json:"bullets"`
	Keywords    []string  `json:"keywords,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Aggregate is the final immutable assembly of a drained session, handed to
// the persistence and notification collaborators.
type Aggregate struct {
	SessionID  string              `json:"session_id"`
	Metadata   Metadata            `json:"metadata"`
	Transcript []TranscriptSegment `json:"transcript"`
	Summaries  []SummaryRecord     `json:"summaries"`
	EndedAt    time.Time           `json:"ended_at"`
}

// HasRecipients reports whether any participant carries an email address.
func (a *Aggregate) HasRecipients() bool {
	for _, p := range a.Metadata.Participants {
		if p.Email != "" {
			return true
		}
	}
	return false
}

// Info represents session state for monitoring and the admin API.
type Info struct {
	SessionID        string        `json:"session_id"`
	Title            string        `json:"title"`
	Language         string        `json:"language"`
	State            string        `json:"state"`
	CreatedAt        time.Time     `json:"created_at"`
	Duration         time.Duration `json:"duration"`
	BoundClients     int           `json:"bound_clients"`
	TranscriptLength int           `json:"transcript_segments"`
	SummaryCount     int           `json:"summaries"`
	Watermark        time.Time     `json:"watermark"`
	PendingFragments int           `json:"pending_fragments"`
	DroppedFragments uint64        `json:"dropped_fragments"`
	WindowsFlushed   uint64        `json:"windows_flushed"`
}
