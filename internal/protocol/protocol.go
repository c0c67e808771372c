package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types exchanged with client connections.
const (
	TypeMeetingStart = "meeting_start"
	TypeMeetingEnd   = "meeting_end"
	TypeAudioChunk   = "audio_chunk"
	TypeVideoChunk   = "video_chunk"
	TypeTranscript   = "transcript"
	TypeSummary      = "summary"
	TypeStatus       = "status"
	TypeError        = "error"
)

// Error codes carried in error payloads.
const (
	CodeBadMessage       = "bad_message"
	CodeUnknownSession   = "unknown_session"
	CodeDuplicateSession = "duplicate_session"
	CodeInternal         = "internal_error"
)

// Message is the envelope for every frame exchanged with a client.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Participant describes one meeting attendee as announced by the client.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Self        bool   `json:"self,omitempty"`
}

// MeetingStartPayload carries session metadata for meeting_start messages.
// A SessionID naming an already-active session joins it instead of creating
// a new one.
type MeetingStartPayload struct {
	SessionID    string        `json:"session_id,omitempty"`
	Title        string        `json:"title"`
	Language     string        `json:"language"`
	Participants []Participant `json:"participants,omitempty"`
}

// MeetingEndPayload requests explicit teardown of a session.
type MeetingEndPayload struct {
	SessionID string `json:"session_id"`
}

// AudioChunkPayload carries one raw audio fragment. Chunk travels base64
// encoded (encoding/json []byte behaviour). Timestamp is the sender-reported
// capture time in Unix milliseconds and is not trusted to be monotonic.
type AudioChunkPayload struct {
	SessionID string `json:"session_id"`
	Chunk     []byte `json:"chunk"`
	Timestamp int64  `json:"timestamp"`
}

// TranscriptEventPayload carries one transcript segment to clients.
type TranscriptEventPayload struct {
	SessionID  string  `json:"session_id"`
	Start      int64   `json:"start"` // Unix milliseconds
	End        int64   `json:"end"`
	SpeakerID  string  `json:"speaker_id,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence,omitempty"`
	Language   string  `json:"language,omitempty"`
}

// SummaryEventPayload carries one generated summary to clients.
type SummaryEventPayload struct {
	SessionID string   `json:"session_id"`
	Start     int64    `json:"start"` // Unix milliseconds
	End       int64    `json:"end"`
	Bullets   []string `json:"bullets"`
	Keywords  []string `json:"keywords,omitempty"`
}

// StatusPayload reports session state to clients.
type StatusPayload struct {
	Recording    bool `json:"recording"`
	Transcribing bool `json:"transcribing"`
	Connected    bool `json:"connected"`
}

// ErrorPayload is sent to the offending connection only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// validTypes holds every message type the service understands.
var validTypes = map[string]bool{
	TypeMeetingStart: true,
	TypeMeetingEnd:   true,
	TypeAudioChunk:   true,
	TypeVideoChunk:   true,
	TypeTranscript:   true,
	TypeSummary:      true,
	TypeStatus:       true,
	TypeError:        true,
}

// IsValidType reports whether t is a known message type.
func IsValidType(t string) bool {
	return validTypes[t]
}

// Parse decodes and validates a raw client frame.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}

	if !IsValidType(msg.Type) {
		return nil, fmt.Errorf("unknown message type: %q", msg.Type)
	}

	return &msg, nil
}

// NewMessage wraps payload into an envelope of the given type.
func NewMessage(msgType string, payload any) (Message, error) {
	if !IsValidType(msgType) {
		return Message{}, fmt.Errorf("unknown message type: %q", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}

	return Message{Type: msgType, Payload: raw}, nil
}

// NewErrorMessage builds an error envelope for the offending connection.
func NewErrorMessage(code, message, details string) Message {
	msg, _ := NewMessage(TypeError, ErrorPayload{
		Code:    code,
		Message: message,
		Details: details,
	})
	return msg
}

// DecodeMeetingStart extracts and validates a meeting_start payload.
func (m *Message) DecodeMeetingStart() (*MeetingStartPayload, error) {
	if m.Type != TypeMeetingStart {
		return nil, fmt.Errorf("expected %s message, got %s", TypeMeetingStart, m.Type)
	}

	var p MeetingStartPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, fmt.Errorf("malformed meeting_start payload: %w", err)
	}

	if p.Title == "" {
		return nil, fmt.Errorf("meeting_start payload has no title")
	}

	return &p, nil
}

// DecodeMeetingEnd extracts and validates a meeting_end payload.
func (m *Message) DecodeMeetingEnd() (*MeetingEndPayload, error) {
	if m.Type != TypeMeetingEnd {
		return nil, fmt.Errorf("expected %s message, got %s", TypeMeetingEnd, m.Type)
	}

	var p MeetingEndPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, fmt.Errorf("malformed meeting_end payload: %w", err)
	}

	if p.SessionID == "" {
		return nil, fmt.Errorf("meeting_end payload has no session_id")
	}

	return &p, nil
}

// DecodeAudioChunk extracts and validates an audio_chunk payload.
func (m *Message) DecodeAudioChunk() (*AudioChunkPayload, error) {
	if m.Type != TypeAudioChunk {
		return nil, fmt.Errorf("expected %s message, got %s", TypeAudioChunk, m.Type)
	}

	var p AudioChunkPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, fmt.Errorf("malformed audio_chunk payload: %w", err)
	}

	if p.SessionID == "" {
		return nil, fmt.Errorf("audio_chunk payload has no session_id")
	}

	if len(p.Chunk) == 0 {
		return nil, fmt.Errorf("audio_chunk payload has no audio data")
	}

	return &p, nil
}

// CapturedAt converts the sender-reported timestamp to a time.Time.
func (p *AudioChunkPayload) CapturedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// String returns a human-readable representation of the envelope.
func (m *Message) String() string {
	return fmt.Sprintf("Message{Type:%s, PayloadLen:%d}", m.Type, len(m.Payload))
}
