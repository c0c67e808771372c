package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseValidMessage(t *testing.T) {
	raw := []byte(`{"type":"audio_chunk","payload":{"session_id":"s1","chunk":"AQID","timestamp":1700000000000}}`)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if msg.Type != TypeAudioChunk {
		t.Errorf("Expected type %s, got %s", TypeAudioChunk, msg.Type)
	}
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"type":`))
	if err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestParseMissingType(t *testing.T) {
	_, err := Parse([]byte(`{"payload":{}}`))
	if err == nil {
		t.Error("Expected error for missing type")
	}
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"type":"screen_share","payload":{}}`))
	if err == nil {
		t.Error("Expected error for unknown type")
	}
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeStatus, StatusPayload{Recording: true, Connected: true})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	if msg.Type != TypeStatus {
		t.Errorf("Expected type %s, got %s", TypeStatus, msg.Type)
	}

	var p StatusPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}

	if !p.Recording || !p.Connected || p.Transcribing {
		t.Errorf("Unexpected status payload: %+v", p)
	}
}

func TestNewMessageUnknownType(t *testing.T) {
	_, err := NewMessage("bogus", nil)
	if err == nil {
		t.Error("Expected error for unknown message type")
	}
}

func TestDecodeMeetingStart(t *testing.T) {
	payload := MeetingStartPayload{
		Title:    "Weekly sync",
		Language: "en",
		Participants: []Participant{
			{ID: "p1", DisplayName: "Alice", Email: "alice@example.com", Self: true},
			{ID: "p2", DisplayName: "Bob"},
		},
	}

	msg, err := NewMessage(TypeMeetingStart, payload)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	decoded, err := msg.DecodeMeetingStart()
	if err != nil {
		t.Fatalf("DecodeMeetingStart failed: %v", err)
	}

	if decoded.Title != "Weekly sync" {
		t.Errorf("Expected title 'Weekly sync', got %q", decoded.Title)
	}

	if len(decoded.Participants) != 2 {
		t.Errorf("Expected 2 participants, got %d", len(decoded.Participants))
	}

	if !decoded.Participants[0].Self {
		t.Error("Expected first participant to be marked self")
	}
}

func TestDecodeMeetingStartMissingTitle(t *testing.T) {
	msg, _ := NewMessage(TypeMeetingStart, MeetingStartPayload{Language: "en"})

	if _, err := msg.DecodeMeetingStart(); err == nil {
		t.Error("Expected error for meeting_start without title")
	}
}

func TestDecodeMeetingStartWrongType(t *testing.T) {
	msg, _ := NewMessage(TypeStatus, StatusPayload{})

	if _, err := msg.DecodeMeetingStart(); err == nil {
		t.Error("Expected error for wrong message type")
	}
}

func TestDecodeMeetingEnd(t *testing.T) {
	msg, err := NewMessage(TypeMeetingEnd, MeetingEndPayload{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	decoded, err := msg.DecodeMeetingEnd()
	if err != nil {
		t.Fatalf("DecodeMeetingEnd failed: %v", err)
	}

	if decoded.SessionID != "sess-1" {
		t.Errorf("Expected session id 'sess-1', got %q", decoded.SessionID)
	}
}

func TestDecodeMeetingEndMissingSessionID(t *testing.T) {
	msg, _ := NewMessage(TypeMeetingEnd, MeetingEndPayload{})

	if _, err := msg.DecodeMeetingEnd(); err == nil {
		t.Error("Expected error for meeting_end without session_id")
	}
}

func TestDecodeAudioChunk(t *testing.T) {
	capturedAt := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	payload := AudioChunkPayload{
		SessionID: "sess-1",
		Chunk:     []byte{0x01, 0x02, 0x03, 0x04},
		Timestamp: capturedAt.UnixMilli(),
	}

	msg, err := NewMessage(TypeAudioChunk, payload)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	decoded, err := msg.DecodeAudioChunk()
	if err != nil {
		t.Fatalf("DecodeAudioChunk failed: %v", err)
	}

	if decoded.SessionID != "sess-1" {
		t.Errorf("Expected session id 'sess-1', got %q", decoded.SessionID)
	}

	if len(decoded.Chunk) != 4 {
		t.Errorf("Expected 4 chunk bytes, got %d", len(decoded.Chunk))
	}

	if !decoded.CapturedAt().Equal(capturedAt) {
		t.Errorf("Expected capture time %v, got %v", capturedAt, decoded.CapturedAt())
	}
}

func TestDecodeAudioChunkValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload AudioChunkPayload
	}{
		{"missing session id", AudioChunkPayload{Chunk: []byte{1, 2}}},
		{"empty chunk", AudioChunkPayload{SessionID: "s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, _ := NewMessage(TypeAudioChunk, tt.payload)
			if _, err := msg.DecodeAudioChunk(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage(CodeBadMessage, "cannot parse message", "unexpected token")

	if msg.Type != TypeError {
		t.Errorf("Expected type %s, got %s", TypeError, msg.Type)
	}

	var p ErrorPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}

	if p.Code != CodeBadMessage {
		t.Errorf("Expected code %s, got %s", CodeBadMessage, p.Code)
	}
}
