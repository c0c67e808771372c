package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xbiggyl/wsassistant/internal/session"
)

func testAggregate() session.Aggregate {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return session.Aggregate{
		SessionID: "sess-1",
		Metadata: session.Metadata{
			Title:     "Weekly sync",
			CreatedAt: start,
			Participants: []session.Participant{
				{ID: "spk-1", DisplayName: "Alice", Email: "alice@example.com"},
				{ID: "spk-2", DisplayName: "Bob"},
			},
		},
		Transcript: []session.TranscriptSegment{
			{Start: start, End: start.Add(2 * time.Second), SpeakerID: "spk-1", SpeakerName: "Alice", Text: "Let's begin."},
		},
		Summaries: []session.SummaryRecord{
			{Start: start, End: start.Add(5 * time.Minute), Bullets: []string{"Kickoff started"}, Keywords: []string{"kickoff"}},
		},
		EndedAt: start.Add(30 * time.Minute),
	}
}

func TestNewSMTPNotifierValidation(t *testing.T) {
	if _, err := NewSMTPNotifier(SMTPConfig{Port: 587, From: "bot@example.com"}); err == nil {
		t.Error("Expected error for empty host")
	}
	if _, err := NewSMTPNotifier(SMTPConfig{Host: "mail.example.com", Port: 0, From: "bot@example.com"}); err == nil {
		t.Error("Expected error for invalid port")
	}
	if _, err := NewSMTPNotifier(SMTPConfig{Host: "mail.example.com", Port: 587}); err == nil {
		t.Error("Expected error for empty sender")
	}
	if _, err := NewSMTPNotifier(SMTPConfig{Host: "mail.example.com", Port: 587, From: "bot@example.com"}); err != nil {
		t.Errorf("Expected valid config to succeed, got %v", err)
	}
}

func TestNotifySkipsWhenNoRecipients(t *testing.T) {
	n, err := NewSMTPNotifier(SMTPConfig{Host: "mail.example.com", Port: 587, From: "bot@example.com"})
	if err != nil {
		t.Fatalf("Failed to create notifier: %v", err)
	}

	aggregate := testAggregate()
	aggregate.Metadata.Participants = []session.Participant{{ID: "spk-2", DisplayName: "Bob"}}

	// No email addresses, so no SMTP dial happens and no error surfaces.
	if err := n.Notify(context.Background(), aggregate); err != nil {
		t.Errorf("Expected silent skip without recipients, got %v", err)
	}
}

func TestRecipientAddresses(t *testing.T) {
	addrs := recipientAddresses(testAggregate())
	if len(addrs) != 1 || addrs[0] != "alice@example.com" {
		t.Errorf("Expected only participants with emails, got %v", addrs)
	}
}

func TestRenderMinutes(t *testing.T) {
	body := RenderMinutes(testAggregate())

	for _, want := range []string{
		"Weekly sync",
		"Duration: 30m0s",
		"- Alice",
		"* Kickoff started",
		"Keywords: kickoff",
		"Alice: Let's begin.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected minutes to contain %q, got:\n%s", want, body)
		}
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("bot@example.com", []string{"a@example.com", "b@example.com"}, "Subject line", "body"))

	if !strings.Contains(msg, "To: a@example.com, b@example.com\r\n") {
		t.Errorf("Expected To header with all recipients, got:\n%s", msg)
	}
	if !strings.Contains(msg, "Subject: Subject line\r\n") {
		t.Errorf("Expected Subject header, got:\n%s", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nbody") {
		t.Errorf("Expected blank line before body, got:\n%s", msg)
	}
}
