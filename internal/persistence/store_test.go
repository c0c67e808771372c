package persistence

import (
	"context"
	"os"
	"path/filepath"
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
			Language:  "en",
			Participants: []session.Participant{
				{ID: "spk-1", DisplayName: "Alice", Email: "alice@example.com"},
			},
		},
		Transcript: []session.TranscriptSegment{
			{Start: start, End: start.Add(2 * time.Second), SpeakerID: "spk-1", SpeakerName: "Alice", Text: "hello", Confidence: 0.9},
		},
		Summaries: []session.SummaryRecord{
			{Start: start, End: start.Add(5 * time.Minute), Bullets: []string{"greeted"}, GeneratedAt: start.Add(5 * time.Minute)},
		},
		EndedAt: start.Add(10 * time.Minute),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	aggregate := testAggregate()
	if err := store.Save(context.Background(), aggregate); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("sess-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.SessionID != aggregate.SessionID {
		t.Errorf("Expected session id %q, got %q", aggregate.SessionID, loaded.SessionID)
	}
	if loaded.Metadata.Title != "Weekly sync" {
		t.Errorf("Expected title preserved, got %q", loaded.Metadata.Title)
	}
	if len(loaded.Transcript) != 1 || loaded.Transcript[0].Text != "hello" {
		t.Errorf("Expected transcript preserved, got %+v", loaded.Transcript)
	}
	if len(loaded.Summaries) != 1 {
		t.Errorf("Expected 1 summary, got %d", len(loaded.Summaries))
	}

	// No temp file left behind.
	if _, err := os.Stat(filepath.Join(dir, "sess-1.json.tmp")); !os.IsNotExist(err) {
		t.Error("Expected temp file to be removed after save")
	}
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "archive")

	if _, err := NewFileStore(dir); err != nil {
		t.Fatalf("Failed to create store with nested dir: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("Expected directory to exist, got %v", err)
	}
}

func TestFileStoreRejectsEmptySessionID(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Save(context.Background(), session.Aggregate{}); err == nil {
		t.Error("Expected error for aggregate without session id")
	}
}
