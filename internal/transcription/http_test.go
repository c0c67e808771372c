package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xbiggyl/wsassistant/internal/audio"
)

func testWindow() *audio.Window {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return &audio.Window{
		Data:     make([]byte, 16000),
		Duration: time.Second,
		Seq:      1,
		Start:    start,
		End:      start.Add(time.Second),
	}
}

func TestNewHTTPClientValidation(t *testing.T) {
	if _, err := NewHTTPClient(Config{APIKey: "key"}); err == nil {
		t.Error("Expected error for empty endpoint")
	}
	if _, err := NewHTTPClient(Config{Endpoint: "http://localhost"}); err == nil {
		t.Error("Expected error for empty API key")
	}
	client, err := NewHTTPClient(Config{Endpoint: "http://localhost", APIKey: "key"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if client.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.config.Timeout)
	}
	if cap(client.semaphore) != 10 {
		t.Errorf("Expected default max concurrent 10, got %d", cap(client.semaphore))
	}
}

func TestTranscribeResolvesAbsoluteTimes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got %q", auth)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		if lang := r.FormValue("language"); lang != "en" {
			t.Errorf("Expected language field en, got %q", lang)
		}

		resp := transcribeResponse{
			Language: "en",
			Segments: []segmentResponse{
				{Start: 0.5, End: 1.0, Speaker: "spk-1", Text: "hello", Confidence: 0.92},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewHTTPClient(Config{Endpoint: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	window := testWindow()
	segments, err := client.Transcribe(context.Background(), window, "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if !seg.Start.Equal(window.Start.Add(500 * time.Millisecond)) {
		t.Errorf("Expected segment start offset 500ms from window start, got %v", seg.Start)
	}
	if seg.SpeakerID != "spk-1" || seg.Text != "hello" {
		t.Errorf("Unexpected segment content: %+v", seg)
	}
	if seg.Language != "en" {
		t.Errorf("Expected language inherited from response, got %q", seg.Language)
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 || stats.TotalRequests != 1 {
		t.Errorf("Expected 1 successful request recorded, got %+v", stats)
	}
}

func TestTranscribeServerErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewHTTPClient(Config{Endpoint: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), testWindow(), ""); err == nil {
		t.Error("Expected error for HTTP 503")
	}

	if calls != 1 {
		t.Errorf("Expected exactly one request, got %d", calls)
	}

	stats := client.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request recorded, got %+v", stats)
	}
}

func TestTranscribeCanceledContext(t *testing.T) {
	client, err := NewHTTPClient(Config{Endpoint: "http://127.0.0.1:1", APIKey: "test-key", MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	// Occupy the only semaphore slot so the call blocks on it.
	client.semaphore <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Transcribe(ctx, testWindow(), ""); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
