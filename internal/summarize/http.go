package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xbiggyl/wsassistant/internal/session"
)

// HTTPSummarizer posts transcript text to a summarization API and maps
// the JSON response into a summary record.
type HTTPSummarizer struct {
	config     Config
	httpClient *http.Client
}

// summaryRequest is the request body sent to the provider.
type summaryRequest struct {
	Transcript  string `json:"transcript"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}

// summaryResponse is the provider's response envelope.
type summaryResponse struct {
	Bullets  []string `json:"bullets"`
	Keywords []string `json:"keywords"`
}

// NewHTTPSummarizer creates an HTTP summarization client. Configuration
// errors here are fatal init errors.
func NewHTTPSummarizer(config Config) (*HTTPSummarizer, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &HTTPSummarizer{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}, nil
}

// Summarize performs one summarization request for the given span.
func (s *HTTPSummarizer) Summarize(ctx context.Context, segments []session.TranscriptSegment, windowStart, windowEnd time.Time) (session.SummaryRecord, error) {
	reqBody := summaryRequest{
		Transcript:  renderTranscript(segments),
		WindowStart: windowStart.Format(time.RFC3339Nano),
		WindowEnd:   windowEnd.Format(time.RFC3339Nano),
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return session.SummaryRecord{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return session.SummaryRecord{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if s.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return session.SummaryRecord{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.SummaryRecord{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return session.SummaryRecord{}, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed summaryResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return session.SummaryRecord{}, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return session.SummaryRecord{
		Start:       windowStart,
		End:         windowEnd,
		Bullets:     parsed.Bullets,
		Keywords:    parsed.Keywords,
		GeneratedAt: time.Now(),
	}, nil
}
