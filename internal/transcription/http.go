package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/xbiggyl/wsassistant/internal/audio"
	"github.com/xbiggyl/wsassistant/internal/session"
)

// Config contains HTTP transcription client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
}

// HTTPClient sends flushed audio windows to a whisper-style transcription
// API as multipart uploads. There is no retry: the orchestrator issues
// exactly one call per window and drops the audio on failure.
type HTTPClient struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // Concurrency cap

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// segmentResponse is one transcribed span in the provider's response,
// with times as second offsets from the window start.
type segmentResponse struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// transcribeResponse is the provider's response envelope.
type transcribeResponse struct {
	Segments []segmentResponse `json:"segments"`
	Language string            `json:"language,omitempty"`
}

// Stats represents client statistics for monitoring.
type Stats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewHTTPClient creates an HTTP transcription client. Configuration errors
// here are fatal init errors: no session may start without a working
// transcriber.
func NewHTTPClient(config Config) (*HTTPClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe uploads one window and returns its transcript segments with
// absolute timestamps resolved against the window start.
func (c *HTTPClient) Transcribe(ctx context.Context, window *audio.Window, language string) ([]session.TranscriptSegment, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotal()

	response, err := c.doRequest(ctx, window, language)
	if err != nil {
		c.incrementFailed()
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	c.incrementSuccess()
	c.updateAvgResponseTime(time.Since(startTime))

	segments := make([]session.TranscriptSegment, 0, len(response.Segments))
	for _, seg := range response.Segments {
		lang := seg.Language
		if lang == "" {
			lang = response.Language
		}

		segments = append(segments, session.TranscriptSegment{
			Start:      window.Start.Add(time.Duration(seg.Start * float64(time.Second))),
			End:        window.Start.Add(time.Duration(seg.End * float64(time.Second))),
			SpeakerID:  seg.Speaker,
			Text:       seg.Text,
			Confidence: seg.Confidence,
			Language:   lang,
		})
	}

	return segments, nil
}

// doRequest performs the single HTTP request for a window.
func (c *HTTPClient) doRequest(ctx context.Context, window *audio.Window, language string) (*transcribeResponse, error) {
	body, contentType, err := c.createMultipartRequest(window, language)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return &parsed, nil
}

// createMultipartRequest builds the multipart/form-data body for a window.
func (c *HTTPClient) createMultipartRequest(window *audio.Window, language string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := fmt.Sprintf("window_%d.raw", window.Seq)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := fileWriter.Write(window.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"window_seq":   fmt.Sprintf("%d", window.Seq),
		"duration":     fmt.Sprintf("%.3f", window.Duration.Seconds()),
		"window_start": window.Start.Format(time.RFC3339Nano),
		"window_end":   window.End.Format(time.RFC3339Nano),
	}

	if language != "" {
		fields["language"] = language
	}
	if c.config.Model != "" {
		fields["model"] = c.config.Model
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// Statistics methods
func (c *HTTPClient) incrementTotal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *HTTPClient) incrementSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *HTTPClient) incrementFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *HTTPClient) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics.
func (c *HTTPClient) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return Stats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}
