package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/xbiggyl/wsassistant/internal/session"
)

const defaultGeminiModel = "gemini-2.0-flash"

const geminiPromptHeader = `You are a meeting assistant. Summarize the transcript excerpt below.
Respond with JSON only, no markdown fences, in this shape:
{"bullets": ["..."], "keywords": ["..."]}
Bullets are short decision- and action-focused sentences. Keywords are the
main topics mentioned.

Transcript:
`

// GeminiSummarizer generates summaries with the Gemini API.
type GeminiSummarizer struct {
	apiKey string
	model  string
}

// NewGeminiSummarizer creates a Gemini-backed summarizer. Configuration
// errors here are fatal init errors.
func NewGeminiSummarizer(config Config) (*GeminiSummarizer, error) {
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key cannot be empty")
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiSummarizer{
		apiKey: config.GeminiAPIKey,
		model:  model,
	}, nil
}

// Summarize performs one generation request for the given span.
func (s *GeminiSummarizer) Summarize(ctx context.Context, segments []session.TranscriptSegment, windowStart, windowEnd time.Time) (session.SummaryRecord, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return session.SummaryRecord{}, fmt.Errorf("create client: %w", err)
	}

	prompt := geminiPromptHeader + renderTranscript(segments)

	result, err := client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return session.SummaryRecord{}, fmt.Errorf("generate content: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return session.SummaryRecord{}, fmt.Errorf("empty response from Gemini")
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	bullets, keywords, err := parseGeminiSummary(text)
	if err != nil {
		return session.SummaryRecord{}, err
	}

	return session.SummaryRecord{
		Start:       windowStart,
		End:         windowEnd,
		Bullets:     bullets,
		Keywords:    keywords,
		GeneratedAt: time.Now(),
	}, nil
}

// parseGeminiSummary extracts bullets and keywords from the model output,
// tolerating markdown code fences around the JSON.
func parseGeminiSummary(text string) ([]string, []string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed struct {
		Bullets  []string `json:"bullets"`
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, nil, fmt.Errorf("failed to parse model output: %w", err)
	}

	if len(parsed.Bullets) == 0 {
		return nil, nil, fmt.Errorf("model output contained no bullets")
	}

	return parsed.Bullets, parsed.Keywords, nil
}
