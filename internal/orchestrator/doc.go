// Package orchestrator coordinates the meeting pipeline: audio ingestion,
// windowed transcription, periodic summarization, client fanout and
// session teardown.
package orchestrator
