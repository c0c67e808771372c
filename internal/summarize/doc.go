// Package summarize defines the summarization capability interface and its
// HTTP and Gemini providers.
package summarize
