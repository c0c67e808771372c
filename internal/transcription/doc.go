// Package transcription defines the speech-to-text capability interface
// and its HTTP provider.
package transcription
