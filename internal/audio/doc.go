// Package audio implements per-session buffering of raw audio fragments
// into time windows for transcription.
package audio
