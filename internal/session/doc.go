// Package session holds the meeting session model, the registry of active
// sessions, and the session lifecycle state machine.
package session
