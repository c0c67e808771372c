// Package protocol defines the JSON message envelope exchanged with client
// connections over WebSocket.
package protocol
