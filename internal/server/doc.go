// Package server provides the WebSocket client transport and the HTTP
// admin/monitoring API.
package server
