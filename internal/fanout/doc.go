// Package fanout maintains the routing table from client ids to connection
// handles and broadcasts outbound events best-effort.
package fanout
