// Package notify sends meeting minutes to participants after a session is
// archived.
package notify
