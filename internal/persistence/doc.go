// Package persistence archives completed session aggregates to durable
// storage.
package persistence
