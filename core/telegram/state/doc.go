// Package state persists the per-user conversation state as an opaque string.
// Backends are interchangeable: in-memory, Redis and PostgreSQL.
package state
