// Package store provides scoped marker storage for the widget runtime.
//
// Markers are small string values keyed by name: popup shown flags, last-shown
// timestamps, the visited marker, and the persisted chat session record. Two
// scopes exist, mirroring the browser's localStorage/sessionStorage split:
// persistent markers survive restarts, session markers last one browsing
// session. Writes are last-write-wins; no cross-component locking is provided.
package store

import "context"

// Scope selects the lifetime of a marker.
type Scope int

const (
	// ScopePersistent markers survive process and browser restarts.
	ScopePersistent Scope = iota
	// ScopeSession markers are cleared when the browsing session ends.
	ScopeSession
)

func (s Scope) String() string {
	if s == ScopeSession {
		return "session"
	}
	return "persistent"
}

// MarkerStore reads and writes scoped markers.
type MarkerStore interface {
	// Get returns the marker value and whether it exists.
	Get(ctx context.Context, scope Scope, key string) (string, bool, error)
	Set(ctx context.Context, scope Scope, key, value string) error
	Delete(ctx context.Context, scope Scope, key string) error
}
