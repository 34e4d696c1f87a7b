// Package events publishes cache invalidation notices to the
// presentation layer. Writes in this system land asynchronously (upload
// completions, extraction outcomes), so the UI cannot rely on
// read-after-write; instead every mutation announces which cached views
// went stale.
package events

import (
	"context"
	"log/slog"
)

// Scope names one class of cached view.
type Scope string

const (
	// ScopeSessions is the cross-session list view.
	ScopeSessions Scope = "sessions"
	// ScopeSession is one session's detail view. Key carries the
	// session ID.
	ScopeSession Scope = "session"
	// ScopeSessionGroups covers a session's capture groups and station
	// captures. Key carries the session ID.
	ScopeSessionGroups Scope = "session-groups"
)

// Invalidation marks one cached view stale.
type Invalidation struct {
	Scope Scope  `json:"scope"`
	Key   string `json:"key,omitempty"`
}

// Publisher delivers invalidations. Delivery failures are reported but
// callers treat them as non-fatal; a stale cache heals on expiry.
type Publisher interface {
	Publish(ctx context.Context, invalidations ...Invalidation) error
}

// SessionTouched is the standard set emitted after any mutation under
// one session. Over-invalidation is harmless, so mutations do not
// distinguish which of the three views they actually changed.
func SessionTouched(sessionID string) []Invalidation {
	return []Invalidation{
		{Scope: ScopeSessions},
		{Scope: ScopeSession, Key: sessionID},
		{Scope: ScopeSessionGroups, Key: sessionID},
	}
}

// LogPublisher records invalidations in the structured log without
// delivering them anywhere. It is the stand-in when no revalidation
// endpoint is configured, keeping call sites identical across
// deployments.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, invalidations ...Invalidation) error {
	for _, inv := range invalidations {
		slog.Info("Cache invalidation recorded without a configured publisher", "scope", inv.Scope, "key", inv.Key)
	}
	return nil
}
