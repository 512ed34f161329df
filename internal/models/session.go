package models

import "time"

// RetargetSession is the ephemeral record of one in-flight re-target
// request. AccountID is present for provider re-targets only.
type RetargetSession struct {
	Email     string `json:"email"`
	EmailHash string `json:"emailHash"`
	Address   string `json:"address"`
	AccountID string `json:"accountId,omitempty"`
}

// SessionStore is a TTL-bound key-value store for in-flight re-target
// sessions. Keys are opaque session IDs.
type SessionStore interface {
	Put(id string, session *RetargetSession, ttl time.Duration) error
	Get(id string) (*RetargetSession, error)
	// Take atomically fetches and deletes the session: under concurrent
	// calls for the same id, at most one succeeds.
	Take(id string) (*RetargetSession, error)
	Delete(id string) error
}
