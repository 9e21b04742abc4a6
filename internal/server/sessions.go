// Package server tracks username-to-connection session bindings behind a
// single mutex so login, logout, and disconnect cleanup stay consistent.
package server

import (
	"errors"
	"sync"
)

// ErrAlreadyBound is returned by Login when the connection already holds a
// session. A connection must log out before authenticating again.
var ErrAlreadyBound = errors.New("connection already has a session")

// sessionRegistry is the single source of truth for who is online. It keeps
// the username→connection and connection→username maps in lockstep: every
// entry in one has its mirror in the other.
type sessionRegistry struct {
	mu     sync.RWMutex
	byUser map[string]string // username → connection id
	byConn map[string]string // connection id → username
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Login binds username to connID. It fails with ErrAlreadyBound if the
// connection already has a session. If the username is already bound to a
// different connection, the old binding is silently displaced
// (last-login-wins) and the displaced connection is left connected but
// unauthenticated.
func (s *sessionRegistry) Login(username, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, bound := s.byConn[connID]; bound {
		return ErrAlreadyBound
	}

	if prev, online := s.byUser[username]; online {
		delete(s.byConn, prev)
	}
	s.byUser[username] = connID
	s.byConn[connID] = username
	return nil
}

// Logout removes whatever binding connID holds. Calling it on an unbound
// connection is a no-op.
func (s *sessionRegistry) Logout(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(connID)
}

// Resolve returns the connection id currently bound to username.
func (s *sessionRegistry) Resolve(username string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connID, online := s.byUser[username]
	return connID, online
}

// Username returns the username bound to connID, if any.
func (s *sessionRegistry) Username(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, bound := s.byConn[connID]
	return username, bound
}

// OnDisconnect clears any binding for a connection being torn down. The hub
// calls this before the connection is removed, so no session ever points at
// a connection the hub no longer knows.
func (s *sessionRegistry) OnDisconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(connID)
}

// Connections returns a snapshot of every connection id with an active
// session, for broadcast fan-out.
func (s *sessionRegistry) Connections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byConn))
	for connID := range s.byConn {
		ids = append(ids, connID)
	}
	return ids
}

// remove deletes both directions of a binding. Caller holds the lock.
func (s *sessionRegistry) remove(connID string) {
	username, bound := s.byConn[connID]
	if !bound {
		return
	}
	delete(s.byConn, connID)
	// Only clear the user entry if it still points here; a last-login-wins
	// displacement may have rebound the username to a newer connection.
	if s.byUser[username] == connID {
		delete(s.byUser, username)
	}
}
