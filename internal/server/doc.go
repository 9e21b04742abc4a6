// Package server implements the Parley chat relay: a WebSocket endpoint in
// front of a connection registry (the hub), a session registry binding
// usernames to connections, and a per-frame router that validates inbound
// frames and fans messages out to broadcast or whisper targets.
//
// The implementation is organized into specialized files for configuration,
// the hub, sessions, routing, clients, and HTTP plumbing to keep the
// codebase maintainable and testable as the project grows.
package server
