// Package server defines the wire protocol types shared by the router,
// client pumps, and hub, plus small connection-error helpers.
package server

import "strings"

// Inbound message type tags.
const (
	TypeLogin   = "login"
	TypeLogout  = "logout"
	TypeCreate  = "create"
	TypeRemove  = "remove"
	TypeMessage = "message"
	TypeWhisper = "whisper"
	TypeError   = "error"
)

// Protocol error strings. Clients match on these verbatim, so they are part
// of the wire format.
const (
	errAlreadyLoggedIn  = "Already logged in"
	errNotLoggedIn      = "Not logged in"
	errUsernameRequired = "Username required"
	errPasswordRequired = "Password required"
	errMessageRequired  = "Message required"
	errRecipientsNeeded = "Recipients required"
	errUsernameTaken    = "Username taken"
	errInvalidCreds     = "Invalid username or password"
	errInvalidType      = "Invalid message type"
)

// Inbound is one parsed client frame. Which fields are meaningful depends on
// Type; absent fields decode to their zero values and the router treats an
// empty string or slice as "not present".
type Inbound struct {
	Type       string   `json:"type"`
	Username   string   `json:"username,omitempty"`
	Password   string   `json:"password,omitempty"`
	Message    string   `json:"message,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

// Outbound is one frame sent to a client: a direct response, a broadcast, or
// a whisper. Error responses echo the request's Type so clients can correlate.
type Outbound struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
	Sender   string `json:"sender,omitempty"`
	Error    string `json:"error,omitempty"`
}

func respondError(typ, msg string) Outbound {
	return Outbound{Type: typ, Error: msg}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
