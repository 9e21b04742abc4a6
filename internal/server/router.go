// Package server routes inbound frames: it parses each JSON frame, validates
// it against session state, consults the credential store, and fans out the
// resulting frames through the connection registry.
package server

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/parley-chat/parley/internal/store"
)

// frameSender delivers an outbound frame to a connection id, best-effort.
// The hub implements it; tests substitute a recorder.
type frameSender interface {
	Send(connID string, msg Outbound)
}

// Router is the per-frame protocol state machine. It carries no per-frame
// state of its own: the session registry is the only thing that persists
// between frames.
type Router struct {
	sessions    *sessionRegistry
	credentials store.Store
	sender      frameSender
	log         zerolog.Logger
}

func newRouter(sessions *sessionRegistry, credentials store.Store, sender frameSender, log zerolog.Logger) *Router {
	return &Router{
		sessions:    sessions,
		credentials: credentials,
		sender:      sender,
		log:         log.With().Str("component", "router").Logger(),
	}
}

// Handle processes one raw frame from connID. It never returns an error:
// every failure is either reported to the sender in-band or logged. A panic
// while handling is recovered so one bad frame cannot take the process down.
func (r *Router) Handle(connID string, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("conn", connID).Interface("panic", rec).Msg("recovered while handling frame")
		}
	}()

	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		// Unparseable frames get no response; the connection stays open.
		r.log.Warn().Str("conn", connID).Err(err).Msg("discarding malformed frame")
		return
	}

	switch msg.Type {
	case TypeLogin:
		r.login(connID, msg.Username, msg.Password)
	case TypeLogout:
		r.logout(connID)
	case TypeCreate:
		r.create(connID, msg.Username, msg.Password)
	case TypeRemove:
		r.remove(connID, msg.Username, msg.Password)
	case TypeMessage:
		r.broadcast(connID, msg.Message)
	case TypeWhisper:
		r.whisper(connID, msg.Message, msg.Recipients)
	default:
		r.sender.Send(connID, respondError(TypeError, errInvalidType))
	}
}

func (r *Router) login(connID, username, password string) {
	if _, bound := r.sessions.Username(connID); bound {
		r.sender.Send(connID, respondError(TypeLogin, errAlreadyLoggedIn))
		return
	}
	if username == "" {
		r.sender.Send(connID, respondError(TypeLogin, errUsernameRequired))
		return
	}
	if password == "" {
		r.sender.Send(connID, respondError(TypeLogin, errPasswordRequired))
		return
	}

	// Verification may be slow (bcrypt, disk); it runs before any registry
	// lock is taken.
	ok, err := r.credentials.Verify(username, password)
	if err != nil {
		r.log.Error().Str("conn", connID).Err(err).Msg("credential verification failed")
		return
	}
	if !ok {
		r.sender.Send(connID, respondError(TypeLogin, errInvalidCreds))
		return
	}

	if err := r.sessions.Login(username, connID); err != nil {
		// A frame processed for this connection since the check above bound
		// a session; report it the same as the up-front check would have.
		r.sender.Send(connID, respondError(TypeLogin, errAlreadyLoggedIn))
		return
	}

	r.log.Info().Str("conn", connID).Str("username", username).Msg("logged in")
	r.sender.Send(connID, Outbound{Type: TypeLogin, Username: username})
}

func (r *Router) logout(connID string) {
	username, bound := r.sessions.Username(connID)
	if !bound {
		r.sender.Send(connID, respondError(TypeLogout, errNotLoggedIn))
		return
	}

	r.sessions.Logout(connID)
	r.log.Info().Str("conn", connID).Str("username", username).Msg("logged out")
	r.sender.Send(connID, Outbound{Type: TypeLogout, Username: username})
}

func (r *Router) create(connID, username, password string) {
	if username == "" {
		r.sender.Send(connID, respondError(TypeCreate, errUsernameRequired))
		return
	}

	taken, err := r.credentials.Exists(username)
	if err != nil {
		r.log.Error().Str("conn", connID).Err(err).Msg("credential lookup failed")
		return
	}
	if taken {
		r.sender.Send(connID, respondError(TypeCreate, errUsernameTaken))
		return
	}
	if password == "" {
		r.sender.Send(connID, respondError(TypeCreate, errPasswordRequired))
		return
	}

	if err := r.credentials.Create(username, password); err != nil {
		if errors.Is(err, store.ErrExists) {
			r.sender.Send(connID, respondError(TypeCreate, errUsernameTaken))
			return
		}
		r.log.Error().Str("conn", connID).Err(err).Msg("credential creation failed")
		return
	}

	r.sender.Send(connID, Outbound{Type: TypeCreate, Username: username})

	// Creating an account also logs the caller in, as a direct call rather
	// than a re-injected frame. The login path sends its own response.
	r.login(connID, username, password)
}

func (r *Router) remove(connID, username, password string) {
	if username == "" {
		r.sender.Send(connID, respondError(TypeRemove, errUsernameRequired))
		return
	}
	if password == "" {
		r.sender.Send(connID, respondError(TypeRemove, errPasswordRequired))
		return
	}

	if err := r.credentials.Delete(username, password); err != nil {
		if errors.Is(err, store.ErrInvalid) {
			r.sender.Send(connID, respondError(TypeRemove, errInvalidCreds))
			return
		}
		r.log.Error().Str("conn", connID).Err(err).Msg("credential deletion failed")
		return
	}

	r.sender.Send(connID, Outbound{Type: TypeRemove, Username: username})

	// Removing an account also ends the caller's session; the logout path
	// sends its own response, including "Not logged in" when there was none.
	r.logout(connID)
}

func (r *Router) broadcast(connID, message string) {
	sender, bound := r.sessions.Username(connID)
	if !bound {
		r.sender.Send(connID, respondError(TypeMessage, errNotLoggedIn))
		return
	}
	if message == "" {
		r.sender.Send(connID, respondError(TypeMessage, errMessageRequired))
		return
	}

	out := Outbound{Type: TypeMessage, Message: message, Sender: sender}
	for _, target := range r.sessions.Connections() {
		r.sender.Send(target, out)
	}
}

func (r *Router) whisper(connID, message string, recipients []string) {
	sender, bound := r.sessions.Username(connID)
	if !bound {
		r.sender.Send(connID, respondError(TypeWhisper, errNotLoggedIn))
		return
	}
	if message == "" {
		r.sender.Send(connID, respondError(TypeWhisper, errMessageRequired))
		return
	}
	if len(recipients) == 0 {
		r.sender.Send(connID, respondError(TypeWhisper, errRecipientsNeeded))
		return
	}

	out := Outbound{Type: TypeWhisper, Message: message, Sender: sender}
	// The sender always gets a copy; duplicates and self-mentions collapse.
	// Offline recipients are skipped without an error.
	for _, name := range lo.Uniq(append(recipients, sender)) {
		if target, online := r.sessions.Resolve(name); online {
			r.sender.Send(target, out)
		}
	}
}
