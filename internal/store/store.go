// Package store implements the credential store: a durable mapping from
// username to password verifier with a Badger-backed implementation for
// production use and an in-memory implementation for tests.
package store

import "errors"

var (
	// ErrExists is returned by Create when the username already has a record.
	ErrExists = errors.New("username already exists")

	// ErrInvalid is returned by Delete when verification fails. An unknown
	// username and a wrong password are deliberately indistinguishable.
	ErrInvalid = errors.New("invalid username or password")
)

// Store is the credential store boundary. Password verifiers never leave an
// implementation in cleartext; callers only learn pass/fail.
type Store interface {
	// Verify reports whether the username/password pair matches a stored
	// record. An unknown username is a plain false, not an error.
	Verify(username, password string) (bool, error)

	// Exists reports whether the username has a record.
	Exists(username string) (bool, error)

	// Create stores a new record. Returns ErrExists if the username is taken.
	Create(username, password string) error

	// Delete removes the record after verifying the password. Returns
	// ErrInvalid when verification fails for any reason.
	Delete(username, password string) error
}
