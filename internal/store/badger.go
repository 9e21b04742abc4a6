package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "user:"

// dummyHash is a bcrypt hash of an arbitrary string, compared against when a
// username is unknown so lookup misses are not observably faster.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// bcryptCost matches the work factor the original deployment used.
const bcryptCost = 10

// record is the on-disk shape of one credential entry.
type record struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// BadgerStore persists credential records in a Badger key-value store,
// one record per username under a "user:" key prefix.
type BadgerStore struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadger opens (or creates) the credential database at dir. An empty dir
// opens an in-memory database, which is what the tests use.
func OpenBadger(dir string, log zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	return &BadgerStore{db: db, log: log.With().Str("component", "store").Logger()}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func userKey(username string) []byte {
	return []byte(keyPrefix + username)
}

func (s *BadgerStore) get(username string) (record, bool, error) {
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, fmt.Errorf("read user %q: %w", username, err)
	}
	return rec, true, nil
}

// Verify compares the password against the stored bcrypt hash. Unknown
// usernames report false without an error so callers cannot tell the two
// failure modes apart.
func (s *BadgerStore) Verify(username, password string) (bool, error) {
	rec, found, err := s.get(username)
	if err != nil {
		return false, err
	}
	if !found {
		// Burn a comparison against a fixed hash so a miss costs the same
		// as a mismatch.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false, nil
	}

	return bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) == nil, nil
}

// Exists reports whether a record is present for username.
func (s *BadgerStore) Exists(username string) (bool, error) {
	_, found, err := s.get(username)
	return found, err
}

// Create hashes the password and stores a fresh record. The existence check
// and the write share one transaction, so concurrent creates for the same
// username cannot both succeed.
func (s *BadgerStore) Create(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	rec := record{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal user %q: %w", username, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("username", username).Msg("credential record created")
	return nil
}

// Delete verifies the password and removes the record. Verification failure
// for any reason is reported as ErrInvalid.
func (s *BadgerStore) Delete(username, password string) error {
	ok, err := s.Verify(username, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalid
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(userKey(username))
	})
	if err != nil {
		return fmt.Errorf("delete user %q: %w", username, err)
	}

	s.log.Info().Str("username", username).Msg("credential record deleted")
	return nil
}
