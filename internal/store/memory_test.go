package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore()

	req.NoError(s.Create("alice", "secret"))
	req.ErrorIs(s.Create("alice", "other"), ErrExists)

	ok, err := s.Verify("alice", "secret")
	req.NoError(err)
	req.True(ok)

	ok, err = s.Verify("alice", "wrong")
	req.NoError(err)
	req.False(ok)

	found, err := s.Exists("alice")
	req.NoError(err)
	req.True(found)

	req.ErrorIs(s.Delete("alice", "wrong"), ErrInvalid)
	req.NoError(s.Delete("alice", "secret"))

	found, err = s.Exists("alice")
	req.NoError(err)
	req.False(found)
}
