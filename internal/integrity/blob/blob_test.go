package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// storeSuite runs the same contract against every local backend.
type storeSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
}

func (s *storeSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func (s *storeSuite) TestWriteThenRead() {
	ctx := context.Background()
	s.Require().NoError(s.store.Write(ctx, "docs/a/content", []byte("abc")))

	got, err := s.store.Read(ctx, "docs/a/content")
	s.Require().NoError(err)
	s.Equal([]byte("abc"), got)
}

func (s *storeSuite) TestOverwriteReplacesContent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Write(ctx, "docs/b", []byte("v1")))
	s.Require().NoError(s.store.Write(ctx, "docs/b", []byte("v2")))

	got, err := s.store.Read(ctx, "docs/b")
	s.Require().NoError(err)
	s.Equal([]byte("v2"), got)
}

func (s *storeSuite) TestReadMissing() {
	_, err := s.store.Read(context.Background(), "docs/missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *storeSuite) TestDeleteIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Write(ctx, "docs/c", []byte("x")))
	s.Require().NoError(s.store.Delete(ctx, "docs/c"))
	s.Require().NoError(s.store.Delete(ctx, "docs/c"))

	_, err := s.store.Read(ctx, "docs/c")
	s.ErrorIs(err, ErrNotFound)
}

func (s *storeSuite) TestRejectsEscapingPaths() {
	ctx := context.Background()
	for _, p := range []string{"", "/etc/passwd", "../x", "a/../../b", "a//b"} {
		s.ErrorIs(s.store.Write(ctx, p, []byte("x")), ErrInvalidPath, p)
	}
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func(*testing.T) Store { return NewMemoryStore() }})
}

func TestFSStore(t *testing.T) {
	suite.Run(t, &storeSuite{newStore: func(t *testing.T) Store {
		s, err := NewFSStore(t.TempDir())
		require.NoError(t, err)
		return s
	}})
}

func TestMemoryStoreCopiesBuffers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Write(ctx, "k", buf))
	buf[0] = 'z'

	got, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestNewGCSStoreRequiresBucket(t *testing.T) {
	_, err := NewGCSStore(context.Background(), "")
	assert.Error(t, err)
}
