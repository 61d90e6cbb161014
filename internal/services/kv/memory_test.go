package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreTestSuite struct {
	suite.Suite
}

func TestMemoryStoreTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(MemoryStoreTestSuite))
}

func (s *MemoryStoreTestSuite) TestSetGetDelete() {
	// arrange
	store := NewMemoryStore()
	ctx := context.Background()

	// act
	s.Require().NoError(store.Set(ctx, "key", "value"))
	value, ok, err := store.Get(ctx, "key")

	// assert
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("value", value)

	// act
	s.Require().NoError(store.Delete(ctx, "key"))
	_, ok, err = store.Get(ctx, "key")

	// assert
	s.NoError(err)
	s.False(ok)
}

func (s *MemoryStoreTestSuite) TestMissingKey() {
	// arrange
	store := NewMemoryStore()

	// act
	value, ok, err := store.Get(context.Background(), "missing")

	// assert
	s.NoError(err)
	s.False(ok)
	s.Empty(value)
}

func (s *MemoryStoreTestSuite) TestExpiration() {
	// arrange
	store := NewMemoryStore()
	ctx := context.Background()
	s.Require().NoError(store.Set(ctx, "key", "value", WithExpiration(time.Millisecond)))

	// act
	time.Sleep(5 * time.Millisecond)
	_, ok, err := store.Get(ctx, "key")

	// assert
	s.NoError(err)
	s.False(ok)
}
