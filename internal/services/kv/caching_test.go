package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type CachingStoreTestSuite struct {
	suite.Suite
}

func TestCachingStoreTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(CachingStoreTestSuite))
}

type countingStore struct {
	Store
	gets   int
	setErr error
}

func (c *countingStore) Get(ctx context.Context, key string) (string, bool, error) {
	c.gets++
	return c.Store.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key string, value string, opts ...Option) error {
	if c.setErr != nil {
		return c.setErr
	}
	return c.Store.Set(ctx, key, value, opts...)
}

func (s *CachingStoreTestSuite) TestReadsAreServedFromCache() {
	// arrange
	inner := &countingStore{Store: NewMemoryStore()}
	store := NewCachingStore(inner, time.Minute)
	ctx := context.Background()
	s.Require().NoError(inner.Store.Set(ctx, "key", "value"))

	// act
	first, _, err := store.Get(ctx, "key")
	s.Require().NoError(err)
	second, _, err := store.Get(ctx, "key")
	s.Require().NoError(err)

	// assert
	s.Equal("value", first)
	s.Equal("value", second)
	s.Equal(1, inner.gets)
}

func (s *CachingStoreTestSuite) TestWritesGoThrough() {
	// arrange
	inner := &countingStore{Store: NewMemoryStore()}
	store := NewCachingStore(inner, time.Minute)
	ctx := context.Background()

	// act
	s.Require().NoError(store.Set(ctx, "key", "value"))
	value, ok, err := inner.Store.Get(ctx, "key")

	// assert
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("value", value)
}

func (s *CachingStoreTestSuite) TestDeleteEvicts() {
	// arrange
	inner := &countingStore{Store: NewMemoryStore()}
	store := NewCachingStore(inner, time.Minute)
	ctx := context.Background()
	s.Require().NoError(store.Set(ctx, "key", "value"))

	// act
	s.Require().NoError(store.Delete(ctx, "key"))
	_, ok, err := store.Get(ctx, "key")

	// assert
	s.NoError(err)
	s.False(ok)
}

func (s *CachingStoreTestSuite) TestFailedWriteIsNotCached() {
	// arrange
	inner := &countingStore{Store: NewMemoryStore(), setErr: errors.New("unavailable")}
	store := NewCachingStore(inner, time.Minute)
	ctx := context.Background()

	// act
	err := store.Set(ctx, "key", "value")
	_, ok, getErr := store.Get(ctx, "key")

	// assert
	s.Error(err)
	s.NoError(getErr)
	s.False(ok)
}
