package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCache struct {
	data map[string][]byte
	err  error
	sets int
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string][]byte)}
}

func (s *stubCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *stubCache) Set(_ context.Context, key string, value []byte) error {
	if s.err != nil {
		return s.err
	}
	s.sets++
	s.data[key] = value
	return nil
}

func newLocal(t *testing.T) *LocalCache {
	t.Helper()
	c, err := NewLocalCache(context.Background(), time.Minute, 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLocalCache(t *testing.T) {
	c := newLocal(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "fundamentals:premium:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "fundamentals:premium:1", []byte(`{"id":"a"}`)))
	v, ok, err := c.Get(ctx, "fundamentals:premium:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"a"}`, string(v))
	assert.Equal(t, 1, c.Len())
}

func TestTieredCache_BackfillsLocal(t *testing.T) {
	local := newLocal(t)
	remote := newStubCache()
	remote.data["k"] = []byte("v")
	c := NewTieredCache(local, remote)
	ctx := context.Background()

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	v, ok, err = local.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestTieredCache_SetWritesBothTiers(t *testing.T) {
	local := newLocal(t)
	remote := newStubCache()
	c := NewTieredCache(local, remote)

	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	assert.Equal(t, 1, remote.sets)
	assert.Equal(t, 1, local.Len())
}

func TestTieredCache_RemoteFailureIsMiss(t *testing.T) {
	remote := newStubCache()
	remote.err = errors.New("dial tcp: connection refused")
	c := NewTieredCache(newLocal(t), remote)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	err = c.Set(ctx, "k", []byte("v"))
	assert.ErrorContains(t, err, "remote cache")

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestTieredCache_LocalOnly(t *testing.T) {
	c := NewTieredCache(newLocal(t), nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
