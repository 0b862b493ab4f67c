package origin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/request-relay/origin"
)

type stubDirectory struct {
	origins []origin.Origin
	err     error
}

func (s *stubDirectory) Create(context.Context, origin.NewOrigin) (origin.Origin, error) {
	return origin.Origin{}, errors.New("not implemented")
}

func (s *stubDirectory) Update(context.Context, int64, origin.NewOrigin) (origin.Origin, error) {
	return origin.Origin{}, errors.New("not implemented")
}

func (s *stubDirectory) Upsert(context.Context, origin.NewOrigin) (origin.Origin, error) {
	return origin.Origin{}, errors.New("not implemented")
}

func (s *stubDirectory) List(context.Context) ([]origin.Origin, error) {
	return s.origins, s.err
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	a := origin.Origin{ID: 1, Domain: "a.example", URI: "https://backend-a", TimeoutMs: 100}
	b := origin.Origin{ID: 2, Domain: "b.example", URI: "https://backend-b", TimeoutMs: 200}

	t.Run("resolves after refresh", func(t *testing.T) {
		dir := &stubDirectory{origins: []origin.Origin{a, b}}
		cache := origin.NewCache(dir, nil)

		_, ok := cache.Resolve("a.example")
		assert.False(t, ok, "empty cache resolves nothing")

		require.NoError(t, cache.Refresh(ctx))
		assert.Equal(t, 2, cache.Len())

		got, ok := cache.Resolve("a.example")
		require.True(t, ok)
		assert.Equal(t, a, got)

		_, ok = cache.Resolve("unknown.example")
		assert.False(t, ok)
	})

	t.Run("refresh replaces the whole snapshot", func(t *testing.T) {
		dir := &stubDirectory{origins: []origin.Origin{a, b}}
		cache := origin.NewCache(dir, nil)
		require.NoError(t, cache.Refresh(ctx))

		dir.origins = []origin.Origin{b}
		require.NoError(t, cache.Refresh(ctx))

		_, ok := cache.Resolve("a.example")
		assert.False(t, ok, "removed origin must disappear")
		got, ok := cache.Resolve("b.example")
		require.True(t, ok)
		assert.Equal(t, b, got)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("failed refresh keeps the previous snapshot", func(t *testing.T) {
		dir := &stubDirectory{origins: []origin.Origin{a}}
		cache := origin.NewCache(dir, nil)
		require.NoError(t, cache.Refresh(ctx))

		dir.err = errors.New("db down")
		require.Error(t, cache.Refresh(ctx))

		got, ok := cache.Resolve("a.example")
		require.True(t, ok)
		assert.Equal(t, a, got)
	})
}
