package memcache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/ports"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
	err  error
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestTiered_WritesThroughAndWarmsLocal(t *testing.T) {
	ctx := context.Background()
	remote := newMapCache()

	writer := NewTiered(NewGeocodeCache(Options{Capacity: 10}), remote, 0)
	writer.Set(ctx, "milano", found("Milano", 45.46, 9.19))
	writer.Set(ctx, "nowhere", domain.GeocodeEntry{})

	require.Contains(t, remote.data, "geocode:milano")
	assert.Equal(t, 7*24*3600, remote.ttls["geocode:milano"])

	// A second replica with an empty local tier sees both outcomes.
	local := NewGeocodeCache(Options{Capacity: 10})
	reader := NewTiered(local, remote, 0)

	e, ok := reader.Get(ctx, "milano")
	require.True(t, ok)
	require.True(t, e.Found())
	assert.Equal(t, 45.46, e.Point.Latitude)
	assert.Equal(t, 1, local.Len())

	e, ok = reader.Get(ctx, "nowhere")
	require.True(t, ok)
	assert.False(t, e.Found())
}

func TestTiered_RemoteFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	remote := newMapCache()
	remote.err = errors.New("connection refused")

	c := NewTiered(NewGeocodeCache(Options{Capacity: 10}), remote, 0)

	_, ok := c.Get(ctx, "milano")
	assert.False(t, ok)

	// Local tier still works when the remote rejects writes.
	c.Set(ctx, "milano", found("Milano", 45.46, 9.19))
	e, ok := c.Get(ctx, "milano")
	assert.True(t, ok)
	assert.True(t, e.Found())
}

func TestTiered_CorruptRemoteEntry(t *testing.T) {
	ctx := context.Background()
	remote := newMapCache()
	remote.data["geocode:milano"] = []byte("{not json")

	c := NewTiered(NewGeocodeCache(Options{Capacity: 10}), remote, 0)
	_, ok := c.Get(ctx, "milano")
	assert.False(t, ok)
}
