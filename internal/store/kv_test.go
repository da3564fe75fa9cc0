package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSetDelete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v1"))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	require.NoError(t, m.Set(ctx, "k", "v2"))
	v, _, _ = m.Get(ctx, "k")
	assert.Equal(t, "v2", v)

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, m.Len())

	assert.NoError(t, m.Delete(ctx, "k"), "deleting an absent key is not an error")
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("g%d-k%d", g, i)
				m.Set(ctx, key, "v")
				m.Get(ctx, key)
				if i%2 == 0 {
					m.Delete(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 8*50, m.Len())
}
