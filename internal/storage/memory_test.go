package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemory_SharedSpace(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	space := NewMemorySpace()
	a, b := space.Open(), space.Open()
	defer a.Close()
	defer b.Close()

	exerciseSharedStore(t, a, b, 20*time.Millisecond)
}

func TestMemory_PrivateSpaces(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemory(), NewMemory()
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Set(ctx, testKey, "x"))
	_, ok, err := b.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Close(t *testing.T) {
	ctx := context.Background()
	space := NewMemorySpace()
	a, b := space.Open(), space.Open()
	defer b.Close()

	ch, _ := a.Subscribe(testKey)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, ok := <-ch
	assert.False(t, ok)

	_, _, err := a.Get(ctx, testKey)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.Set(ctx, testKey, "x"), ErrClosed)

	// A closed handle no longer receives anything and does not block writers
	require.NoError(t, b.Set(ctx, testKey, "y"))
}

func TestMemory_ConcurrentWritersNotifyInStoreOrder(t *testing.T) {
	ctx := context.Background()
	space := NewMemorySpace()
	observer := space.Open()
	defer observer.Close()

	changes, cancel := observer.Subscribe(testKey)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		writer := space.Open()
		defer writer.Close()
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.NoError(t, writer.Set(ctx, testKey, fmt.Sprintf("%d-%d", id, i)))
			}
		}(w)
	}
	wg.Wait()

	stored, ok, err := observer.Get(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)

	var last Change
drain:
	for {
		select {
		case c := <-changes:
			last = c
		default:
			break drain
		}
	}
	assert.Equal(t, stored, last.NewValue)
}
