package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "insurely/pkg/domain-errors"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(ctx, ClaimKey("1"))
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, km.Len(), "entries should be dropped once unused")
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := km.Acquire(ctx, PolicyKey("1"))
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := km.Acquire(ctx, PolicyKey("2"))
	require.NoError(t, err)
	releaseB()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	km := NewKeyedMutex()

	release, err := km.Acquire(context.Background(), ClaimKey("7"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Acquire(ctx, ClaimKey("7"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))

	release()
	assert.Equal(t, 0, km.Len())
}

func TestKeyedMutex_ReleaseIsIdempotent(t *testing.T) {
	km := NewKeyedMutex()
	release, err := km.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	release()

	release, err = km.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
}
