package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryLeaseLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLeaseLocker(time.Minute)

	ok, err := l.TryAcquire(ctx, "job")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryAcquire(ctx, "job")
	require.NoError(t, err)
	assert.False(t, ok, "второй захват того же ключа должен вернуть false")

	ok, err = l.TryAcquire(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "job"))
	ok, err = l.TryAcquire(ctx, "job")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLeaseLocker_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLeaseLocker(20 * time.Millisecond)

	ok, _ := l.TryAcquire(ctx, "job")
	require.True(t, ok)
	time.Sleep(40 * time.Millisecond)

	ok, err := l.TryAcquire(ctx, "job")
	require.NoError(t, err)
	assert.True(t, ok, "истёкшая аренда не должна удерживать ключ")
}

func TestMemoryLeaseLocker_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLeaseLocker(time.Minute)

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.TryAcquire(ctx, "job"); ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New("zookeeper", nil, nil, time.Minute, zap.NewNop())
	assert.Error(t, err)

	_, err = New(BackendRedis, nil, nil, time.Minute, zap.NewNop())
	assert.Error(t, err)

	l, err := New(BackendMemory, nil, nil, time.Minute, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryLeaseLocker{}, l)
}
