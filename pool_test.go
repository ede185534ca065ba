package hbase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streamingfast/hbase/hrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakePool(t *testing.T, size int) (*ConnectionPool, *int32) {
	t.Helper()

	var builds int32
	pool, err := NewConnectionPool(context.Background(), size, "fake://", WithClientFactory(func() (hrpc.Client, error) {
		atomic.AddInt32(&builds, 1)
		return &fakeClient{families: map[string]hrpc.ColumnDescriptor{}}, nil
	}))
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool, &builds
}

func TestNewConnectionPoolSizeValidation(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewConnectionPool(context.Background(), size, "fake://")
		require.Error(t, err)
	}
}

func TestPoolBoundsConcurrentLeases(t *testing.T) {
	pool, _ := newFakePool(t, 2)

	ctx := context.Background()
	acquired := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.WithConnection(ctx, func(ctx context.Context, conn *Connection) error {
				acquired <- struct{}{}
				<-release
				return nil
			})
			require.NoError(t, err)
		}()
	}
	<-acquired
	<-acquired

	// Both connections are out, a third lease must time out.
	err := pool.WithConnectionTimeout(ctx, 50*time.Millisecond, func(ctx context.Context, conn *Connection) error {
		return nil
	})
	require.ErrorIs(t, err, ErrNoConnections)

	close(release)
	wg.Wait()

	// And become available again once released.
	err = pool.WithConnectionTimeout(ctx, 50*time.Millisecond, func(ctx context.Context, conn *Connection) error {
		return nil
	})
	require.NoError(t, err)
}

func TestPoolNestedLeaseReturnsSameConnection(t *testing.T) {
	pool, _ := newFakePool(t, 2)

	err := pool.WithConnection(context.Background(), func(ctx context.Context, outer *Connection) error {
		return pool.WithConnection(ctx, func(ctx context.Context, inner *Connection) error {
			require.Same(t, outer, inner)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestPoolNestedLeaseDoesNotDrawFromStack(t *testing.T) {
	pool, _ := newFakePool(t, 1)

	// With a single connection, a nested lease through the stack would
	// deadlock; through the lease context it must not.
	err := pool.WithConnection(context.Background(), func(ctx context.Context, outer *Connection) error {
		return pool.WithConnectionTimeout(ctx, 100*time.Millisecond, func(ctx context.Context, inner *Connection) error {
			require.Same(t, outer, inner)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestPoolReleasesOnError(t *testing.T) {
	pool, _ := newFakePool(t, 2)

	failure := errors.New("application failure")
	err := pool.WithConnection(context.Background(), func(ctx context.Context, conn *Connection) error {
		return failure
	})
	require.ErrorIs(t, err, failure)
	assert.Equal(t, 2, pool.idle())
}

func TestPoolReplacesTaintedConnection(t *testing.T) {
	transportErr := &hrpc.TransportError{Op: "mutateRows", Err: errors.New("broken pipe")}
	faulty := &fakeClient{callErr: transportErr}
	fresh := &fakeClient{}

	clients := []hrpc.Client{faulty, fresh}
	builds := 0
	pool, err := NewConnectionPool(context.Background(), 1, "fake://", WithClientFactory(func() (hrpc.Client, error) {
		client := clients[builds]
		builds++
		return client, nil
	}))
	require.NoError(t, err)
	defer pool.Close()

	err = pool.WithConnection(context.Background(), func(ctx context.Context, conn *Connection) error {
		return conn.client.MutateRows(ctx, "widgets", nil)
	})
	require.ErrorIs(t, err, transportErr)

	// The faulty client was discarded and a fresh one built and reopened
	// before the connection went back on the stack.
	assert.Equal(t, 2, builds)
	assert.True(t, fresh.IsOpen())
	assert.Equal(t, 1, pool.idle())

	err = pool.WithConnection(context.Background(), func(ctx context.Context, conn *Connection) error {
		require.False(t, conn.Tainted())
		return nil
	})
	require.NoError(t, err)
}

func TestPoolRetriesRebuildOnNextLease(t *testing.T) {
	transportErr := &hrpc.TransportError{Op: "mutateRows", Err: errors.New("broken pipe")}
	faulty := &fakeClient{callErr: transportErr}
	fresh := &fakeClient{}

	builds := 0
	pool, err := NewConnectionPool(context.Background(), 1, "fake://", WithClientFactory(func() (hrpc.Client, error) {
		builds++
		switch builds {
		case 1:
			return faulty, nil
		case 2:
			return nil, errors.New("factory outage")
		default:
			return fresh, nil
		}
	}))
	require.NoError(t, err)
	defer pool.Close()

	err = pool.WithConnection(context.Background(), func(ctx context.Context, conn *Connection) error {
		return conn.client.MutateRows(ctx, "widgets", nil)
	})
	require.ErrorIs(t, err, transportErr)

	// The release-time rebuild failed, the connection went back still
	// tainted so the pool stays at full size.
	assert.Equal(t, 2, builds)
	assert.Equal(t, 1, pool.idle())

	// The next lease retries the rebuild before running anything, the
	// known-bad client is never handed out.
	err = pool.WithConnection(context.Background(), func(ctx context.Context, conn *Connection) error {
		require.False(t, conn.Tainted())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, builds)
	assert.True(t, fresh.IsOpen())
}

func TestPoolKeepsConnectionOnApplicationError(t *testing.T) {
	pool, builds := newFakePool(t, 1)
	before := atomic.LoadInt32(builds)

	err := pool.WithConnection(context.Background(), func(ctx context.Context, conn *Connection) error {
		return errors.New("not a transport problem")
	})
	require.Error(t, err)
	assert.Equal(t, before, atomic.LoadInt32(builds))
}

func TestPoolAcquireHonorsContextCancellation(t *testing.T) {
	pool, _ := newFakePool(t, 1)

	release := make(chan struct{})
	acquired := make(chan struct{})
	go pool.WithConnection(context.Background(), func(ctx context.Context, conn *Connection) error {
		close(acquired)
		<-release
		return nil
	})
	<-acquired

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := pool.WithConnection(ctx, func(ctx context.Context, conn *Connection) error {
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	close(release)
}

func TestPoolNeverExceedsSize(t *testing.T) {
	const size = 3
	pool, _ := newFakePool(t, size)

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.WithConnection(context.Background(), func(ctx context.Context, conn *Connection) error {
				now := atomic.AddInt32(&active, 1)
				for {
					seen := atomic.LoadInt32(&maxActive)
					if now <= seen || atomic.CompareAndSwapInt32(&maxActive, seen, now) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxActive, int32(size))
	assert.Equal(t, size, pool.idle())
}

func TestPoolCloseDrains(t *testing.T) {
	pool, _ := newFakePool(t, 2)
	require.NoError(t, pool.Close())
	assert.Equal(t, 0, pool.idle())

	err := pool.WithConnectionTimeout(context.Background(), 50*time.Millisecond, func(ctx context.Context, conn *Connection) error {
		return nil
	})
	require.Error(t, err)
}
