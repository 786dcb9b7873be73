package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTest(t *testing.T, key string) (*miniredis.Miniredis, Queue) {
	t.Helper()
	m := miniredis.RunT(t)
	dial, err := RedisDialer(Options{Addr: m.Addr(), Key: key})
	require.NoError(t, err)

	q, err := dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return m, q
}

func TestPushPopOrder(t *testing.T) {
	ctx := context.Background()
	m, q := dialTest(t, "solution")

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(ctx, []byte(fmt.Sprintf("entry-%d", i))))
	}

	// LPUSH stores the newest entry at the head
	items, err := m.List("solution")
	require.NoError(t, err)
	assert.Equal(t, []string{"entry-2", "entry-1", "entry-0"}, items)

	for i := 0; i < 3; i++ {
		entry, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("entry-%d", i), string(entry))
	}
}

func TestPopEmpty(t *testing.T) {
	_, q := dialTest(t, "solution")

	entry, ok, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entry)
}

func TestDefaultKey(t *testing.T) {
	m, q := dialTest(t, "")

	require.NoError(t, q.Push(context.Background(), []byte("x")))
	assert.True(t, m.Exists("solution"))
}

func TestLen(t *testing.T) {
	ctx := context.Background()
	_, q := dialTest(t, "pending")

	require.NoError(t, q.Push(ctx, []byte("a")))
	require.NoError(t, q.Push(ctx, []byte("b")))

	lener, ok := q.(Lener)
	require.True(t, ok, "dialed queue reports its backlog")
	n, err := lener.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestErrorsAreConnectionErrors(t *testing.T) {
	ctx := context.Background()
	m, q := dialTest(t, "solution")

	m.SetError("ERR injected")
	defer m.SetError("")

	_, _, err := q.Pop(ctx)
	assert.ErrorIs(t, err, fault.ErrQueueConnection)
	assert.ErrorIs(t, q.Push(ctx, []byte("x")), fault.ErrQueueConnection)
}

func TestDialFailure(t *testing.T) {
	m := miniredis.RunT(t)
	addr := m.Addr()
	m.Close()

	dial, err := RedisDialer(Options{Addr: addr})
	require.NoError(t, err)

	_, err = dial(context.Background())
	assert.ErrorIs(t, err, fault.ErrQueueConnection)
}

func TestRedisURL(t *testing.T) {
	m := miniredis.RunT(t)

	dial, err := RedisDialer(Options{Addr: "redis://" + m.Addr() + "/0", Key: "solution"})
	require.NoError(t, err)
	q, err := dial(context.Background())
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push(context.Background(), []byte("x")))
	assert.True(t, m.Exists("solution"))

	_, err = RedisDialer(Options{Addr: "redis://[bad"})
	assert.Error(t, err)
}

func TestConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	m := miniredis.RunT(t)
	dial, err := RedisDialer(Options{Addr: m.Addr(), Key: "solution"})
	require.NoError(t, err)

	// independent connections, as the produce and drain paths use
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			q, err := dial(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer q.Close()
			for i := 0; i < 25; i++ {
				assert.NoError(t, q.Push(ctx, []byte(fmt.Sprintf("%d-%d", p, i))))
			}
		}(p)
	}
	wg.Wait()

	q, err := dial(ctx)
	require.NoError(t, err)
	defer q.Close()

	seen := make(map[string]bool)
	for {
		entry, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.False(t, seen[string(entry)], "duplicate %s", entry)
		seen[string(entry)] = true
	}
	assert.Len(t, seen, 100)
}
