package mission

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequirementCacheGetOrLoadMemoizes(t *testing.T) {
	cache := NewRequirementCache(time.Minute)

	var loads int32
	load := func() ([]*Requirement, error) {
		atomic.AddInt32(&loads, 1)
		return []*Requirement{{ID: "req-1", Key: "read_post"}}, nil
	}

	for i := 0; i < 3; i++ {
		reqs, err := cache.GetOrLoad("read_post", load)
		require.NoError(t, err)
		require.Len(t, reqs, 1)
	}

	require.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestRequirementCacheExpiry(t *testing.T) {
	cache := NewRequirementCache(10 * time.Millisecond)
	cache.Set("read_post", []*Requirement{{ID: "req-1"}})

	_, ok := cache.Get("read_post")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Get("read_post")
	require.False(t, ok)
}

func TestRequirementCacheLoadErrorNotCached(t *testing.T) {
	cache := NewRequirementCache(time.Minute)

	_, err := cache.GetOrLoad("read_post", func() ([]*Requirement, error) {
		return nil, errors.New("load failed")
	})
	require.Error(t, err)

	reqs, err := cache.GetOrLoad("read_post", func() ([]*Requirement, error) {
		return []*Requirement{{ID: "req-1"}}, nil
	})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
}

func TestRequirementCacheInvalidate(t *testing.T) {
	cache := NewRequirementCache(time.Minute)
	cache.Set("read_post", []*Requirement{{ID: "req-1"}})

	cache.Invalidate("read_post")

	_, ok := cache.Get("read_post")
	require.False(t, ok)
}

func TestRequirementCacheConcurrentLoadRunsOnce(t *testing.T) {
	cache := NewRequirementCache(time.Minute)

	var loads int32
	load := func() ([]*Requirement, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(5 * time.Millisecond)
		return []*Requirement{{ID: "req-1"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.GetOrLoad("read_post", load)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&loads))
}
