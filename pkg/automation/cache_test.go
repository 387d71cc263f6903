package automation

import (
	"sync"
	"testing"
	"time"

	"github.com/autofin/autofin/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSetDelete(t *testing.T) {
	cache := NewMemoryCache()

	_, ok := cache.Get(t.Context(), "user:u1")
	assert.False(t, ok)

	pref := &models.AutomationPreference{OwnerID: "u1", Level: models.AutomationSemiAuto}
	require.NoError(t, cache.Set(t.Context(), "user:u1", pref, time.Minute))

	got, ok := cache.Get(t.Context(), "user:u1")
	require.True(t, ok)
	assert.Equal(t, models.AutomationSemiAuto, got.Level)

	// The cache hands out copies; mutating one must not poison the entry.
	got.Level = models.AutomationManual
	again, ok := cache.Get(t.Context(), "user:u1")
	require.True(t, ok)
	assert.Equal(t, models.AutomationSemiAuto, again.Level)

	require.NoError(t, cache.Delete(t.Context(), "user:u1"))

	_, ok = cache.Get(t.Context(), "user:u1")
	assert.False(t, ok)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	cache := NewMemoryCache()

	pref := &models.AutomationPreference{OwnerID: "u1", Level: models.AutomationSemiAuto}
	require.NoError(t, cache.Set(t.Context(), "user:u1", pref, time.Nanosecond))

	time.Sleep(time.Millisecond)

	_, ok := cache.Get(t.Context(), "user:u1")
	assert.False(t, ok, "entry older than its TTL is a miss")
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	pref := &models.AutomationPreference{OwnerID: "u1", Level: models.AutomationSemiAuto}

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				_ = cache.Set(t.Context(), "user:u1", pref, time.Minute)
			}
		}()

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				if got, ok := cache.Get(t.Context(), "user:u1"); ok {
					assert.Equal(t, models.AutomationSemiAuto, got.Level)
				}
			}
		}()
	}

	wg.Wait()
}
