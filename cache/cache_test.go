package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counting(calls *atomic.Int32, value string, ok bool) LoadFunc[string] {
	return func() (string, bool, error) {
		calls.Add(1)
		return value, ok, nil
	}
}

func TestMemoryStoresClosedDays(t *testing.T) {
	var calls atomic.Int32
	m := NewMemory[string]()

	for range 3 {
		v, ok, err := m.GetOrLoad("250614", true, counting(&calls, "log", true))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "log", v)
	}
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, m.Len())

	m.Forget("250614")
	_, _, _ = m.GetOrLoad("250614", true, counting(&calls, "log", true))
	assert.EqualValues(t, 2, calls.Load())
}

func TestMemoryAlwaysLoadsOpenDay(t *testing.T) {
	var calls atomic.Int32
	m := NewMemory[string]()

	for range 3 {
		_, _, err := m.GetOrLoad("250615", false, counting(&calls, "partial", true))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, calls.Load())
	assert.Zero(t, m.Len())
}

func TestMemoryDoesNotStoreAbsentOrFailed(t *testing.T) {
	var calls atomic.Int32
	m := NewMemory[string]()

	_, ok, err := m.GetOrLoad("250614", true, counting(&calls, "", false))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = m.GetOrLoad("250614", true, func() (string, bool, error) {
		return "", false, errors.New("disk on fire")
	})
	assert.Error(t, err)
	assert.Zero(t, m.Len())
}

func TestMemoryLoadsOnceConcurrently(t *testing.T) {
	var calls atomic.Int32
	m := NewMemory[string]()
	release := make(chan struct{})

	load := func() (string, bool, error) {
		calls.Add(1)
		<-release
		return "log", true, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok, err := m.GetOrLoad("240615", true, load)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "log", v)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryForgetDuringLoadDropsStaleValue(t *testing.T) {
	m := NewMemory[string]()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, _, _ := m.GetOrLoad("250614", true, func() (string, bool, error) {
			close(started)
			<-release
			return "stale", true, nil
		})
		done <- v
	}()

	<-started
	m.Forget("250614")
	close(release)
	assert.Equal(t, "stale", <-done)
	assert.Zero(t, m.Len())

	v, ok, err := m.GetOrLoad("250614", true, func() (string, bool, error) {
		return "fresh", true, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, m.Len())
}

func TestNoop(t *testing.T) {
	var calls atomic.Int32
	var c Days[string] = Noop[string]{}
	for range 2 {
		_, _, _ = c.GetOrLoad(days.Day("240615"), true, counting(&calls, "log", true))
	}
	assert.EqualValues(t, 2, calls.Load())
	assert.Zero(t, c.Len())
}
