package cache

import (
	"sync"

	"github.com/icodeforyou/solarbank-forecast/days"
	"golang.org/x/sync/singleflight"
)

type LoadFunc[T any] func() (T, bool, error)

// Days memoizes values keyed by day. Only values of closed days are stored,
// an open day is loaded on every call.
type Days[T any] interface {
	GetOrLoad(day days.Day, closed bool, load LoadFunc[T]) (T, bool, error)
	Forget(day days.Day)
	Len() int
}

// Memory keeps values in a map. Forget bumps the day's generation so a load
// that started before it does not store its result.
type Memory[T any] struct {
	mu     sync.RWMutex
	values map[days.Day]T
	gen    map[days.Day]uint64
	group  singleflight.Group
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{values: make(map[days.Day]T), gen: make(map[days.Day]uint64)}
}

type loaded[T any] struct {
	value T
	ok    bool
}

// GetOrLoad runs load at most once concurrently per day.
func (m *Memory[T]) GetOrLoad(day days.Day, closed bool, load LoadFunc[T]) (T, bool, error) {
	if !closed {
		return load()
	}

	m.mu.RLock()
	v, ok := m.values[day]
	m.mu.RUnlock()
	if ok {
		return v, true, nil
	}

	res, err, _ := m.group.Do(day.String(), func() (any, error) {
		m.mu.RLock()
		gen := m.gen[day]
		m.mu.RUnlock()

		value, ok, err := load()
		if err != nil {
			return nil, err
		}
		if ok {
			m.mu.Lock()
			if m.gen[day] == gen {
				m.values[day] = value
			}
			m.mu.Unlock()
		}
		return loaded[T]{value: value, ok: ok}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	l := res.(loaded[T])
	return l.value, l.ok, nil
}

func (m *Memory[T]) Forget(day days.Day) {
	m.mu.Lock()
	delete(m.values, day)
	m.gen[day]++
	m.mu.Unlock()
	m.group.Forget(day.String())
}

func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Noop never stores anything.
type Noop[T any] struct{}

func (Noop[T]) GetOrLoad(_ days.Day, _ bool, load LoadFunc[T]) (T, bool, error) {
	return load()
}

func (Noop[T]) Forget(days.Day) {}

func (Noop[T]) Len() int { return 0 }
