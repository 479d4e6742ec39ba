package maybe

// Maybe holds a value that may be absent, e.g. an optional channel or a day
// the log provider could not read.
type Maybe[T any] struct {
	value T
	valid bool
}

func Some[T any](value T) Maybe[T] {
	return Maybe[T]{
		value: value,
		valid: true,
	}
}

func None[T any]() Maybe[T] {
	return Maybe[T]{}
}

func (m Maybe[T]) IsValid() bool {
	return m.valid
}

func (m Maybe[T]) Value() T {
	return m.value
}

func (m Maybe[T]) Get() (T, bool) {
	return m.value, m.valid
}

func (m Maybe[T]) ValueOrDefault(defaultValue T) T {
	if m.valid {
		return m.value
	}
	return defaultValue
}

// Map applies fn to the value if present.
func Map[T any, U any](m Maybe[T], fn func(T) U) Maybe[U] {
	if !m.valid {
		return None[U]()
	}
	return Some(fn(m.value))
}
