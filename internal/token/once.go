package token

import "errors"

var errAlreadySet = errors.New("value already set")

// Once holds a value that transitions from empty to set exactly one time.
type Once[T any] struct {
	value T
	set   bool
}

// OnceOf returns a Once that is already set to v.
func OnceOf[T any](v T) Once[T] {
	return Once[T]{value: v, set: true}
}

// Get returns the value and whether it was set.
func (o Once[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether a value has been assigned.
func (o Once[T]) IsSet() bool { return o.set }

// Set assigns v, rejecting any second write.
func (o *Once[T]) Set(v T) error {
	if o.set {
		return errAlreadySet
	}
	o.value = v
	o.set = true
	return nil
}
