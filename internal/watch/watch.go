// Package watch provides a single-writer observable value cell. The owning
// component replaces the value wholesale; every subscriber observes the latest
// value without intermediate states becoming visible.
package watch

import "sync"

// Value holds the current value of type T and fans changes out to subscribers.
// Each subscriber channel has capacity one and is coalescing: when a subscriber
// lags, older values are dropped so the latest always wins.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	subs    map[chan T]struct{}
}

// NewValue constructs a cell seeded with the given initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[chan T]struct{}),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value and notifies all subscribers.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = value
	for ch := range v.subs {
		select {
		case ch <- value:
		default:
			// Subscriber still holds an unread value; replace it with the
			// newer one so observers always converge on the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- value:
			default:
			}
		}
	}
}

// Subscribe registers a new observer. The channel immediately carries the
// current value. Callers must Unsubscribe when done.
func (v *Value[T]) Subscribe() <-chan T {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch := make(chan T, 1)
	ch <- v.current
	v.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes an observer registered via Subscribe.
func (v *Value[T]) Unsubscribe(ch <-chan T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for sub := range v.subs {
		if sub == ch {
			delete(v.subs, sub)
			close(sub)
			return
		}
	}
}
