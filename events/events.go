// Package events provides a named-handler event primitive. An Emitter holds a
// flat registry of callbacks keyed by name and supports firing a value at all
// of them, waiting for the next value, and a binary enabled/disabled toggle
// that suspends delivery without deregistering anything.
package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrWaitTimeout is returned by Wait when no value is fired within the
// requested timeout.
var ErrWaitTimeout = errors.New("timed out waiting for event")

// Handler is a callback passed to Bind.
type Handler[T any] func(ctx context.Context, value T)

// Emitter is a concurrency-safe registry of named handlers for values of type
// T. The zero value is not usable; use NewEmitter.
type Emitter[T any] struct {
	mu       sync.Mutex
	handlers map[string]Handler[T]
	waiters  []chan T
	disabled bool

	inflight sync.WaitGroup
}

// NewEmitter returns an empty, enabled Emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{handlers: map[string]Handler[T]{}}
}

// Bind registers fn under the given name. Binding an already used name
// replaces the previous handler.
func (e *Emitter[T]) Bind(name string, fn Handler[T]) error {
	if name == "" {
		return errors.New("handler name must not be empty")
	}
	if fn == nil {
		return errors.Errorf("handler %q must not be nil", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = fn
	return nil
}

// Unbind removes the handler registered under name.
func (e *Emitter[T]) Unbind(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handlers[name]; !ok {
		return errors.Errorf("no handler named %q", name)
	}
	delete(e.handlers, name)
	return nil
}

// Fire delivers value to every bound handler and wakes all pending waiters.
// Each handler runs on its own goroutine. Fire is a no-op while the emitter
// is disabled. Handlers bound during a Fire are not invoked by that Fire.
func (e *Emitter[T]) Fire(ctx context.Context, value T) {
	e.mu.Lock()
	if e.disabled {
		e.mu.Unlock()
		return
	}
	handlers := make([]Handler[T], 0, len(e.handlers))
	for _, fn := range e.handlers {
		handlers = append(handlers, fn)
	}
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()

	for _, ch := range waiters {
		ch <- value
	}
	for _, fn := range handlers {
		fnCopy := fn
		e.inflight.Add(1)
		utils.PanicCapturingGo(func() {
			defer e.inflight.Done()
			fnCopy(ctx, value)
		})
	}
}

// Wait blocks until the next fired value, the context is done, or the timeout
// elapses. A timeout of zero or less means no timeout. A waiter receives at
// most one value.
func (e *Emitter[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	ch := make(chan T, 1)
	e.mu.Lock()
	e.waiters = append(e.waiters, ch)
	e.mu.Unlock()

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var zero T
	select {
	case value := <-ch:
		return value, nil
	case <-ctx.Done():
		e.removeWaiter(ch)
		return zero, ctx.Err()
	case <-timeoutC:
		e.removeWaiter(ch)
		return zero, ErrWaitTimeout
	}
}

func (e *Emitter[T]) removeWaiter(ch chan T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, other := range e.waiters {
		if other == ch {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}

// Enable resumes delivery of fired values.
func (e *Emitter[T]) Enable() {
	e.mu.Lock()
	e.disabled = false
	e.mu.Unlock()
}

// Disable suspends delivery of fired values. Handlers stay registered and
// waiters stay parked.
func (e *Emitter[T]) Disable() {
	e.mu.Lock()
	e.disabled = true
	e.mu.Unlock()
}

// Enabled reports whether fired values are currently delivered.
func (e *Emitter[T]) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.disabled
}

// Names returns the names of all bound handlers, sorted.
func (e *Emitter[T]) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bound handlers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

// Close waits for all in-flight handler invocations to return.
func (e *Emitter[T]) Close() {
	e.inflight.Wait()
}
