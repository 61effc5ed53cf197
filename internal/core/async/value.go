// Package async provides single-resolution deferred values with map and
// combine combinators. This is part of the Functional Core - combinators
// build derived values without performing I/O themselves.
//
// A Value is produced at the point a provisioner is invoked and resolved
// exactly once by the provisioning engine, after the underlying cloud
// resource exists. Derived values never re-trigger resolution of their
// inputs; a failed input fails every value derived from it.
package async

import (
	"context"
	"sync"
)

// =============================================================================
// Value
// =============================================================================

// Value is a deferred value of type T that resolves at most once.
//
// The zero Value is not usable; construct one with New, Resolved or Failed.
// Values are safe for concurrent use.
type Value[T any] struct {
	s *state[T]
}

type state[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// New returns an unresolved Value together with its resolve and reject
// functions. Whichever of the two is called first wins; later calls are
// no-ops.
//
// Example:
//
//	endpoint, resolve, reject := async.New[string]()
//	go func() {
//	    ep, err := createCluster(ctx)
//	    if err != nil {
//	        reject(err)
//	        return
//	    }
//	    resolve(ep)
//	}()
func New[T any]() (Value[T], func(T), func(error)) {
	s := &state[T]{done: make(chan struct{})}
	v := Value[T]{s: s}

	resolve := func(val T) {
		s.once.Do(func() {
			s.val = val
			close(s.done)
		})
	}
	reject := func(err error) {
		s.once.Do(func() {
			s.err = err
			close(s.done)
		})
	}

	return v, resolve, reject
}

// Resolved returns a Value that is already resolved to val.
func Resolved[T any](val T) Value[T] {
	v, resolve, _ := New[T]()
	resolve(val)
	return v
}

// Failed returns a Value that is already failed with err.
func Failed[T any](err error) Value[T] {
	v, _, reject := New[T]()
	reject(err)
	return v
}

// Await blocks until the value resolves or the context is done.
// It returns the resolution error verbatim when the upstream chain failed.
//
// Await is intended for final consumers (the provisioning engine, export
// dumps, tests); composition code should use Map and Combine instead.
func (v Value[T]) Await(ctx context.Context) (T, error) {
	var zero T
	if v.s == nil {
		return zero, ErrUnresolvable
	}
	select {
	case <-v.s.done:
		if v.s.err != nil {
			return zero, v.s.err
		}
		return v.s.val, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// =============================================================================
// Combinators
// =============================================================================

// Map returns a Value that resolves to f(x) once v resolves to x.
// Failure of v propagates to the result without invoking f.
//
// Go does not support parametric methods, so the combinators are
// package-level functions.
func Map[T, U any](v Value[T], f func(T) U) Value[U] {
	return MapErr(v, func(val T) (U, error) {
		return f(val), nil
	})
}

// MapErr is Map for transforms that can fail. An error returned by f
// fails the derived value and everything built on top of it.
func MapErr[T, U any](v Value[T], f func(T) (U, error)) Value[U] {
	out, resolve, reject := New[U]()
	go func() {
		val, err := v.Await(context.Background())
		if err != nil {
			reject(err)
			return
		}
		mapped, err := f(val)
		if err != nil {
			reject(err)
			return
		}
		resolve(mapped)
	}()
	return out
}

// Combine returns a Value that resolves to f(x, y) once both a and b have
// resolved. Resolution order between a and b is unspecified; failure of
// either input fails the result.
func Combine[A, B, U any](a Value[A], b Value[B], f func(A, B) U) Value[U] {
	return CombineErr(a, b, func(x A, y B) (U, error) {
		return f(x, y), nil
	})
}

// CombineErr is Combine for joins that can fail.
func CombineErr[A, B, U any](a Value[A], b Value[B], f func(A, B) (U, error)) Value[U] {
	out, resolve, reject := New[U]()
	go func() {
		x, err := a.Await(context.Background())
		if err != nil {
			reject(err)
			return
		}
		y, err := b.Await(context.Background())
		if err != nil {
			reject(err)
			return
		}
		joined, err := f(x, y)
		if err != nil {
			reject(err)
			return
		}
		resolve(joined)
	}()
	return out
}

// All returns a Value that resolves once every input has resolved,
// preserving input order. With no inputs it resolves immediately.
func All[T any](vs ...Value[T]) Value[[]T] {
	out, resolve, reject := New[[]T]()
	go func() {
		vals := make([]T, 0, len(vs))
		for _, v := range vs {
			val, err := v.Await(context.Background())
			if err != nil {
				reject(err)
				return
			}
			vals = append(vals, val)
		}
		resolve(vals)
	}()
	return out
}
