// Package stream provides the small set of channel combinators the
// monitoring graph is built from: fan-in, mapping, equality-gated
// re-emission, latest-value combination, replayed broadcast and retry
// with increasing delays.
package stream

import (
	"context"
	"sync"
)

// Merge fans in every input channel into one output channel. The output
// closes once all inputs are closed or ctx is done.
func Merge[T any](ctx context.Context, ins ...<-chan T) <-chan T {
	out := make(chan T)
	var wg sync.WaitGroup
	wg.Add(len(ins))
	for _, in := range ins {
		go func(in <-chan T) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- v:
					case <-ctx.Done():
						return
					}
				}
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Map transforms every value of in through fn.
func Map[T, U any](ctx context.Context, in <-chan T, fn func(T) U) <-chan U {
	out := make(chan U)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- fn(v):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// DistinctFunc re-emits a value only when its key differs from the
// previously emitted one. The first value is always emitted.
func DistinctFunc[T any, K comparable](ctx context.Context, in <-chan T, key func(T) K) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		var last K
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				k := key(v)
				if !first && k == last {
					continue
				}
				first = false
				last = k
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
