package stream

import "context"

// Combine3 emits join(a, b, c) on every input update once all three
// inputs have emitted at least once. The output closes when all inputs
// are closed or ctx is done.
func Combine3[A, B, C, O any](
	ctx context.Context,
	as <-chan A,
	bs <-chan B,
	cs <-chan C,
	join func(A, B, C) O,
) <-chan O {
	out := make(chan O)
	go func() {
		defer close(out)
		var (
			a                A
			b                B
			c                C
			hasA, hasB, hasC bool
		)
		for as != nil || bs != nil || cs != nil {
			emit := false
			select {
			case <-ctx.Done():
				return
			case v, ok := <-as:
				if !ok {
					as = nil
					continue
				}
				a, hasA, emit = v, true, true
			case v, ok := <-bs:
				if !ok {
					bs = nil
					continue
				}
				b, hasB, emit = v, true, true
			case v, ok := <-cs:
				if !ok {
					cs = nil
					continue
				}
				c, hasC, emit = v, true, true
			}
			if !emit || !hasA || !hasB || !hasC {
				continue
			}
			select {
			case out <- join(a, b, c):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
