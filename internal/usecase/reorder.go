package usecase

import "fmt"

// reorderBuffer releases items in index order regardless of arrival order.
// It is owned by a single goroutine.
type reorderBuffer[T any] struct {
	pending map[int]T
	next    int
}

func newReorderBuffer[T any]() *reorderBuffer[T] {
	return &reorderBuffer[T]{pending: make(map[int]T)}
}

// Push parks v under index i.
func (b *reorderBuffer[T]) Push(i int, v T) error {
	if i < b.next {
		return fmt.Errorf("index %d already released", i)
	}
	if _, dup := b.pending[i]; dup {
		return fmt.Errorf("index %d arrived twice", i)
	}
	b.pending[i] = v
	return nil
}

// Pop returns the item at the next index if it has arrived.
func (b *reorderBuffer[T]) Pop() (int, T, bool) {
	v, ok := b.pending[b.next]
	if !ok {
		var zero T
		return b.next, zero, false
	}
	delete(b.pending, b.next)
	i := b.next
	b.next++
	return i, v, true
}

func (b *reorderBuffer[T]) Next() int { return b.next }

func (b *reorderBuffer[T]) Pending() int { return len(b.pending) }
