// Package queue provides the bounded lock-free ring that carries events from
// any number of producer goroutines to the render thread.
package queue

import (
	"runtime"
	"sync/atomic"
)

type cell[T any] struct {
	seq atomic.Uint64
	val T
}

// MPSC is a bounded multi-producer single-consumer queue. Push may be called
// from any goroutine; Pop only from the consumer. Neither blocks nor
// allocates.
type MPSC[T any] struct {
	_    [64]byte
	head atomic.Uint64 // next slot to write
	_    [56]byte
	tail atomic.Uint64 // next slot to read, consumer only
	_    [56]byte
	mask uint64
	buf  []cell[T]
}

// NewMPSC returns a queue holding at least size items. The capacity is
// rounded up to a power of two.
func NewMPSC[T any](size int) *MPSC[T] {
	n := uint64(2)
	for n < uint64(max(size, 2)) {
		n <<= 1
	}
	q := &MPSC[T]{mask: n - 1, buf: make([]cell[T], n)}
	for i := range q.buf {
		q.buf[i].seq.Store(uint64(i))
	}
	return q
}

func (q *MPSC[T]) Cap() int { return len(q.buf) }

// Push enqueues v. It returns false when the queue is full.
func (q *MPSC[T]) Push(v T) bool {
	for {
		pos := q.head.Load()
		c := &q.buf[pos&q.mask]
		seq := c.seq.Load()
		switch {
		case seq == pos:
			if q.head.CompareAndSwap(pos, pos+1) {
				c.val = v
				c.seq.Store(pos + 1)
				return true
			}
		case seq < pos:
			return false
		default:
			// Another producer claimed this slot; reload head.
			runtime.Gosched()
		}
	}
}

// Pop dequeues the oldest item. It returns false when the queue is empty or
// the next item is still being written.
func (q *MPSC[T]) Pop() (T, bool) {
	var zero T
	pos := q.tail.Load()
	c := &q.buf[pos&q.mask]
	if c.seq.Load() != pos+1 {
		return zero, false
	}
	v := c.val
	c.val = zero
	c.seq.Store(pos + q.mask + 1)
	q.tail.Store(pos + 1)
	return v, true
}

// Len is an estimate of the number of queued items.
func (q *MPSC[T]) Len() int {
	n := int64(q.head.Load()) - int64(q.tail.Load())
	return int(max(n, 0))
}
