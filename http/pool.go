package http

import (
	"errors"
	"runtime"
	"sync/atomic"
)

// ctxPoolSize is the number of pre-built connection contexts. Must stay a
// power of 2 for the ring buffer index mask.
const ctxPoolSize = 1024

var (
	ErrFull  = errors.New("ring buffer is full")
	ErrEmpty = errors.New("ring buffer is empty")
)

// ctxPool pre-allocates connection contexts and recycles them through a
// lock-free ring so concurrent accept and release paths never contend on a
// mutex. When the ring runs dry the server allocates a throwaway context
// instead of blocking the accept loop.
type ctxPool struct {
	pool  [ctxPoolSize]RequestCtx
	ready RingBuffer[*RequestCtx]
}

func newCtxPool(srv *Server) *ctxPool {
	p := &ctxPool{ready: NewRingBuffer[*RequestCtx]()}
	for i := range p.pool {
		p.pool[i].init(srv)
		p.ready.Enqueue(&p.pool[i])
	}
	return p
}

func (p *ctxPool) acquire(srv *Server) *RequestCtx {
	ctx, err := p.ready.Dequeue()
	if err == nil {
		return ctx
	}
	overflow := &RequestCtx{}
	overflow.init(srv)
	return overflow
}

func (p *ctxPool) release(ctx *RequestCtx) {
	// overflow contexts fail Enqueue when the ring is already full and
	// are simply dropped for the collector
	p.ready.Enqueue(ctx)
}

// RingBuffer is a bounded lock-free MPMC queue. Each slot carries a sequence
// number; producers and consumers claim positions with CAS and publish by
// advancing the slot sequence.
type RingBuffer[T any] struct {
	buffer [ctxPoolSize]slot[T]
	mask   uint64
	enqPos uint64
	deqPos uint64
}

type slot[T any] struct {
	sequence uint64
	value    T
}

func NewRingBuffer[T any]() RingBuffer[T] {
	var buf [ctxPoolSize]slot[T]
	for i := range buf {
		buf[i].sequence = uint64(i)
	}
	return RingBuffer[T]{
		buffer: buf,
		mask:   ctxPoolSize - 1,
	}
}

// Enqueue adds an item, failing with ErrFull when no slot is free.
func (q *RingBuffer[T]) Enqueue(val T) error {
	for {
		pos := atomic.LoadUint64(&q.enqPos)
		slot := &q.buffer[pos&q.mask]

		seq := atomic.LoadUint64(&slot.sequence)
		delta := int64(seq) - int64(pos)

		if delta == 0 {
			if atomic.CompareAndSwapUint64(&q.enqPos, pos, pos+1) {
				slot.value = val
				atomic.StoreUint64(&slot.sequence, pos+1)
				return nil
			}
		} else if delta < 0 {
			return ErrFull
		} else {
			runtime.Gosched()
		}
	}
}

// Dequeue removes and returns the oldest item, failing with ErrEmpty.
func (q *RingBuffer[T]) Dequeue() (T, error) {
	var zero T
	for {
		pos := atomic.LoadUint64(&q.deqPos)
		slot := &q.buffer[pos&q.mask]

		seq := atomic.LoadUint64(&slot.sequence)
		delta := int64(seq) - int64(pos+1)

		if delta == 0 {
			if atomic.CompareAndSwapUint64(&q.deqPos, pos, pos+1) {
				val := slot.value
				slot.value = zero
				atomic.StoreUint64(&slot.sequence, pos+q.mask+1)
				return val, nil
			}
		} else if delta < 0 {
			return zero, ErrEmpty
		} else {
			runtime.Gosched()
		}
	}
}
