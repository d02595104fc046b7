package object

import "sync"

// Pool is a memory pool for receive buffers.
type Pool struct {
	ch   chan *[]byte
	pool *sync.Pool
}

// NewPool is the constructor for Pool. cap is capacity of an internal free
// list before using a sync.Pool.
func NewPool(cap int) *Pool {
	var ch chan *[]byte
	if cap > 0 {
		ch = make(chan *[]byte, cap)
	}
	p := &Pool{ch: ch}
	p.pool = &sync.Pool{New: p.alloc}
	return p
}

func (p *Pool) alloc() interface{} {
	return &[]byte{}
}

// Get gets a buffer out of the pool, grown to exactly size bytes.
func (p *Pool) Get(size int) *[]byte {
	var b *[]byte
	select {
	case b = <-p.ch:
	default:
		b = p.pool.Get().(*[]byte)
	}
	if cap(*b) < size {
		*b = make([]byte, size)
	}
	*b = (*b)[:size]
	return b
}

// Put puts a buffer back into the pool.
func (p *Pool) Put(b *[]byte) {
	*b = (*b)[:0]
	select {
	case p.ch <- b:
		return
	default:
		p.pool.Put(b)
	}
}
