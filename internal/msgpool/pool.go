// Package msgpool provides a bounded reuse pool for outbound messages.
//
// The pool is an explicit free-list with checked-out bookkeeping rather than
// a sync.Pool: sync.Pool may drop entries at any GC and cannot tell a double
// return from a legitimate one. Here every rented instance is tracked until
// it comes back, and an instance returned twice is rejected.
//
// Callers must not keep or use a reference to a message after returning it.
package msgpool

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aGit2048/virtual-debugger/internal/message"
)

// DefaultCapacity is the number of idle messages kept for reuse.
const DefaultCapacity = 1000

// ErrClosed is returned by Rent after the pool has been closed.
var ErrClosed = errors.New("msgpool: pool closed")

// Stats is a snapshot of pool activity.
type Stats struct {
	Capacity    int    `json:"capacity"`
	Idle        int    `json:"idle"`
	Outstanding int    `json:"outstanding"`
	Allocated   uint64 `json:"allocated"`
	Rented      uint64 `json:"rented"`
	Returned    uint64 `json:"returned"`
	Rejected    uint64 `json:"rejected"`
}

// Pool is a fixed-capacity free-list of *message.Message.
//
// Thread Safety: all methods are safe for concurrent use.
type Pool struct {
	free chan *message.Message

	mu     sync.Mutex
	out    map[*message.Message]struct{}
	closed bool

	allocated atomic.Uint64
	rented    atomic.Uint64
	returned  atomic.Uint64
	rejected  atomic.Uint64
}

// New creates a pool that keeps at most capacity idle messages.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		free: make(chan *message.Message, capacity),
		out:  make(map[*message.Message]struct{}),
	}
}

// Rent returns an idle message, allocating a new one only when none is
// free. The caller owns the message exclusively until Return.
func (p *Pool) Rent() (*message.Message, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	var m *message.Message
	select {
	case m = <-p.free:
	default:
		m = &message.Message{}
		p.allocated.Add(1)
	}
	p.out[m] = struct{}{}
	p.mu.Unlock()

	p.rented.Add(1)
	return m, nil
}

// Return resets m and re-admits it to the free-list.
//
// Returning nil, returning to a closed pool, or returning a message that is
// not currently checked out (a double return) is a no-op; the last case is
// counted in Stats.Rejected.
func (p *Pool) Return(m *message.Message) {
	if m == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if _, ok := p.out[m]; !ok {
		p.mu.Unlock()
		p.rejected.Add(1)
		return
	}
	delete(p.out, m)
	p.mu.Unlock()

	m.Reset()
	p.returned.Add(1)

	select {
	case p.free <- m:
	default:
		// Free-list full; let the GC have it.
	}
}

// With rents a message, runs fn with it, and returns the message on every
// exit path of fn, including a panic.
func (p *Pool) With(fn func(m *message.Message) error) error {
	m, err := p.Rent()
	if err != nil {
		return err
	}
	defer p.Return(m)
	return fn(m)
}

// Close disposes the pool. Idle messages are released and subsequent Rent
// calls fail with ErrClosed. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.out = make(map[*message.Message]struct{})
	for {
		select {
		case <-p.free:
		default:
			return
		}
	}
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	outstanding := len(p.out)
	p.mu.Unlock()

	return Stats{
		Capacity:    cap(p.free),
		Idle:        len(p.free),
		Outstanding: outstanding,
		Allocated:   p.allocated.Load(),
		Rented:      p.rented.Load(),
		Returned:    p.returned.Load(),
		Rejected:    p.rejected.Load(),
	}
}
