package pool

import "container/list"

// grant is what a parked Acquire is woken with: a slot handed over
// directly, a capacity permit to open a connection itself, or an error.
type grant struct {
	slot   *slot
	permit bool
	err    error
}

// waiter is a parked Acquire. ch has room for exactly one grant so the
// granting side never blocks while holding the pool lock.
type waiter struct {
	ch   chan grant
	elem *list.Element
}

// enqueueLocked parks a new waiter at the back of the FIFO queue.
func (p *Pool) enqueueLocked() *waiter {
	w := &waiter{ch: make(chan grant, 1)}
	w.elem = p.waiters.PushBack(w)
	return w
}

// dequeueLocked removes and returns the head waiter, or nil.
func (p *Pool) dequeueLocked() *waiter {
	front := p.waiters.Front()
	if front == nil {
		return nil
	}
	w := p.waiters.Remove(front).(*waiter)
	w.elem = nil
	return w
}

// abandonLocked removes w from the queue. It returns false when w was
// already granted, in which case the grant is waiting in w.ch.
func (p *Pool) abandonLocked(w *waiter) bool {
	if w.elem == nil {
		return false
	}
	p.waiters.Remove(w.elem)
	w.elem = nil
	return true
}
