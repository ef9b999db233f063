// Package channel implements the streaming edge type the spec calls
// Channel/Topic: an append-only sequence of values shared by one or more
// producers and any number of consumers, where a consumer can block until
// either more data is published or every producer has finished.
//
// Grounded on purpleidea/mgmt's close-to-broadcast idiom (state.go signals
// readiness by closing a channel so any number of waiters wake at once);
// here the readiness signal is a sync.Cond broadcast instead, since a Topic
// is reused across many publish events rather than fired once.
package channel

import "sync"

type slotState int32

const (
	slotPending slotState = iota
	slotPublished
)

// Topic is a growable, append-only sequence of T shared by producers (who
// append via PublishN and call ProducerDone once each) and consumers (who
// block in Read/ReadRange until data arrives or the topic closes).
type Topic[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf   []T
	state []slotState

	producers    int
	producerDone int
	closed       bool
}

// NewTopic returns a Topic expecting producers distinct producers to each
// call ProducerDone once. The topic closes once the last one does.
func NewTopic[T any](producers int) *Topic[T] {
	t := &Topic[T]{producers: producers}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// PublishN appends n new slots and calls fill with a setter that writes
// into them by index (0 through n-1, relative to the new slots), then marks them all published and wakes any blocked
// readers. The two-phase shape (grow, then fill, then publish) lets a
// producer reserve a contiguous index range before it has every value in
// hand, matching the spec's "reserve a run, then fill it" Channel.Emit
// shape.
func (t *Topic[T]) PublishN(n int, fill func(set func(i int, v T))) (begin, end int) {
	t.mu.Lock()
	begin = len(t.buf)
	var zero T
	for i := 0; i < n; i++ {
		t.buf = append(t.buf, zero)
		t.state = append(t.state, slotPending)
	}
	end = begin + n
	t.mu.Unlock()

	fill(func(i int, v T) {
		t.mu.Lock()
		t.buf[begin+i] = v
		t.mu.Unlock()
	})

	t.mu.Lock()
	for i := begin; i < end; i++ {
		t.state[i] = slotPublished
	}
	t.cond.Broadcast()
	t.mu.Unlock()
	return begin, end
}

// ProducerDone marks one producer finished. Once every declared producer
// has called it, the topic closes and any blocked reader past the last
// published slot wakes with ok=false.
func (t *Topic[T]) ProducerDone() {
	t.mu.Lock()
	t.producerDone++
	if t.producerDone >= t.producers {
		t.closed = true
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

// Read blocks until slot i is published or the topic closes without ever
// reaching it.
func (t *Topic[T]) Read(i int) (v T, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if i < len(t.state) && t.state[i] == slotPublished {
			return t.buf[i], true
		}
		if t.closed && i >= len(t.state) {
			var zero T
			return zero, false
		}
		t.cond.Wait()
	}
}

// ReadRange blocks until at least one of up to n slots starting at i is
// published, then returns as many contiguous published slots as are
// available (which may be fewer than n). ok is false only when the topic
// has closed with nothing left to return at i.
func (t *Topic[T]) ReadRange(i, n int) (out []T, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		avail := 0
		for avail < n && i+avail < len(t.state) && t.state[i+avail] == slotPublished {
			avail++
		}
		if avail > 0 {
			out = make([]T, avail)
			copy(out, t.buf[i:i+avail])
			return out, true
		}
		if t.closed {
			return nil, false
		}
		t.cond.Wait()
	}
}

// Len returns the number of slots reserved so far, including slots a
// PublishN call has reserved but not yet marked published. Safe to call
// concurrently with PublishN/Read.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}

// Closed reports whether every producer has called ProducerDone.
func (t *Topic[T]) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
