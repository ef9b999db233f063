package arena

import "sync"

// recreateAfter is the number of checkout/return cycles after which a
// Reusable discards its pooled instance and lets a fresh one be built on the
// next checkout, mirroring the "periodic recreation to defragment after many
// reuse cycles" contract in the spec for the reusable manager.
const recreateAfter = 4096

// Reusable is a single-slot object pool for one long-lived instance of T,
// used for objects that are expensive to construct (arena-backed buffers,
// graph run scratch state) but cheap to clear between runs.
type Reusable[T any] struct {
	mu      sync.Mutex
	make    func() *T
	clear   func(*T)
	current *T
	cycles  int
}

// NewReusable builds a Reusable that constructs new instances with make and
// clears returned instances with clear before they're handed out again.
func NewReusable[T any](make func() *T, clear func(*T)) *Reusable[T] {
	return &Reusable[T]{make: make, clear: clear}
}

// Get returns the pooled instance, constructing one if needed or if the
// pool has been recycled past its defragmentation threshold.
func (r *Reusable[T]) Get() *T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil || r.cycles >= recreateAfter {
		r.current = r.make()
		r.cycles = 0
	}
	return r.current
}

// Put clears and returns t to the pool for the next Get.
func (r *Reusable[T]) Put(t *T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t != r.current {
		return // foreign object, ignore
	}
	if r.clear != nil {
		r.clear(t)
	}
	r.cycles++
}
